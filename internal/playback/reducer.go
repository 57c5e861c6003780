package playback

import "github.com/cadre-oss/storyline/internal/timeline"

// ActionType names a state transition.
type ActionType string

const (
	ActionStart         ActionType = "START_SIMULATION"
	ActionReset         ActionType = "RESET_FOR_NEW_MESSAGE"
	ActionSetMorphing   ActionType = "SET_MORPHING"
	ActionSetEvents     ActionType = "SET_EVENTS"
	ActionNextEvent     ActionType = "NEXT_EVENT"
	ActionSetEventIndex ActionType = "SET_EVENT_INDEX"
	ActionUpdateEvent   ActionType = "UPDATE_EVENT"
	ActionComplete      ActionType = "COMPLETE_SIMULATION"
	ActionStopWaiting   ActionType = "STOP_WAITING"
	ActionClearMorphing ActionType = "CLEAR_MORPHING"
)

// Action is a state transition request. Only the fields relevant to Type
// are read.
type Action struct {
	Type ActionType

	Query   string       // Start, Reset
	Caption string       // Start, Reset, SetMorphing
	Phase   CaptionPhase // SetMorphing
	BumpKey bool         // SetMorphing

	Events []timeline.SimulatedEvent // SetEvents

	Index   int             // SetEventIndex, UpdateEvent without EventID
	EventID string          // UpdateEvent
	Status  timeline.Status // UpdateEvent
}

func Start(query, caption string) Action {
	return Action{Type: ActionStart, Query: query, Caption: caption}
}

func Reset(query, caption string) Action {
	return Action{Type: ActionReset, Query: query, Caption: caption}
}

func SetMorphing(text string, phase CaptionPhase, bump bool) Action {
	return Action{Type: ActionSetMorphing, Caption: text, Phase: phase, BumpKey: bump}
}

func SetEvents(events []timeline.SimulatedEvent) Action {
	return Action{Type: ActionSetEvents, Events: events}
}

func NextEvent() Action { return Action{Type: ActionNextEvent} }

func SetEventIndex(i int) Action { return Action{Type: ActionSetEventIndex, Index: i} }

// UpdateEvent sets the status of the event with the given ID.
func UpdateEvent(id string, status timeline.Status) Action {
	return Action{Type: ActionUpdateEvent, EventID: id, Status: status}
}

// UpdateEventAt sets the status of the event at index i.
func UpdateEventAt(i int, status timeline.Status) Action {
	return Action{Type: ActionUpdateEvent, Index: i, Status: status}
}

func Complete() Action      { return Action{Type: ActionComplete} }
func StopWaiting() Action   { return Action{Type: ActionStopWaiting} }
func ClearMorphing() Action { return Action{Type: ActionClearMorphing} }

// Reduce applies a to s and returns the new state. s is never modified;
// slices in the result are fresh whenever their contents change.
// CurrentEventIndex stays -1 for an empty timeline and a valid index
// otherwise.
func Reduce(s State, a Action) State {
	switch a.Type {
	case ActionStart, ActionReset:
		next := Initial()
		next.Query = a.Query
		next.IsWaitingForBatch = true
		next.Caption = Caption{Text: a.Caption, Phase: CaptionShimmer, Key: s.Caption.Key + 1}
		return next

	case ActionSetMorphing:
		s.Caption.Text = a.Caption
		s.Caption.Phase = a.Phase
		if a.BumpKey {
			s.Caption.Key++
		}
		return s

	case ActionSetEvents:
		s.Events = append([]timeline.SimulatedEvent{}, a.Events...)
		s.CurrentEventIndex = -1
		if len(s.Events) > 0 {
			s.CurrentEventIndex = 0
		}
		return s

	case ActionNextEvent:
		if len(s.Events) == 0 {
			s.CurrentEventIndex = -1
			return s
		}
		if s.CurrentEventIndex < len(s.Events)-1 {
			s.CurrentEventIndex++
		}
		return s

	case ActionSetEventIndex:
		if a.Index >= 0 && a.Index < len(s.Events) {
			s.CurrentEventIndex = a.Index
		}
		return s

	case ActionUpdateEvent:
		i := a.Index
		if a.EventID != "" {
			i = indexOf(s.Events, a.EventID)
		}
		if i < 0 || i >= len(s.Events) || s.Events[i].Status == a.Status {
			return s
		}
		events := append([]timeline.SimulatedEvent{}, s.Events...)
		events[i].Status = a.Status
		s.Events = events
		return s

	case ActionComplete, ActionStopWaiting:
		s.IsWaitingForBatch = false
		return s

	case ActionClearMorphing:
		s.Caption = Caption{Key: s.Caption.Key}
		return s
	}
	return s
}

func indexOf(events []timeline.SimulatedEvent, id string) int {
	for i, ev := range events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}
