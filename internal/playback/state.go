// Package playback reveals a timeline step by step next to a transient
// status caption. State changes go through the pure Reduce function; all
// delayed work is scheduled through a TimerManager.
package playback

import "github.com/cadre-oss/storyline/internal/timeline"

// CaptionPhase is the phase tag carried by the morphing caption.
type CaptionPhase string

const (
	CaptionNone    CaptionPhase = ""
	CaptionShimmer CaptionPhase = "shimmer"
	CaptionWaiting CaptionPhase = "waiting"
	CaptionFinal   CaptionPhase = "final"
)

// Phase is the coarse playback phase derived from a State.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseShimmer Phase = "shimmer"
	PhaseWaiting Phase = "waiting"
	PhasePlaying Phase = "playing"
	PhaseFinal   Phase = "final"
)

// Caption is the transient status line. Key changes whenever the UI should
// re-run its transition even if the text is unchanged.
type Caption struct {
	Text  string       `json:"text"`
	Phase CaptionPhase `json:"phase"`
	Key   int          `json:"key"`
}

// State is the full playback state of one session turn.
type State struct {
	Caption           Caption                   `json:"caption"`
	Events            []timeline.SimulatedEvent `json:"simulatedEvents"`
	CurrentEventIndex int                       `json:"currentEventIndex"`
	Query             string                    `json:"query"`
	IsWaitingForBatch bool                      `json:"isWaitingForBatch"`
}

// Initial returns the idle state.
func Initial() State {
	return State{
		Events:            []timeline.SimulatedEvent{},
		CurrentEventIndex: -1,
	}
}

// Phase derives the playback phase.
func (s State) Phase() Phase {
	switch {
	case s.Caption.Phase == CaptionFinal:
		return PhaseFinal
	case s.activeIndex() >= 0:
		return PhasePlaying
	case s.IsWaitingForBatch && s.Caption.Phase == CaptionWaiting:
		return PhaseWaiting
	case s.IsWaitingForBatch:
		return PhaseShimmer
	default:
		return PhaseIdle
	}
}

// Current returns the event under the cursor.
func (s State) Current() (timeline.SimulatedEvent, bool) {
	if s.CurrentEventIndex < 0 || s.CurrentEventIndex >= len(s.Events) {
		return timeline.SimulatedEvent{}, false
	}
	return s.Events[s.CurrentEventIndex], true
}

// Completed counts events already played.
func (s State) Completed() int {
	n := 0
	for _, ev := range s.Events {
		if ev.Status == timeline.StatusCompleted {
			n++
		}
	}
	return n
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	s.Events = append([]timeline.SimulatedEvent{}, s.Events...)
	return s
}

func (s State) activeIndex() int {
	for i, ev := range s.Events {
		if ev.Status == timeline.StatusActive {
			return i
		}
	}
	return -1
}
