package event

import (
	"fmt"
	"time"
)

// EventType identifies the kind of playback event.
type EventType string

const (
	// Turn lifecycle
	TurnStarted    EventType = "turn.started"
	TurnTimeline   EventType = "turn.timeline"
	TurnCompleted  EventType = "turn.completed"
	TurnSuperseded EventType = "turn.superseded"

	// Step playback
	StepActive    EventType = "step.active"
	StepCompleted EventType = "step.completed"

	// Caption shown above the timeline
	CaptionChanged EventType = "caption.changed"

	// Live feed
	FeedConnected EventType = "feed.connected"
	FeedFinal     EventType = "feed.final"
	FeedClosed    EventType = "feed.closed"
)

// AllEventTypes lists every event type the engine emits.
func AllEventTypes() []EventType {
	return []EventType{
		TurnStarted, TurnTimeline, TurnCompleted, TurnSuperseded,
		StepActive, StepCompleted,
		CaptionChanged,
		FeedConnected, FeedFinal, FeedClosed,
	}
}

// ParseEventType resolves a configured event name.
func ParseEventType(s string) (EventType, error) {
	for _, t := range AllEventTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown event type: %s", s)
}

// Event carries data about a playback occurrence.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id,omitempty"`
	TurnID    string                 `json:"turn_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(t EventType, data map[string]interface{}) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// ForTurn returns a copy of the event scoped to a session turn.
func (e Event) ForTurn(sessionID, turnID string) Event {
	e.SessionID = sessionID
	e.TurnID = turnID
	return e
}
