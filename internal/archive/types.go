// Package archive records played turns so a session's history can be
// replayed or inspected after the fact.
package archive

import (
	"time"

	"github.com/cadre-oss/storyline/internal/timeline"
)

// TurnStatus is the lifecycle state of an archived turn.
type TurnStatus string

const (
	TurnPlaying    TurnStatus = "playing"
	TurnCompleted  TurnStatus = "completed"
	TurnSuperseded TurnStatus = "superseded"
)

// TurnRecord is one query of a session together with the timeline that was
// played for it.
type TurnRecord struct {
	ID          string                    `json:"id"`
	SessionID   string                    `json:"session_id"`
	Query       string                    `json:"query"`
	Status      TurnStatus                `json:"status"`
	Source      string                    `json:"source,omitempty"` // winning builder, empty if none
	Events      []timeline.SimulatedEvent `json:"events"`
	Answer      string                    `json:"answer,omitempty"`
	StartedAt   time.Time                 `json:"started_at"`
	CompletedAt time.Time                 `json:"completed_at,omitempty"`
	Metadata    map[string]interface{}    `json:"metadata,omitempty"`
}

// Done reports whether the turn reached a terminal status.
func (r *TurnRecord) Done() bool {
	return r.Status == TurnCompleted || r.Status == TurnSuperseded
}

// Duration is the wall time between start and completion, zero while the
// turn is still playing.
func (r *TurnRecord) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

func (r *TurnRecord) clone() *TurnRecord {
	cp := *r
	cp.Events = append([]timeline.SimulatedEvent(nil), r.Events...)
	if r.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
