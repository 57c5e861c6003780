package telemetry

import (
	"context"

	"github.com/google/uuid"
)

type turnKey struct{}

// TurnContext carries correlation IDs for one narrated turn.
type TurnContext struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	TraceID   string `json:"trace_id"`
	Query     string `json:"query,omitempty"`
	Agent     string `json:"agent,omitempty"`
}

// NewTurnContext creates a turn context with a fresh TraceID.
func NewTurnContext(sessionID, turnID string) *TurnContext {
	return &TurnContext{
		SessionID: sessionID,
		TurnID:    turnID,
		TraceID:   uuid.NewString(),
	}
}

// WithQuery returns a copy with the user query set.
func (tc *TurnContext) WithQuery(query string) *TurnContext {
	child := *tc
	child.Query = query
	return &child
}

// WithAgent returns a copy with the agent set.
func (tc *TurnContext) WithAgent(name string) *TurnContext {
	child := *tc
	child.Agent = name
	return &child
}

// Fields returns key-value pairs suitable for structured logging.
func (tc *TurnContext) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"session_id": tc.SessionID,
		"turn_id":    tc.TurnID,
		"trace_id":   tc.TraceID,
	}
	if tc.Query != "" {
		fields["query"] = tc.Query
	}
	if tc.Agent != "" {
		fields["agent"] = tc.Agent
	}
	return fields
}

// ContextWithTurn stores a TurnContext in the context.
func ContextWithTurn(ctx context.Context, tc *TurnContext) context.Context {
	return context.WithValue(ctx, turnKey{}, tc)
}

// TurnFromContext extracts a TurnContext from the context, or nil.
func TurnFromContext(ctx context.Context) *TurnContext {
	tc, _ := ctx.Value(turnKey{}).(*TurnContext)
	return tc
}

// WithTurn returns a logger enriched with turn fields from the context.
func (l *Logger) WithTurn(ctx context.Context) *Logger {
	tc := TurnFromContext(ctx)
	if tc == nil {
		return l
	}
	return l.WithFields(tc.Fields())
}
