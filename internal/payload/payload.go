// Package payload converts inbound agent notifications of any shape into the
// canonical AgentEventPayload.
package payload

import (
	"encoding/json"
	"strings"
)

// RawEventPrefix marks the type of events emitted by backend agents.
const RawEventPrefix = "agent_"

// Lifecycle framing events that carry no narration.
const (
	TypeAgentStart = "agent_start"
	TypeAgentEnd   = "agent_end"
)

// AgentEventPayload is the normalized shape of one inbound notification.
type AgentEventPayload struct {
	Type    string         `json:"type,omitempty"`
	Actor   string         `json:"actor,omitempty"`
	Action  string         `json:"action,omitempty"`
	Summary string         `json:"summary,omitempty"`
	Detail  string         `json:"detail,omitempty"`
	Tone    string         `json:"tone,omitempty"`
	Event   map[string]any `json:"event,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// RawAgentEvent is the frame shape produced by the websocket collaborator.
type RawAgentEvent struct {
	Type      string         `json:"type"`
	Agent     string         `json:"agent,omitempty"`
	To        string         `json:"to,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	Timestamp any            `json:"timestamp,omitempty"`
}

// IsRawEvent reports whether msg has the RawAgentEvent shape.
func IsRawEvent(msg map[string]any) bool {
	t, ok := msg["type"].(string)
	return ok && strings.HasPrefix(t, RawEventPrefix)
}

// ParseRawEvent reads a RawAgentEvent out of a decoded JSON object. Fields of
// the wrong type are left empty.
func ParseRawEvent(msg map[string]any) (RawAgentEvent, bool) {
	if !IsRawEvent(msg) {
		return RawAgentEvent{}, false
	}
	ev := RawAgentEvent{Type: msg["type"].(string), Timestamp: msg["timestamp"]}
	ev.Agent, _ = msg["agent"].(string)
	ev.To, _ = msg["to"].(string)
	ev.Data, _ = msg["data"].(map[string]any)
	ev.Meta, _ = msg["meta"].(map[string]any)
	return ev, true
}

// RawEventFrom returns the RawAgentEvent carried by msg, either directly or
// wrapped in a payload envelope's event field.
func RawEventFrom(msg map[string]any) (RawAgentEvent, bool) {
	if ev, ok := ParseRawEvent(msg); ok {
		return ev, true
	}
	if inner, ok := Map(msg, "payload", "event"); ok {
		return ParseRawEvent(inner)
	}
	return RawAgentEvent{}, false
}

// Map returns the event as a decoded JSON object so it can be read with
// the same accessors as any other message.
func (e RawAgentEvent) Map() map[string]any {
	m := map[string]any{"type": e.Type}
	if e.Agent != "" {
		m["agent"] = e.Agent
	}
	if e.To != "" {
		m["to"] = e.To
	}
	if e.Data != nil {
		m["data"] = e.Data
	}
	if e.Meta != nil {
		m["meta"] = e.Meta
	}
	if e.Timestamp != nil {
		m["timestamp"] = e.Timestamp
	}
	return m
}

// Normalize converts a message-like value into an AgentEventPayload.
//
// A message that already carries a payload object is returned as is. A raw
// agent_* frame gets a synthesized payload wrapping the original frame. Any
// other shape yields false; that is the normal "no payload" outcome.
func Normalize(msg map[string]any) (*AgentEventPayload, bool) {
	if msg == nil {
		return nil, false
	}
	if inner, ok := msg["payload"].(map[string]any); ok && inner != nil {
		return decodePayload(inner), true
	}
	if !IsRawEvent(msg) {
		return nil, false
	}

	p := &AgentEventPayload{
		Type:  msg["type"].(string),
		Event: msg,
	}
	p.Actor, _ = Text(msg, "agent")
	p.Summary, _ = FirstText(msg, "meta.content", "data.summary", "data.message")
	p.Detail, _ = FirstText(msg, "meta.detail", "data.detail")
	if data, ok := Map(msg, "data"); ok {
		p.Data = data
	}
	return p, true
}

// decodePayload maps an already-normalized payload object onto the struct.
// A round trip through encoding/json keeps field handling in one place.
func decodePayload(m map[string]any) *AgentEventPayload {
	p := &AgentEventPayload{}
	b, err := json.Marshal(m)
	if err != nil {
		return p
	}
	if err := json.Unmarshal(b, p); err != nil {
		// Mistyped fields: keep whatever strings are usable.
		p = &AgentEventPayload{}
		p.Type, _ = m["type"].(string)
		p.Actor, _ = m["actor"].(string)
		p.Action, _ = m["action"].(string)
		p.Summary, _ = m["summary"].(string)
		p.Detail, _ = m["detail"].(string)
		p.Tone, _ = m["tone"].(string)
		p.Event, _ = m["event"].(map[string]any)
		p.Data, _ = m["data"].(map[string]any)
	}
	return p
}
