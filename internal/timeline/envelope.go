package timeline

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/cadre-oss/storyline/internal/agents"
	"github.com/cadre-oss/storyline/internal/payload"
)

// NamedArtifact is one agent's entry of a shared_artifacts map.
type NamedArtifact struct {
	Agent    string
	Artifact map[string]any
}

// Artifacts is a shared_artifacts map that keeps the key order it was
// decoded with. Non-object values are dropped; a non-object map decodes
// to nil rather than failing the surrounding message.
type Artifacts []NamedArtifact

// UnmarshalJSON implements json.Unmarshaler.
func (a *Artifacts) UnmarshalJSON(b []byte) error {
	*a = nil
	if !isObject(b) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil {
		return nil
	}
	index := make(map[string]int)
	var out Artifacts
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil
		}
		var value map[string]any
		if !isObject(raw) || json.Unmarshal(raw, &value) != nil {
			continue
		}
		if i, dup := index[key]; dup {
			out[i].Artifact = value
			continue
		}
		index[key] = len(out)
		out = append(out, NamedArtifact{Agent: key, Artifact: value})
	}
	*a = out
	return nil
}

// MarshalJSON writes the artifacts back as an object in their stored order.
func (a Artifacts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, na := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(na.Agent)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(na.Artifact)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get finds an artifact by agent name, comparing normalized names.
func (a Artifacts) Get(agent string) (map[string]any, bool) {
	n := agents.NormalizeName(agent)
	for _, na := range a {
		if agents.NormalizeName(na.Agent) == n {
			return na.Artifact, true
		}
	}
	return nil, false
}

// LooseText decodes a JSON string, or the concatenated "text" fields of an
// array of content parts. Anything else decodes to "".
type LooseText string

// UnmarshalJSON implements json.Unmarshaler.
func (t *LooseText) UnmarshalJSON(b []byte) error {
	*t = ""
	var s string
	if json.Unmarshal(b, &s) == nil {
		*t = LooseText(strings.TrimSpace(s))
		return nil
	}
	var parts []any
	if json.Unmarshal(b, &parts) != nil {
		return nil
	}
	var texts []string
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			texts = append(texts, v)
		case map[string]any:
			if s, ok := payload.Text(v, "text"); ok {
				texts = append(texts, s)
			}
		}
	}
	*t = LooseText(strings.TrimSpace(strings.Join(texts, "\n")))
	return nil
}

// PlanSteps decodes a steps array, skipping malformed entries.
type PlanSteps []PlanStep

// UnmarshalJSON implements json.Unmarshaler.
func (p *PlanSteps) UnmarshalJSON(b []byte) error {
	var v any
	if json.Unmarshal(b, &v) != nil {
		*p = nil
		return nil
	}
	*p = payload.PlanStepsFrom(v)
	return nil
}

// ReasoningPlan is the planner block of response metadata.
type ReasoningPlan struct {
	Steps PlanSteps `json:"steps,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ReasoningPlan) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	type plain ReasoningPlan
	return lenient(json.Unmarshal(b, (*plain)(r)))
}

// ArtifactHolder is any object that may carry shared_artifacts.
type ArtifactHolder struct {
	SharedArtifacts Artifacts `json:"shared_artifacts,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *ArtifactHolder) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	type plain ArtifactHolder
	return lenient(json.Unmarshal(b, (*plain)(h)))
}

// ResponseMetadata is the metadata block of a final answer.
type ResponseMetadata struct {
	SharedArtifacts Artifacts       `json:"shared_artifacts,omitempty"`
	Data            *ArtifactHolder `json:"data,omitempty"`
	ReasoningPlan   *ReasoningPlan  `json:"reasoning_plan,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ResponseMetadata) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	type plain ResponseMetadata
	return lenient(json.Unmarshal(b, (*plain)(r)))
}

// FinalMessage is the final answer in any of its known envelope shapes.
// Every nested block decodes leniently: a field of the wrong shape is
// treated as absent.
type FinalMessage struct {
	Payload          *FinalMessage     `json:"payload,omitempty"`
	ResponseMetadata *ResponseMetadata `json:"response_metadata,omitempty"`
	Data             *ArtifactHolder   `json:"data,omitempty"`
	SharedArtifacts  Artifacts         `json:"shared_artifacts,omitempty"`
	ReasoningPlan    *ReasoningPlan    `json:"reasoning_plan,omitempty"`

	Agent   LooseText `json:"agent,omitempty"`
	Actor   LooseText `json:"actor,omitempty"`
	Content LooseText `json:"content,omitempty"`
	Message LooseText `json:"message,omitempty"`
	Text    LooseText `json:"text,omitempty"`
	Summary LooseText `json:"summary,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *FinalMessage) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	type plain FinalMessage
	return lenient(json.Unmarshal(b, (*plain)(m)))
}

// ParseFinalMessage decodes raw JSON. Only syntactically invalid JSON is an
// error; unknown shapes decode to an empty message.
func ParseFinalMessage(raw []byte) (*FinalMessage, error) {
	var m FinalMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// FinalMessageFromMap converts an already-decoded message.
func FinalMessageFromMap(v map[string]any) *FinalMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	m, err := ParseFinalMessage(b)
	if err != nil {
		return nil
	}
	return m
}

// envelopes lists the payload envelope before the message itself.
func (m *FinalMessage) envelopes() []*FinalMessage {
	if m == nil {
		return nil
	}
	if m.Payload != nil {
		return []*FinalMessage{m.Payload, m}
	}
	return []*FinalMessage{m}
}

// artifactAccessors are the known shared_artifacts locations, in priority
// order.
var artifactAccessors = []func(*FinalMessage) Artifacts{
	func(m *FinalMessage) Artifacts {
		if m.ResponseMetadata == nil {
			return nil
		}
		return m.ResponseMetadata.SharedArtifacts
	},
	func(m *FinalMessage) Artifacts {
		if m.Data == nil {
			return nil
		}
		return m.Data.SharedArtifacts
	},
	func(m *FinalMessage) Artifacts { return m.SharedArtifacts },
	func(m *FinalMessage) Artifacts {
		if m.ResponseMetadata == nil || m.ResponseMetadata.Data == nil {
			return nil
		}
		return m.ResponseMetadata.Data.SharedArtifacts
	},
}

var planAccessors = []func(*FinalMessage) []PlanStep{
	func(m *FinalMessage) []PlanStep {
		if m.ResponseMetadata == nil || m.ResponseMetadata.ReasoningPlan == nil {
			return nil
		}
		return m.ResponseMetadata.ReasoningPlan.Steps
	},
	func(m *FinalMessage) []PlanStep {
		if m.ReasoningPlan == nil {
			return nil
		}
		return m.ReasoningPlan.Steps
	},
}

// ResolveArtifacts returns the first non-empty shared_artifacts map found.
func (m *FinalMessage) ResolveArtifacts() Artifacts {
	for _, env := range m.envelopes() {
		for _, get := range artifactAccessors {
			if a := get(env); len(a) > 0 {
				return a
			}
		}
	}
	return nil
}

// ResolvePlan returns the reasoning plan steps, if any.
func (m *FinalMessage) ResolvePlan() []PlanStep {
	for _, env := range m.envelopes() {
		for _, get := range planAccessors {
			if s := get(env); len(s) > 0 {
				return s
			}
		}
	}
	return nil
}

// HumanText returns the literal answer text.
func (m *FinalMessage) HumanText() string {
	for _, env := range m.envelopes() {
		for _, t := range []LooseText{env.Content, env.Message, env.Text, env.Summary} {
			if t != "" {
				return string(t)
			}
		}
	}
	return ""
}

// Speaker returns the agent that authored the message, if stated.
func (m *FinalMessage) Speaker() string {
	for _, env := range m.envelopes() {
		if env.Agent != "" {
			return string(env.Agent)
		}
		if env.Actor != "" {
			return string(env.Actor)
		}
	}
	return ""
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

// lenient swallows type mismatches so one malformed field does not discard
// the whole envelope. Syntax errors cannot reach here; the outer decoder has
// already validated the document.
func lenient(err error) error {
	if _, ok := err.(*json.UnmarshalTypeError); ok {
		return nil
	}
	return err
}
