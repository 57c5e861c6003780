// Package timeline reconciles live agent events, final-answer artifacts and
// the reasoning plan into one ordered, deduplicated narrative timeline.
package timeline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cadre-oss/storyline/internal/agents"
	"github.com/cadre-oss/storyline/internal/payload"
)

// PlanStep is one reasoning plan entry.
type PlanStep = payload.PlanStep

// Status is the playback status of a timeline entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Source identifies which builder produced an entry.
type Source string

const (
	SourceEvent     Source = "event"
	SourceArtifact  Source = "artifact"
	SourceSynthetic Source = "synthetic"
	SourceFallback  Source = "fallback"
)

// Per-agent caps.
const (
	StreamAgentCap   = 8
	ArtifactAgentCap = 6
	FallbackAgentCap = 6
)

// maxTextLen bounds primary text and detail.
const maxTextLen = 96

// SimulatedEvent is one narrated step of the timeline.
type SimulatedEvent struct {
	ID           string  `json:"id"`
	Agent        string  `json:"agent"`
	FriendlyName string  `json:"friendlyName"`
	PrimaryText  string  `json:"primaryText"`
	Detail       string  `json:"detail,omitempty"`
	Status       Status  `json:"status"`
	Timestamp    float64 `json:"timestamp"`
	Source       Source  `json:"source"`
}

// DedupeKey is the content identity of an event within one timeline.
func (e SimulatedEvent) DedupeKey() string {
	return dedupeKey(e.Agent, e.PrimaryText)
}

func dedupeKey(agent, primary string) string {
	return agents.NormalizeName(agent) + "\x00" + primary
}

// truncate collapses whitespace and shortens s to maxTextLen characters,
// cutting on a word boundary and appending "...".
func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxTextLen {
		return s
	}
	runes := []rune(s)
	cut := runes[:maxTextLen-3]
	if i := lastSpace(cut); i > len(cut)/2 {
		cut = cut[:i]
	}
	out := strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return out + "..."
}

func lastSpace(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == ' ' {
			return i
		}
	}
	return -1
}

// humanizeType turns "agent_tool_call" into "Agent tool call".
func humanizeType(t string) string {
	s := strings.TrimSpace(strings.ReplaceAll(t, "_", " "))
	if s == "" {
		return "Agent update"
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// eventSet enforces the timeline-wide dedupe key and a per-agent cap.
type eventSet struct {
	cap      int
	keys     map[string]bool
	perAgent map[string]int
	events   []SimulatedEvent
}

func newEventSet(cap int) *eventSet {
	return &eventSet{
		cap:      cap,
		keys:     make(map[string]bool),
		perAgent: make(map[string]int),
	}
}

// add appends ev unless it duplicates an existing entry or its agent is at
// the cap.
func (s *eventSet) add(ev SimulatedEvent) bool {
	if ev.PrimaryText == "" {
		return false
	}
	key := ev.DedupeKey()
	agent := agents.NormalizeName(ev.Agent)
	if s.keys[key] || s.perAgent[agent] >= s.cap {
		return false
	}
	s.keys[key] = true
	s.perAgent[agent]++
	s.events = append(s.events, ev)
	return true
}

func (s *eventSet) count(agent string) int {
	return s.perAgent[agents.NormalizeName(agent)]
}
