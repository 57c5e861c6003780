package timeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cadre-oss/storyline/internal/agents"
	"github.com/cadre-oss/storyline/internal/payload"
)

// Tried in order to find which agent an event belongs to.
var agentPaths = []string{
	"agent",
	"data.agent",
	"data.agent_name",
	"data.actor",
	"data.metadata.agent",
	"meta.agent",
	"data.from",
	"data.node",
	"data.current_node",
	"data.state.current_node",
	"to",
	"meta.node",
}

var timestampPaths = [][]string{
	{"timestamp"},
	{"data", "timestamp"},
	{"meta", "timestamp"},
}

var primaryPaths = []string{
	"data.message",
	"data.content",
	"data.detail",
	"data.description",
	"data.summary",
	"meta.message",
	"meta.content",
	"meta.summary",
	"data.status",
	"data.reason",
	"meta.status",
}

var detailPaths = []string{
	"data.detail",
	"data.description",
	"data.reason",
	"meta.detail",
	"meta.description",
	"data.summary",
}

const silentAgentText = "No activity reported"

type streamEntry struct {
	event SimulatedEvent
	order int
}

// FromStream builds a timeline from the live event buffer (newest first).
// It returns nil when no event can be narrated; silent agents are only
// synthesized alongside real activity.
func (s *Selector) FromStream(buffer []map[string]any, artifacts Artifacts, plan []PlanStep) []SimulatedEvent {
	total := len(buffer)
	set := newEventSet(StreamAgentCap)
	fullKeys := make(map[string]bool)
	var entries []streamEntry
	var streamAgents []string

	maxTS := math.Inf(-1)
	lastTS, haveTS := 0.0, false

	for i := 0; i < total; i++ {
		raw, ok := payload.RawEventFrom(buffer[total-1-i])
		if !ok {
			continue
		}
		m := raw.Map()

		agent, _ := payload.FirstText(m, agentPaths...)
		if agent == "" || agents.IsOrchestration(agent) {
			continue
		}
		streamAgents = append(streamAgents, agent)
		if raw.Type == payload.TypeAgentStart || raw.Type == payload.TypeAgentEnd {
			continue
		}

		ts, ok := resolveTimestamp(m)
		switch {
		case ok:
			lastTS, haveTS = ts, true
		case haveTS:
			ts = lastTS
		default:
			ts = float64(i)
		}

		primary, ok := payload.FirstText(m, primaryPaths...)
		if !ok {
			primary = humanizeType(raw.Type)
		}
		detail := pickDetail(m, primary)
		if detail == "" {
			if art, ok := artifacts.Get(agent); ok {
				if summary, ok := payload.Text(art, "summary_message"); ok && summary != primary {
					detail = summary
				}
			}
		}
		primary, detail = truncate(primary), truncate(detail)

		norm := agents.NormalizeName(agent)
		full := strings.Join([]string{norm, raw.Type, primary, detail}, "\x00")
		if fullKeys[full] {
			continue
		}
		ev := SimulatedEvent{
			ID:           fmt.Sprintf("event-%s-%d", norm, i),
			Agent:        agent,
			FriendlyName: s.registry.FriendlyName(agent),
			PrimaryText:  primary,
			Detail:       detail,
			Status:       StatusPending,
			Timestamp:    ts,
			Source:       SourceEvent,
		}
		if !set.add(ev) {
			continue
		}
		fullKeys[full] = true
		entries = append(entries, streamEntry{event: ev, order: i})
		if ts > maxTS {
			maxTS = ts
		}
	}

	if len(entries) == 0 {
		return nil
	}

	// Silent agents go after every real event, in expected-agent order.
	silent := 0
	for _, agent := range expectedAgents(plan, artifacts, streamAgents) {
		if set.count(agent) > 0 {
			continue
		}
		silent++
		norm := agents.NormalizeName(agent)
		friendly := s.registry.FriendlyName(agent)
		ev := SimulatedEvent{
			ID:           fmt.Sprintf("synthetic-%s", norm),
			Agent:        agent,
			FriendlyName: friendly,
			PrimaryText:  silentAgentText,
			Detail:       truncate(silentDetail(friendly, planStepFor(plan, agent))),
			Status:       StatusPending,
			Timestamp:    maxTS + float64(silent),
			Source:       SourceSynthetic,
		}
		if set.add(ev) {
			entries = append(entries, streamEntry{event: ev, order: total + silent})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].event.Timestamp != entries[j].event.Timestamp {
			return entries[i].event.Timestamp < entries[j].event.Timestamp
		}
		return entries[i].order < entries[j].order
	})

	out := make([]SimulatedEvent, len(entries))
	for i, e := range entries {
		out[i] = e.event
	}
	return out
}

// expectedAgents is the ordered union of plan agents, artifact agents and
// agents seen in the stream, without orchestration agents.
func expectedAgents(plan []PlanStep, artifacts Artifacts, seen []string) []string {
	var out []string
	index := make(map[string]bool)
	add := func(agent string) {
		n := agents.NormalizeName(agent)
		if n == "" || index[n] || agents.IsOrchestration(agent) {
			return
		}
		index[n] = true
		out = append(out, agent)
	}
	for _, step := range plan {
		add(step.Agent)
	}
	for _, a := range artifacts {
		add(a.Agent)
	}
	for _, a := range seen {
		add(a)
	}
	return out
}

func planStepFor(plan []PlanStep, agent string) *PlanStep {
	n := agents.NormalizeName(agent)
	for i := range plan {
		if agents.NormalizeName(plan[i].Agent) == n {
			return &plan[i]
		}
	}
	return nil
}

func silentDetail(friendly string, step *PlanStep) string {
	if step != nil {
		if intent := firstNonEmpty(step.Title, step.Description); intent != "" {
			return fmt.Sprintf("%s was planned for %q but emitted no events", friendly, intent)
		}
	}
	return friendly + " emitted no events during this request"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// pickDetail returns the first secondary field that differs from primary.
func pickDetail(m map[string]any, primary string) string {
	for _, p := range detailPaths {
		if s, ok := payload.Text(m, strings.Split(p, ".")...); ok && s != primary {
			return s
		}
	}
	return ""
}

func resolveTimestamp(m map[string]any) (float64, bool) {
	for _, p := range timestampPaths {
		if ts, ok := parseTimestamp(payload.Lookup(m, p...)); ok {
			return ts, true
		}
	}
	return 0, false
}

// parseTimestamp accepts numbers, numeric strings and RFC 3339 strings.
// RFC 3339 values become Unix milliseconds.
func parseTimestamp(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return 0, false
			}
			return f, true
		}
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return float64(parsed.UnixMilli()), true
		}
		return 0, false
	}
	f, ok := payload.Number(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
