package timeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cadre-oss/storyline/internal/narrative"
)

func TestTruncate(t *testing.T) {
	if got := truncate("  short   text "); got != "short text" {
		t.Errorf("expected whitespace collapsed, got %q", got)
	}

	long := strings.Repeat("word ", 40)
	got := truncate(long)
	if len([]rune(got)) > maxTextLen {
		t.Errorf("expected at most %d runes, got %d", maxTextLen, len([]rune(got)))
	}
	if !strings.HasSuffix(got, "word...") {
		t.Errorf("expected cut on a word boundary, got %q", got)
	}

	unbroken := strings.Repeat("x", 200)
	if got := truncate(unbroken); len(got) != maxTextLen {
		t.Errorf("expected hard cut to %d, got %d", maxTextLen, len(got))
	}
}

func TestHumanizeType(t *testing.T) {
	tests := map[string]string{
		"agent_tool_call": "Agent tool call",
		"":                "Agent update",
		"progress":        "Progress",
	}
	for in, want := range tests {
		if got := humanizeType(in); got != want {
			t.Errorf("humanizeType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEventSet(t *testing.T) {
	set := newEventSet(2)
	add := func(agent, text string) bool {
		return set.add(SimulatedEvent{Agent: agent, PrimaryText: text})
	}
	if !add("capi_datab", "one") || !add("CAPI-DATAB", "two") {
		t.Fatal("expected first two events accepted")
	}
	if add("capi_datab", "three") {
		t.Error("expected cap to reject third event")
	}
	if add("capi_elcajas", "") {
		t.Error("expected empty text rejected")
	}
	if !add("capi_elcajas", "one") {
		t.Error("expected same text from another agent accepted")
	}
	if add("capi-elcajas", "one") {
		t.Error("expected duplicate key rejected")
	}
	if set.count("capidatab") != 2 {
		t.Errorf("expected 2 events for capi_datab, got %d", set.count("capidatab"))
	}
}

func TestFromArtifacts_SummaryDetailOnLastStep(t *testing.T) {
	artifacts := Artifacts{{Agent: "capi_noticias", Artifact: map[string]any{"summary_message": "Tasas estables"}}}
	events := BuildFromArtifacts(artifacts, nil, nil)
	if len(events) == 0 {
		t.Fatal("expected events")
	}
	last := events[len(events)-1]
	if last.Detail != "Tasas estables" {
		t.Errorf("expected summary on last step, got %+v", last)
	}
	for i, ev := range events {
		if ev.Timestamp != float64(i) {
			t.Errorf("expected sequence timestamps, got %v at %d", ev.Timestamp, i)
		}
	}
}

func TestFromArtifacts_SummaryDetailSurvivesCap(t *testing.T) {
	var steps []string
	for i := 1; i <= narrative.MaxSteps; i++ {
		steps = append(steps, fmt.Sprintf("Ledger check %d", i))
	}
	catalog := narrative.NewCatalog(narrative.RuleSpec{
		ActionType: "ledger_audit",
		Name:       "ledger",
		Keywords:   []string{"ledger"},
		Steps:      steps,
	})
	artifacts := Artifacts{{Agent: "capi_auditor", Artifact: map[string]any{
		"action_type":     "ledger_audit",
		"description":     "ledger review",
		"summary_message": "Auditoría cerrada",
	}}}

	events := BuildFromArtifacts(artifacts, nil, catalog)
	if len(events) != ArtifactAgentCap {
		t.Fatalf("expected %d events, got %d", ArtifactAgentCap, len(events))
	}
	last := events[len(events)-1]
	if last.PrimaryText != fmt.Sprintf("Ledger check %d", ArtifactAgentCap) {
		t.Errorf("expected last kept step, got %q", last.PrimaryText)
	}
	if last.Detail != "Auditoría cerrada" {
		t.Errorf("expected summary on the last kept step, got %q", last.Detail)
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Detail != "" {
			t.Errorf("expected no detail on %q, got %q", ev.PrimaryText, ev.Detail)
		}
	}
}

func TestFromArtifacts_ExplicitActionType(t *testing.T) {
	artifacts := Artifacts{{Agent: "custom_worker", Artifact: map[string]any{"action_type": "DATABASE_QUERY", "rowcount": 3.0}}}
	events := BuildFromArtifacts(artifacts, nil, nil)
	var found bool
	for _, ev := range events {
		if ev.PrimaryText == "Retrieved 3 results" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected database narration, got %+v", events)
	}
}
