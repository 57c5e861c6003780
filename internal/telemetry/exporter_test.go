package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readSnapshots(t *testing.T, path string) []TurnSnapshot {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out []TurnSnapshot
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var snap TurnSnapshot
		if err := json.Unmarshal([]byte(line), &snap); err != nil {
			t.Fatalf("bad line %q: %v", line, err)
		}
		out = append(out, snap)
	}
	return out
}

func TestJSONLExporter_Export(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".storyline", "metrics.jsonl")

	exporter, err := NewJSONLExporter(path)
	if err != nil {
		t.Fatal(err)
	}
	if exporter.Path() != path {
		t.Errorf("expected path %q, got %q", path, exporter.Path())
	}

	for _, ev := range []string{"turn.completed", "turn.superseded"} {
		snap := TurnSnapshot{Timestamp: time.Now(), Event: ev, TurnID: "t1", Totals: map[string]interface{}{"turns_started": 1}}
		if err := exporter.Export(snap); err != nil {
			t.Fatal(err)
		}
	}
	if exporter.Lines() != 2 {
		t.Errorf("expected 2 lines written, got %d", exporter.Lines())
	}
	exporter.Close()

	if err := exporter.Export(TurnSnapshot{Event: "late"}); err == nil {
		t.Error("expected export after close to fail")
	}
	if err := exporter.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got %v", err)
	}

	snaps := readSnapshots(t, path)
	if len(snaps) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(snaps))
	}
	if snaps[1].Event != "turn.superseded" || snaps[1].TurnID != "t1" {
		t.Errorf("unexpected second snapshot %+v", snaps[1])
	}
}

func TestMetrics_FlushTurnDelta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	exporter, err := NewJSONLExporter(path)
	if err != nil {
		t.Fatal(err)
	}

	m := NewMetrics()
	m.SetExporter(exporter)

	m.IncTurnsStarted()
	m.RecordTimeline("artifact", 4)
	m.IncTurnsCompleted()
	if err := m.FlushTurn("turn.completed", "s1", "t1"); err != nil {
		t.Fatal(err)
	}

	m.IncTurnsStarted()
	m.IncTurnsSuperseded()
	if err := m.FlushTurn("turn.superseded", "s1", "t2"); err != nil {
		t.Fatal(err)
	}
	exporter.Close()

	snaps := readSnapshots(t, path)
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}

	first := snaps[0]
	if first.SessionID != "s1" || first.TurnID != "t1" {
		t.Errorf("expected turn labels, got %q/%q", first.SessionID, first.TurnID)
	}
	if first.Delta["events_narrated"] != 4 || first.Delta["artifact_timelines"] != 1 {
		t.Errorf("unexpected first delta %v", first.Delta)
	}

	second := snaps[1]
	if _, ok := second.Delta["events_narrated"]; ok {
		t.Errorf("expected unchanged counters left out, got %v", second.Delta)
	}
	if second.Delta["turns_superseded"] != 1 || second.Delta["turns_started"] != 1 {
		t.Errorf("unexpected second delta %v", second.Delta)
	}
	if second.Totals["turns_started"] != float64(2) {
		t.Errorf("expected running total 2, got %v", second.Totals["turns_started"])
	}
}

func TestMetrics_FlushTurnWithoutExporter(t *testing.T) {
	m := NewMetrics()
	if err := m.FlushTurn("turn.completed", "", ""); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
}

func TestMetrics_Summary(t *testing.T) {
	m := NewMetrics()
	m.RecordTimeline("event", 3)
	m.RecordTimeline("fallback", 2)
	m.RecordTimeline("", 0)
	m.IncTurnsStarted()
	m.IncTurnsStarted()
	m.IncTurnsSuperseded()
	m.RecordTurnDuration(100 * time.Millisecond)
	m.RecordTurnDuration(300 * time.Millisecond)

	s := m.GetSummary()
	checks := map[string]int64{
		"timelines_built":      3,
		"event_timelines":      1,
		"fallback_timelines":   1,
		"empty_timelines":      1,
		"events_narrated":      5,
		"active_turns":         1,
		"turns_superseded":     1,
		"avg_turn_duration_ms": 200,
	}
	for key, want := range checks {
		if s[key] != want {
			t.Errorf("%s: expected %d, got %v", key, want, s[key])
		}
	}

	m.Reset()
	if m.GetSummary()["timelines_built"] != int64(0) {
		t.Error("expected counters reset")
	}
}
