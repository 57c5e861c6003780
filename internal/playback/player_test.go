package playback_test

import (
	"testing"
	"time"

	"github.com/cadre-oss/storyline/internal/archive"
	sterrors "github.com/cadre-oss/storyline/internal/errors"
	"github.com/cadre-oss/storyline/internal/event"
	"github.com/cadre-oss/storyline/internal/playback"
	"github.com/cadre-oss/storyline/internal/testutil"
	"github.com/cadre-oss/storyline/internal/timeline"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestPlayer_FullTurn(t *testing.T) {
	h := testutil.NewTestHarness(t)
	p := h.NewPlayer("s1")

	turnID, err := p.StartTurn("cuantos movimientos tengo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := p.Snapshot()
	if s.Phase() != playback.PhaseShimmer || s.Caption.Text != "Understanding your request" {
		t.Errorf("expected shimmer caption, got %s %q", s.Phase(), s.Caption.Text)
	}

	h.Clock.Advance(500 * time.Millisecond)
	if s = p.Snapshot(); s.Phase() != playback.PhaseWaiting || s.Caption.Text != "Coordinating agents" {
		t.Errorf("expected waiting caption, got %s %q", s.Phase(), s.Caption.Text)
	}

	res, err := p.Deliver(timeline.Input{FinalMessage: testutil.FinalMessage(t, testutil.DatabaseAnswer)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != timeline.SourceArtifact {
		t.Fatalf("expected artifact timeline, got %q", res.Source)
	}
	n := len(res.Events)
	if n < 2 {
		t.Fatalf("expected at least 2 events, got %d", n)
	}
	if s = p.Snapshot(); s.CurrentEventIndex != 0 || s.Completed() != 0 {
		t.Errorf("expected untouched timeline, got cursor %d completed %d", s.CurrentEventIndex, s.Completed())
	}

	h.Clock.Advance(100 * time.Millisecond)
	s = p.Snapshot()
	if s.Phase() != playback.PhasePlaying || s.Events[0].Status != timeline.StatusActive {
		t.Fatalf("expected first event active, got %s %s", s.Phase(), s.Events[0].Status)
	}
	if s.IsWaitingForBatch {
		t.Error("waiting flag should clear once playback starts")
	}
	if s.Caption.Text != s.Events[0].PrimaryText {
		t.Errorf("expected caption to follow the active step, got %q", s.Caption.Text)
	}

	h.Clock.Advance(time.Second)
	s = p.Snapshot()
	if s.Events[0].Status != timeline.StatusCompleted || s.Events[1].Status != timeline.StatusActive || s.CurrentEventIndex != 1 {
		t.Errorf("expected second step active, got %s/%s at %d", s.Events[0].Status, s.Events[1].Status, s.CurrentEventIndex)
	}

	h.Clock.Advance(time.Duration(n-2) * time.Second)
	if isClosed(p.Done()) {
		t.Fatal("turn finished before the last step completed")
	}
	h.Clock.Advance(500 * time.Millisecond)
	s = p.Snapshot()
	if s.Phase() != playback.PhaseFinal || s.Completed() != n {
		t.Errorf("expected final phase with %d completed, got %s with %d", n, s.Phase(), s.Completed())
	}
	if !isClosed(p.Done()) {
		t.Error("expected done channel closed")
	}

	h.Clock.Advance(2 * time.Second)
	s = p.Snapshot()
	if s.Caption.Text != "" || len(s.Events) != n {
		t.Errorf("expected cleared caption with timeline kept, got %q and %d events", s.Caption.Text, len(s.Events))
	}

	rec, err := h.Archive.GetTurn(turnID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != archive.TurnCompleted || rec.Source != "artifact" || len(rec.Events) != n {
		t.Errorf("unexpected archived turn %+v", rec)
	}
	if rec.Answer != "Encontré 5 movimientos." {
		t.Errorf("expected answer archived, got %q", rec.Answer)
	}

	if got := h.Recorder.Count(event.StepActive); got != n {
		t.Errorf("expected %d step.active events, got %d", n, got)
	}
	if got := h.Recorder.Count(event.StepCompleted); got != n {
		t.Errorf("expected %d step.completed events, got %d", n, got)
	}
	h.AssertEventEmitted(event.TurnCompleted)
	h.AssertNoEvent(event.TurnSuperseded)

	if h.Metrics.TurnsCompleted != 1 || h.Metrics.ArtifactTimelines != 1 {
		t.Errorf("expected metrics recorded, got %+v", h.Metrics.GetSummary())
	}
}

func TestPlayer_NewTurnCancelsPrevious(t *testing.T) {
	h := testutil.NewTestHarness(t)
	p := h.NewPlayer("s1")

	first, _ := p.StartTurn("first")
	firstDone := p.Done()
	frames := testutil.NewestFirst(
		testutil.AgentFrame("agent_progress", "capi_datab", "Consultando saldos", 1000),
		testutil.AgentFrame("agent_progress", "capi_datab", "Calculando totales", 2000),
		testutil.AgentFrame("agent_progress", "capi_datab", "Preparando respuesta", 3000),
	)
	if _, err := p.Deliver(timeline.Input{AgentEvents: frames}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.Clock.Advance(100 * time.Millisecond)

	second, err := p.StartTurn("second")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second == first {
		t.Fatal("expected a new turn ID")
	}
	if !isClosed(firstDone) {
		t.Error("superseded turn should be done")
	}
	h.AssertEventEmitted(event.TurnSuperseded)

	s := p.Snapshot()
	if s.Query != "second" || len(s.Events) != 0 || s.CurrentEventIndex != -1 {
		t.Errorf("expected clean state for second turn, got %+v", s)
	}

	h.Recorder.Reset()
	h.Clock.Advance(time.Hour)
	if got := h.Recorder.Count(event.StepActive) + h.Recorder.Count(event.StepCompleted); got != 0 {
		t.Errorf("stale timers from the first turn fired %d step events", got)
	}
	if got := h.Recorder.Count(event.TurnCompleted); got != 0 {
		t.Error("first turn completed after being superseded")
	}

	rec, _ := h.Archive.GetTurn(first)
	if rec.Status != archive.TurnSuperseded {
		t.Errorf("expected superseded archive status, got %s", rec.Status)
	}
	if h.Metrics.TurnsSuperseded != 1 {
		t.Errorf("expected 1 superseded turn, got %d", h.Metrics.TurnsSuperseded)
	}
}

func TestPlayer_EmptyTimelineCompletesImmediately(t *testing.T) {
	h := testutil.NewTestHarness(t)
	p := h.NewPlayer("s1")

	p.StartTurn("hola")
	res, err := p.Deliver(timeline.Input{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Events) != 0 {
		t.Fatalf("expected empty timeline, got %d", len(res.Events))
	}

	s := p.Snapshot()
	if s.Phase() != playback.PhaseFinal || s.Caption.Text != h.Config.Playback.Captions.Empty {
		t.Errorf("expected final caption, got %s %q", s.Phase(), s.Caption.Text)
	}
	if !isClosed(p.Done()) {
		t.Error("expected turn done without advancing the clock")
	}
	if s.CurrentEventIndex != -1 {
		t.Errorf("expected cursor -1, got %d", s.CurrentEventIndex)
	}
}

func TestPlayer_StreamTimelineWithSilentAgent(t *testing.T) {
	h := testutil.NewTestHarness(t)
	p := h.NewPlayer("s1")

	p.StartTurn("saldo y cajas")
	frames := testutil.NewestFirst(
		testutil.AgentFrame("agent_progress", "capi_datab", "Consultando saldos", 1000),
	)
	res, err := p.Deliver(timeline.Input{
		AgentEvents:  frames,
		FinalMessage: testutil.FinalMessage(t, testutil.PlannedAnswer),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != timeline.SourceEvent || len(res.Events) != 2 {
		t.Fatalf("expected stream timeline with 2 events, got %s with %d", res.Source, len(res.Events))
	}
	if res.Events[1].Source != timeline.SourceSynthetic {
		t.Errorf("expected silent agent last, got %+v", res.Events[1])
	}

	h.Clock.Advance(10 * time.Second)
	if !isClosed(p.Done()) {
		t.Error("expected turn done")
	}
}

func TestPlayer_DeliverErrors(t *testing.T) {
	h := testutil.NewTestHarness(t)
	p := h.NewPlayer("s1")

	if _, err := p.Deliver(timeline.Input{}); sterrors.AsCode(err) != sterrors.CodeTurnNotFound {
		t.Errorf("expected TURN_NOT_FOUND before any turn, got %v", err)
	}
	if !isClosed(p.Done()) {
		t.Error("Done before the first turn should be closed")
	}

	p.StartTurn("q")
	frames := testutil.NewestFirst(testutil.AgentFrame("agent_progress", "capi_datab", "Consultando", 1))
	if _, err := p.Deliver(timeline.Input{AgentEvents: frames}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Deliver(timeline.Input{AgentEvents: frames}); sterrors.AsCode(err) != sterrors.CodeInputInvalid {
		t.Errorf("expected INPUT_INVALID on second delivery, got %v", err)
	}
}

func TestPlayer_Close(t *testing.T) {
	h := testutil.NewTestHarness(t)
	p := h.NewPlayer("s1")

	p.StartTurn("q")
	p.Close()
	if !isClosed(p.Done()) {
		t.Error("close should finish the turn in progress")
	}

	h.Recorder.Reset()
	h.Clock.Advance(time.Minute)
	if len(h.Recorder.Events()) != 0 {
		t.Errorf("expected no events after close, got %d", len(h.Recorder.Events()))
	}
}

func TestPlayer_CaptionKeyAdvances(t *testing.T) {
	h := testutil.NewTestHarness(t)
	p := h.NewPlayer("s1")

	p.StartTurn("one")
	k1 := p.Snapshot().Caption.Key
	p.StartTurn("two")
	k2 := p.Snapshot().Caption.Key
	if k2 <= k1 {
		t.Errorf("expected caption key to advance across turns, got %d then %d", k1, k2)
	}
	if p.SessionID() != "s1" || p.TurnID() == "" {
		t.Errorf("unexpected identifiers %q %q", p.SessionID(), p.TurnID())
	}
}
