package testutil

import (
	"sync"
	"testing"

	"github.com/cadre-oss/storyline/internal/archive"
	"github.com/cadre-oss/storyline/internal/config"
	"github.com/cadre-oss/storyline/internal/event"
	"github.com/cadre-oss/storyline/internal/playback"
	"github.com/cadre-oss/storyline/internal/telemetry"
	"github.com/cadre-oss/storyline/internal/timeline"
)

// TestHarness wires a memory archive, an event bus with a recorder, a manual
// clock and metrics, ready to build players.
type TestHarness struct {
	T        *testing.T
	Config   *config.Config
	Archive  *archive.Manager
	EventBus *event.Bus
	Logger   *telemetry.Logger
	Metrics  *telemetry.Metrics
	Clock    *ManualClock
	Recorder *EventRecorder
}

// NewTestHarness creates a harness with the test configuration.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	mgr, err := archive.NewManager("memory", "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mgr.Close() })

	logger := TestLogger()
	bus := event.NewBus(logger)
	rec := NewEventRecorder()
	bus.Register(rec)

	return &TestHarness{
		T:        t,
		Config:   TestConfig(),
		Archive:  mgr,
		EventBus: bus,
		Logger:   logger,
		Metrics:  telemetry.NewMetrics(),
		Clock:    NewManualClock(),
		Recorder: rec,
	}
}

// NewPlayer builds a player on the harness collaborators.
func (h *TestHarness) NewPlayer(sessionID string) *playback.Player {
	h.T.Helper()
	settings, err := playback.SettingsFromConfig(h.Config)
	if err != nil {
		h.T.Fatal(err)
	}
	selector := timeline.NewSelector(nil, nil, h.Logger)
	selector.SetRecorder(h.Metrics)
	return playback.NewPlayer(sessionID, playback.Options{
		Selector: selector,
		Settings: settings,
		Clock:    h.Clock,
		Bus:      h.EventBus,
		Logger:   h.Logger,
		Metrics:  h.Metrics,
		Archive:  h.Archive,
	})
}

// AssertEventEmitted checks that an event with the given type was emitted.
func (h *TestHarness) AssertEventEmitted(eventType event.EventType) {
	h.T.Helper()
	if h.Recorder.Count(eventType) == 0 {
		h.T.Errorf("expected event %q to be emitted", eventType)
	}
}

// AssertNoEvent checks that an event type was NOT emitted.
func (h *TestHarness) AssertNoEvent(eventType event.EventType) {
	h.T.Helper()
	if h.Recorder.Count(eventType) > 0 {
		h.T.Errorf("expected event %q NOT to be emitted, but it was", eventType)
	}
}

// EventRecorder is a blocking hook that records every event it sees.
type EventRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (r *EventRecorder) Name() string                 { return "test-recorder" }
func (r *EventRecorder) Matches(event.EventType) bool { return true }
func (r *EventRecorder) IsBlocking() bool             { return true } // sync for tests

func (r *EventRecorder) Handle(ev event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *EventRecorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// OfType returns the recorded events of one type, in order.
func (r *EventRecorder) OfType(t event.EventType) []event.Event {
	var out []event.Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Count returns how many events of type t were recorded.
func (r *EventRecorder) Count(t event.EventType) int {
	return len(r.OfType(t))
}

// Reset forgets everything recorded.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
