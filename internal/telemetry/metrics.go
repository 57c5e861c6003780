package telemetry

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects runtime metrics
type Metrics struct {
	mu sync.RWMutex

	// Counters
	TimelinesBuilt    int64
	EventTimelines    int64
	ArtifactTimelines int64
	FallbackTimelines int64
	EmptyTimelines    int64
	EventsNarrated    int64
	TurnsStarted      int64
	TurnsCompleted    int64
	TurnsSuperseded   int64
	FeedFrames        int64

	// Gauges
	ActiveTurns    int64
	ActiveSessions int64

	// Histograms (simplified)
	turnDurations []time.Duration

	exporter Exporter
	// counters as of the last export
	exported map[string]int64
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		turnDurations: make([]time.Duration, 0, 1000),
	}
}

// RecordTimeline counts one built timeline by winning source.
func (m *Metrics) RecordTimeline(source string, events int) {
	atomic.AddInt64(&m.TimelinesBuilt, 1)
	atomic.AddInt64(&m.EventsNarrated, int64(events))
	switch source {
	case "event":
		atomic.AddInt64(&m.EventTimelines, 1)
	case "artifact":
		atomic.AddInt64(&m.ArtifactTimelines, 1)
	case "fallback":
		atomic.AddInt64(&m.FallbackTimelines, 1)
	default:
		atomic.AddInt64(&m.EmptyTimelines, 1)
	}
}

// IncTurnsStarted increments the turns started counter
func (m *Metrics) IncTurnsStarted() {
	atomic.AddInt64(&m.TurnsStarted, 1)
	atomic.AddInt64(&m.ActiveTurns, 1)
}

// IncTurnsCompleted increments the turns completed counter
func (m *Metrics) IncTurnsCompleted() {
	atomic.AddInt64(&m.TurnsCompleted, 1)
	atomic.AddInt64(&m.ActiveTurns, -1)
}

// IncTurnsSuperseded counts a turn abandoned because a newer one started.
func (m *Metrics) IncTurnsSuperseded() {
	atomic.AddInt64(&m.TurnsSuperseded, 1)
	atomic.AddInt64(&m.ActiveTurns, -1)
}

// IncFeedFrames counts agent frames read from the live feed.
func (m *Metrics) IncFeedFrames() {
	atomic.AddInt64(&m.FeedFrames, 1)
}

// AddActiveSessions adjusts the open session gauge.
func (m *Metrics) AddActiveSessions(delta int64) {
	atomic.AddInt64(&m.ActiveSessions, delta)
}

// RecordTurnDuration records how long a turn took from start to final caption
func (m *Metrics) RecordTurnDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnDurations = append(m.turnDurations, d)
}

// GetSummary returns a summary of collected metrics
func (m *Metrics) GetSummary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := map[string]interface{}{
		"timelines_built":    atomic.LoadInt64(&m.TimelinesBuilt),
		"event_timelines":    atomic.LoadInt64(&m.EventTimelines),
		"artifact_timelines": atomic.LoadInt64(&m.ArtifactTimelines),
		"fallback_timelines": atomic.LoadInt64(&m.FallbackTimelines),
		"empty_timelines":    atomic.LoadInt64(&m.EmptyTimelines),
		"events_narrated":    atomic.LoadInt64(&m.EventsNarrated),
		"turns_started":      atomic.LoadInt64(&m.TurnsStarted),
		"turns_completed":    atomic.LoadInt64(&m.TurnsCompleted),
		"turns_superseded":   atomic.LoadInt64(&m.TurnsSuperseded),
		"feed_frames":        atomic.LoadInt64(&m.FeedFrames),
		"active_turns":       atomic.LoadInt64(&m.ActiveTurns),
		"active_sessions":    atomic.LoadInt64(&m.ActiveSessions),
	}

	if len(m.turnDurations) > 0 {
		var total time.Duration
		for _, d := range m.turnDurations {
			total += d
		}
		summary["avg_turn_duration_ms"] = total.Milliseconds() / int64(len(m.turnDurations))
	}

	return summary
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range []*int64{
		&m.TimelinesBuilt, &m.EventTimelines, &m.ArtifactTimelines, &m.FallbackTimelines,
		&m.EmptyTimelines, &m.EventsNarrated, &m.TurnsStarted, &m.TurnsCompleted,
		&m.TurnsSuperseded, &m.FeedFrames, &m.ActiveTurns, &m.ActiveSessions,
	} {
		atomic.StoreInt64(c, 0)
	}

	m.turnDurations = m.turnDurations[:0]
	m.exported = nil
}

// SetExporter attaches a metrics exporter.
func (m *Metrics) SetExporter(e Exporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exporter = e
}

// FlushTurn exports the running totals and the counters that moved since
// the previous export. It is a no-op without an exporter.
func (m *Metrics) FlushTurn(event, sessionID, turnID string) error {
	totals := m.GetSummary()

	m.mu.Lock()
	exporter := m.exporter
	if exporter == nil {
		m.mu.Unlock()
		return nil
	}
	delta := make(map[string]int64)
	current := make(map[string]int64, len(totals))
	for k, v := range totals {
		n, ok := v.(int64)
		if !ok || strings.HasPrefix(k, "active_") || strings.HasPrefix(k, "avg_") {
			continue
		}
		current[k] = n
		if d := n - m.exported[k]; d != 0 {
			delta[k] = d
		}
	}
	m.exported = current
	m.mu.Unlock()

	return exporter.Export(TurnSnapshot{
		Timestamp: time.Now(),
		Event:     event,
		SessionID: sessionID,
		TurnID:    turnID,
		Totals:    totals,
		Delta:     delta,
	})
}
