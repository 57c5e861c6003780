package testutil

import (
	"testing"

	"github.com/cadre-oss/storyline/internal/config"
	"github.com/cadre-oss/storyline/internal/telemetry"
	"github.com/cadre-oss/storyline/internal/timeline"
)

// TestLogger returns a logger suitable for tests (verbose, no file output).
func TestLogger() *telemetry.Logger {
	return telemetry.NewLogger(true)
}

// TestConfig returns the default configuration with a memory archive and
// round playback delays.
func TestConfig() *config.Config {
	cfg := config.Default()
	cfg.Name = "test-project"
	cfg.Logging.Level = "debug"
	cfg.Archive.Driver = "memory"
	cfg.Archive.Path = ""
	cfg.Playback.ShimmerDelay = "500ms"
	cfg.Playback.WaitingDelay = "100ms"
	cfg.Playback.StepDelay = "1s"
	cfg.Playback.CompleteDelay = "500ms"
	cfg.Playback.FinalDelay = "2s"
	return cfg
}

// AgentFrame builds a RawAgentEvent-shaped websocket frame.
func AgentFrame(eventType, agent, message string, timestamp interface{}) map[string]any {
	frame := map[string]any{
		"type":  eventType,
		"agent": agent,
		"data":  map[string]any{"message": message},
	}
	if timestamp != nil {
		frame["timestamp"] = timestamp
	}
	return frame
}

// NewestFirst reverses chronological frames into the feed buffer order.
func NewestFirst(frames ...map[string]any) []map[string]any {
	out := make([]map[string]any, len(frames))
	for i, f := range frames {
		out[len(frames)-1-i] = f
	}
	return out
}

// FinalMessage parses a final answer fixture or fails the test.
func FinalMessage(t *testing.T, raw string) *timeline.FinalMessage {
	t.Helper()
	msg, err := timeline.ParseFinalMessage([]byte(raw))
	if err != nil {
		t.Fatalf("bad final message fixture: %v", err)
	}
	return msg
}

// DatabaseAnswer is a final answer carrying one database artifact with five
// rows exported to /tmp/out.json.
const DatabaseAnswer = `{
  "content": "Encontré 5 movimientos.",
  "response_metadata": {
    "shared_artifacts": {
      "capi_datab": {"rowcount": 5, "export_file": "/tmp/out.json"}
    }
  }
}`

// PlannedAnswer names two agents in its plan and carries no artifacts.
const PlannedAnswer = `{
  "content": "Listo.",
  "response_metadata": {
    "reasoning_plan": {"steps": [
      {"id": "1", "title": "Consultar base", "agent": "capi_datab"},
      {"id": "2", "title": "Revisar cajas", "agent": "capi_elcajas"}
    ]}
  }
}`
