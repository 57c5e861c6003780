package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Exporter receives a metrics snapshot at the end of every turn.
type Exporter interface {
	Export(snap TurnSnapshot) error
	Close() error
}

// TurnSnapshot is the metrics record written when a turn ends. Totals are
// the running counters; Delta holds what changed since the previous
// snapshot, so one line describes one turn.
type TurnSnapshot struct {
	Timestamp time.Time              `json:"timestamp"`
	Event     string                 `json:"event"`
	SessionID string                 `json:"session_id,omitempty"`
	TurnID    string                 `json:"turn_id,omitempty"`
	Totals    map[string]interface{} `json:"totals"`
	Delta     map[string]int64       `json:"delta,omitempty"`
}

// JSONLExporter appends snapshots to a JSON Lines file.
type JSONLExporter struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	enc   *json.Encoder
	lines int
}

// NewJSONLExporter opens path for appending, creating parent directories.
func NewJSONLExporter(path string) (*JSONLExporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create metrics directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics file: %w", err)
	}
	return &JSONLExporter{path: path, file: f, enc: json.NewEncoder(f)}, nil
}

// Export appends one line.
func (e *JSONLExporter) Export(snap TurnSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return fmt.Errorf("metrics exporter for %s is closed", e.path)
	}
	if err := e.enc.Encode(snap); err != nil {
		return err
	}
	e.lines++
	return nil
}

// Lines returns how many snapshots this exporter has written.
func (e *JSONLExporter) Lines() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines
}

func (e *JSONLExporter) Path() string { return e.path }

// Close closes the file. Later exports fail.
func (e *JSONLExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	return err
}
