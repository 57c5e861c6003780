package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"time"
)

// Hook processes playback events.
type Hook interface {
	// Name returns the hook's identifier.
	Name() string
	// Matches returns true if the hook should handle this event type.
	Matches(t EventType) bool
	// IsBlocking returns true if Emit should wait for this hook.
	IsBlocking() bool
	// Handle processes an event. For blocking hooks an error is returned
	// from Emit.
	Handle(ev Event) error
}

type baseHook struct {
	name     string
	events   []EventType
	blocking bool
}

func (h *baseHook) Name() string     { return h.name }
func (h *baseHook) IsBlocking() bool { return h.blocking }
func (h *baseHook) Matches(t EventType) bool {
	if len(h.events) == 0 {
		return true // no filter
	}
	for _, ev := range h.events {
		if ev == t {
			return true
		}
	}
	return false
}

// FuncHook adapts a function to the Hook interface.
type FuncHook struct {
	baseHook
	fn func(Event) error
}

func NewFuncHook(name string, events []EventType, blocking bool, fn func(Event) error) *FuncHook {
	return &FuncHook{
		baseHook: baseHook{name: name, events: events, blocking: blocking},
		fn:       fn,
	}
}

func (h *FuncHook) Handle(ev Event) error {
	if h.fn == nil {
		return nil
	}
	return h.fn(ev)
}

// ShellHook runs a shell command with the event in its environment.
//
// Environment variables set:
//   - STORYLINE_EVENT_TYPE: the event type string
//   - STORYLINE_EVENT_JSON: the JSON-encoded event
//   - STORYLINE_SESSION_ID, STORYLINE_TURN_ID: the turn the event belongs to
//   - STORYLINE_TEXT: the line a narrator would speak (step or caption text)
//   - STORYLINE_AGENT: the step's friendly agent name, step events only
type ShellHook struct {
	baseHook
	Command string
	Timeout time.Duration
	Stdout  io.Writer
	Stderr  io.Writer
}

func NewShellHook(name, command string, events []EventType, blocking bool) *ShellHook {
	return &ShellHook{
		baseHook: baseHook{name: name, events: events, blocking: blocking},
		Command:  command,
		Timeout:  30 * time.Second,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

func (h *ShellHook) Handle(ev Event) error {
	eventJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", h.Command)
	cmd.Env = append(os.Environ(),
		"STORYLINE_EVENT_TYPE="+string(ev.Type),
		"STORYLINE_EVENT_JSON="+string(eventJSON),
		"STORYLINE_SESSION_ID="+ev.SessionID,
		"STORYLINE_TURN_ID="+ev.TurnID,
	)
	cmd.Env = append(cmd.Env, narrationEnv(ev)...)
	cmd.Stdout = h.Stdout
	cmd.Stderr = h.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("shell hook %s failed: %w", h.name, err)
	}
	return nil
}

// narrationEnv exposes the human-readable part of step, caption and turn
// events.
func narrationEnv(ev Event) []string {
	str := func(key string) string {
		v, _ := ev.Data[key].(string)
		return v
	}
	var text, agent string
	switch ev.Type {
	case StepActive, StepCompleted:
		text, agent = str("primary_text"), str("friendly_name")
	case CaptionChanged:
		text = str("text")
	case TurnStarted, TurnSuperseded:
		text = str("query")
	default:
		return nil
	}
	env := []string{"STORYLINE_TEXT=" + text}
	if agent != "" {
		env = append(env, "STORYLINE_AGENT="+agent)
	}
	return env
}

// WebhookHook POSTs the event JSON to a URL.
type WebhookHook struct {
	baseHook
	URL     string
	Headers map[string]string
	client  *http.Client
}

func NewWebhookHook(name, url string, events []EventType, blocking bool) *WebhookHook {
	return &WebhookHook{
		baseHook: baseHook{name: name, events: events, blocking: blocking},
		URL:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *WebhookHook) Handle(ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook %s: %w", h.name, err)
	}
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Storyline-Event", string(ev.Type))
	if ev.TurnID != "" {
		req.Header.Set("X-Storyline-Turn", ev.TurnID)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s failed: %w", h.name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook %s returned status %d", h.name, resp.StatusCode)
	}
	return nil
}

// FullLogger is the logger a LogHook writes to.
type FullLogger interface {
	Logger
	Info(msg string, keyvals ...interface{})
	Debug(msg string, keyvals ...interface{})
}

// LogHook logs events at the configured level. Always non-blocking.
type LogHook struct {
	baseHook
	logger FullLogger
	level  string // "debug", "info", "warn"
}

func NewLogHook(name string, events []EventType, logger FullLogger, level string) *LogHook {
	if level == "" {
		level = "info"
	}
	return &LogHook{
		baseHook: baseHook{name: name, events: events, blocking: false},
		logger:   logger,
		level:    level,
	}
}

func (h *LogHook) Handle(ev Event) error {
	if h.logger == nil {
		return nil
	}
	msg := fmt.Sprintf("[event] %s", ev.Type)
	keyvals := make([]interface{}, 0, len(ev.Data)*2+6)
	keyvals = append(keyvals, "event_type", string(ev.Type))
	if ev.SessionID != "" {
		keyvals = append(keyvals, "session_id", ev.SessionID)
	}
	if ev.TurnID != "" {
		keyvals = append(keyvals, "turn_id", ev.TurnID)
	}
	for k, v := range ev.Data {
		keyvals = append(keyvals, k, v)
	}

	switch h.level {
	case "debug":
		h.logger.Debug(msg, keyvals...)
	case "warn":
		h.logger.Warn(msg, keyvals...)
	default:
		h.logger.Info(msg, keyvals...)
	}
	return nil
}
