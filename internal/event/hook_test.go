package event

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cadre-oss/storyline/internal/config"
)

func TestShellHook_Matches(t *testing.T) {
	hook := NewShellHook("test", "echo hi", []EventType{TurnStarted, TurnCompleted}, false)

	if !hook.Matches(TurnStarted) {
		t.Error("should match TurnStarted")
	}
	if !hook.Matches(TurnCompleted) {
		t.Error("should match TurnCompleted")
	}
	if hook.Matches(StepActive) {
		t.Error("should not match StepActive")
	}
}

func TestShellHook_Environment(t *testing.T) {
	var out bytes.Buffer
	hook := NewShellHook("env", `printf "%s|%s|%s" "$STORYLINE_EVENT_TYPE" "$STORYLINE_SESSION_ID" "$STORYLINE_TURN_ID"`, nil, true)
	hook.Stdout = &out

	ev := NewEvent(TurnCompleted, map[string]interface{}{"events": 3}).ForTurn("s1", "t9")
	if err := hook.Handle(ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "turn.completed|s1|t9" {
		t.Errorf("expected event env vars, got %q", got)
	}
}

func TestShellHook_NarrationEnvironment(t *testing.T) {
	var out bytes.Buffer
	hook := NewShellHook("say", `printf "%s: %s" "$STORYLINE_AGENT" "$STORYLINE_TEXT"`, []EventType{StepActive}, true)
	hook.Stdout = &out

	ev := NewEvent(StepActive, map[string]interface{}{
		"friendly_name": "Database Agent",
		"primary_text":  "Consultando movimientos",
	})
	if err := hook.Handle(ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "Database Agent: Consultando movimientos" {
		t.Errorf("expected step narration in env, got %q", got)
	}
}

func TestNarrationEnv(t *testing.T) {
	tests := []struct {
		ev   Event
		want []string
	}{
		{NewEvent(CaptionChanged, map[string]interface{}{"text": "Pensando"}), []string{"STORYLINE_TEXT=Pensando"}},
		{NewEvent(TurnStarted, map[string]interface{}{"query": "saldo"}), []string{"STORYLINE_TEXT=saldo"}},
		{NewEvent(TurnCompleted, map[string]interface{}{"events": 3}), nil},
	}
	for _, tt := range tests {
		got := narrationEnv(tt.ev)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("%s: expected %v, got %v", tt.ev.Type, tt.want, got)
		}
	}
}

func TestShellHook_Failure(t *testing.T) {
	hook := NewShellHook("test", "false", []EventType{TurnStarted}, true)
	hook.Stderr = io.Discard

	if err := hook.Handle(NewEvent(TurnStarted, nil)); err == nil {
		t.Fatal("expected error from failed shell command")
	}
}

func TestWebhookHook_Execute(t *testing.T) {
	var received struct {
		mu     sync.Mutex
		body   []byte
		header string
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received.mu.Lock()
		received.body = body
		received.header = r.Header.Get("X-Storyline-Event") + "|" + r.Header.Get("Authorization")
		received.mu.Unlock()
		w.WriteHeader(200)
	}))
	defer server.Close()

	hook := NewWebhookHook("test", server.URL, []EventType{TurnCompleted}, true)
	hook.Headers = map[string]string{"Authorization": "Bearer abc"}
	ev := NewEvent(TurnCompleted, map[string]interface{}{"source": "artifact"})
	if err := hook.Handle(ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	received.mu.Lock()
	defer received.mu.Unlock()

	var payload Event
	if err := json.Unmarshal(received.body, &payload); err != nil {
		t.Fatalf("failed to parse webhook payload: %v", err)
	}
	if payload.Type != TurnCompleted {
		t.Errorf("expected TurnCompleted, got %s", payload.Type)
	}
	if received.header != "turn.completed|Bearer abc" {
		t.Errorf("expected event and configured headers, got %q", received.header)
	}
}

func TestWebhookHook_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer server.Close()

	hook := NewWebhookHook("test", server.URL, []EventType{TurnSuperseded}, true)
	if err := hook.Handle(NewEvent(TurnSuperseded, nil)); err == nil {
		t.Fatal("expected error from 500 status")
	}
}

func TestLogHook_Levels(t *testing.T) {
	logger := &testLogger{}
	NewLogHook("info", nil, logger, "").Handle(NewEvent(StepActive, nil))
	NewLogHook("debug", nil, logger, "debug").Handle(NewEvent(StepActive, nil))
	NewLogHook("warn", nil, logger, "warn").Handle(NewEvent(StepActive, nil))

	if len(logger.infos) != 1 || len(logger.debugs) != 1 || len(logger.warnings) != 1 {
		t.Errorf("expected one message per level, got info=%d debug=%d warn=%d",
			len(logger.infos), len(logger.debugs), len(logger.warnings))
	}
	if logger.infos[0] != "[event] step.active" {
		t.Errorf("unexpected message %q", logger.infos[0])
	}
}

func TestLogHook_AlwaysNonBlocking(t *testing.T) {
	hook := NewLogHook("test", nil, &testLogger{}, "debug")
	if hook.IsBlocking() {
		t.Error("log hook should always be non-blocking")
	}
}

func TestFuncHook_NilFunc(t *testing.T) {
	hook := NewFuncHook("noop", nil, true, nil)
	if err := hook.Handle(NewEvent(TurnStarted, nil)); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestHooksFromConfig(t *testing.T) {
	cfg := config.HooksConfig{
		Enabled: true,
		Hooks: []config.HookConfig{
			{Name: "notify", Type: "shell", Command: "true", Events: []string{"turn.completed"}},
			{Name: "ping", Type: "webhook", URL: "http://localhost:9/hook", Blocking: true},
			{Name: "trace", Type: "log", Level: "debug", Events: []string{"step.active", "step.completed"}},
		},
	}

	hooks, err := HooksFromConfig(cfg, &testLogger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hooks) != 3 {
		t.Fatalf("expected 3 hooks, got %d", len(hooks))
	}
	if _, ok := hooks[0].(*ShellHook); !ok {
		t.Errorf("expected shell hook, got %T", hooks[0])
	}
	if !hooks[1].IsBlocking() {
		t.Error("expected webhook to be blocking")
	}
	if hooks[2].Matches(TurnStarted) || !hooks[2].Matches(StepCompleted) {
		t.Error("log hook should only match step events")
	}

	cfg.Enabled = false
	hooks, err = HooksFromConfig(cfg, nil)
	if err != nil || len(hooks) != 0 {
		t.Errorf("disabled hooks should build nothing, got %d (%v)", len(hooks), err)
	}
}

func TestHooksFromConfig_UnknownEvent(t *testing.T) {
	cfg := config.HooksConfig{
		Enabled: true,
		Hooks:   []config.HookConfig{{Name: "bad", Type: "log", Events: []string{"task.started"}}},
	}
	_, err := HooksFromConfig(cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown event type") {
		t.Errorf("expected unknown event type error, got %v", err)
	}
}

func TestBaseHook_Matches(t *testing.T) {
	all := &baseHook{name: "all"}
	if !all.Matches(TurnStarted) || !all.Matches(FeedFinal) {
		t.Error("nil events should match everything")
	}
	specific := &baseHook{name: "specific", events: []EventType{StepActive}}
	if specific.Matches(TurnStarted) {
		t.Error("should not match TurnStarted")
	}
}
