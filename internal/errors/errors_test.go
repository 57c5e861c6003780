package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestStorylineError_Error(t *testing.T) {
	err := New(CodeConfigInvalid, "playback.step_delay must not be negative")
	expected := "[CONFIG_INVALID] playback.step_delay must not be negative"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestStorylineError_Wrap(t *testing.T) {
	inner := fmt.Errorf("database is locked")
	err := Wrap(CodeArchiveError, "failed to save turn", inner)

	if err.Error() != "[ARCHIVE_ERROR] failed to save turn: database is locked" {
		t.Errorf("unexpected error string: %s", err.Error())
	}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find inner error")
	}
}

func TestStorylineError_Newf(t *testing.T) {
	err := Newf(CodeTurnNotFound, "turn not found: %s", "abc")
	if err.Message != "turn not found: abc" {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func TestStorylineError_WithSuggestion(t *testing.T) {
	err := New(CodeFeedError, "websocket handshake failed").
		WithSuggestion("Check feed.url in storyline.yaml")

	if err.Suggestion != "Check feed.url in storyline.yaml" {
		t.Errorf("unexpected suggestion: %s", err.Suggestion)
	}
}

func TestStorylineError_ErrorsAs(t *testing.T) {
	err := Wrap(CodeInputInvalid, "invalid final message", fmt.Errorf("unexpected EOF"))

	var se *StorylineError
	if !errors.As(err, &se) {
		t.Fatal("errors.As should work")
	}
	if se.Code != CodeInputInvalid {
		t.Errorf("expected code %q, got %q", CodeInputInvalid, se.Code)
	}
}

func TestStorylineError_IsByCode(t *testing.T) {
	err := fmt.Errorf("lookup: %w", Newf(CodeSessionNotFound, "session %s", "s1"))
	if !errors.Is(err, New(CodeSessionNotFound, "")) {
		t.Error("expected match on code")
	}
	if errors.Is(err, New(CodeTurnNotFound, "")) {
		t.Error("expected no match for a different code")
	}
}

func TestAsCode(t *testing.T) {
	err := New(CodeTurnNotFound, "no active turn")
	if AsCode(err) != CodeTurnNotFound {
		t.Errorf("expected code %q, got %q", CodeTurnNotFound, AsCode(err))
	}

	plain := fmt.Errorf("plain error")
	if AsCode(plain) != "" {
		t.Error("expected empty code for non-StorylineError")
	}
}

func TestSuggestion(t *testing.T) {
	err := New(CodeSessionNotFound, "session not found").WithSuggestion("start a turn first")
	if Suggestion(err) != "start a turn first" {
		t.Errorf("expected 'start a turn first', got %q", Suggestion(err))
	}

	if Suggestion(fmt.Errorf("plain")) != "" {
		t.Error("expected empty suggestion for non-StorylineError")
	}
}
