package errors

import (
	"errors"
	"fmt"
)

// Error codes for programmatic handling.
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeInputInvalid    = "INPUT_INVALID"
	CodeTurnNotFound    = "TURN_NOT_FOUND"
	CodeArchiveError    = "ARCHIVE_ERROR"
	CodeFeedError       = "FEED_ERROR"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
)

// StorylineError is a structured error with a code and actionable suggestion.
type StorylineError struct {
	Code       string // machine-readable code (e.g. CONFIG_INVALID)
	Message    string // human-readable description
	Suggestion string // actionable fix
	Err        error  // wrapped underlying error
}

// Error implements the error interface.
func (e *StorylineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap supports errors.Is / errors.As.
func (e *StorylineError) Unwrap() error {
	return e.Err
}

// New creates a StorylineError with the given code and message.
func New(code, message string) *StorylineError {
	return &StorylineError{Code: code, Message: message}
}

// Newf creates a StorylineError with a formatted message.
func Newf(code, format string, args ...interface{}) *StorylineError {
	return &StorylineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a StorylineError wrapping an existing error.
func Wrap(code, message string, err error) *StorylineError {
	return &StorylineError{Code: code, Message: message, Err: err}
}

// WithSuggestion sets the suggestion and returns the same error.
func (e *StorylineError) WithSuggestion(suggestion string) *StorylineError {
	e.Suggestion = suggestion
	return e
}

// Is checks whether target matches this error's code.
func (e *StorylineError) Is(target error) bool {
	var se *StorylineError
	if errors.As(target, &se) {
		return e.Code == se.Code
	}
	return false
}

// AsCode extracts the StorylineError code from an error, or "" if not a StorylineError.
func AsCode(err error) string {
	var se *StorylineError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Suggestion extracts the suggestion from an error, or "" if not a StorylineError.
func Suggestion(err error) string {
	var se *StorylineError
	if errors.As(err, &se) {
		return se.Suggestion
	}
	return ""
}
