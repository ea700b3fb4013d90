// Package coreerr provides the tagged error envelope the core surfaces to
// its callers, on top of github.com/cockroachdb/errors for wrapping and
// stack traces.
package coreerr

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// Code identifies the category of a CoreError.
type Code string

const (
	CodeValidation     Code = "VALIDATION"
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodeEventNotActive Code = "EVENT_NOT_ACTIVE"
	CodeVoteDenied     Code = "VOTE_DENIED"
	CodeProviderError  Code = "PROVIDER_ERROR"
	CodeInternal       Code = "INTERNAL"
)

// CoreError is the structured error every core operation returns instead of
// a bare error. Callers type-assert with errors.As, never string-match.
type CoreError struct {
	Code       Code
	Message    string
	Reason     string // populated for VOTE_DENIED: "cooldown" | "hourly-cap" | "same-track" | "network-cap" | "banned"
	RetryAfter time.Duration
	cause      error
}

func (e *CoreError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As from
// cockroachdb/errors still traverse through a CoreError.
func (e *CoreError) Unwrap() error {
	return e.cause
}

func new(code Code, cause error, format string, args ...any) *CoreError {
	return &CoreError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

// Validation builds a VALIDATION error.
func Validation(format string, args ...any) *CoreError {
	return new(CodeValidation, nil, format, args...)
}

// NotFound builds a NOT_FOUND error.
func NotFound(format string, args ...any) *CoreError {
	return new(CodeNotFound, nil, format, args...)
}

// Conflict builds a CONFLICT error.
func Conflict(format string, args ...any) *CoreError {
	return new(CodeConflict, nil, format, args...)
}

// EventNotActive builds an EVENT_NOT_ACTIVE error.
func EventNotActive(eventID string) *CoreError {
	return new(CodeEventNotActive, nil, "event %s is not active", eventID)
}

// Denied builds a VOTE_DENIED error with a reason and an optional
// retry-after hint.
func Denied(reason string, retryAfter time.Duration) *CoreError {
	return &CoreError{
		Code:       CodeVoteDenied,
		Message:    "vote denied",
		Reason:     reason,
		RetryAfter: retryAfter,
	}
}

// Provider wraps an external-provider failure as PROVIDER_ERROR.
func Provider(cause error, format string, args ...any) *CoreError {
	return new(CodeProviderError, errors.Wrap(cause, "provider"), format, args...)
}

// Internal wraps an unexpected internal failure.
func Internal(cause error, format string, args ...any) *CoreError {
	return new(CodeInternal, errors.Wrap(cause, "internal"), format, args...)
}

// As reports whether err is (or wraps) a *CoreError, returning it.
func As(err error) (*CoreError, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
