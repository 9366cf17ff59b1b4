package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents a Jot error code.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"       // 400
	ErrNotFound             ErrorCode = "NOT_FOUND"             // 404
	ErrSessionActive        ErrorCode = "SESSION_ACTIVE"        // 409
	ErrNoSession            ErrorCode = "NO_SESSION"            // 409
	ErrDeviceAcquisition    ErrorCode = "DEVICE_ACQUISITION"    // 503, fatal to session start
	ErrRecorderFault        ErrorCode = "RECORDER_FAULT"        // 500, recoverable
	ErrTranscriptionTimeout ErrorCode = "TRANSCRIPTION_TIMEOUT" // 504, recoverable
	ErrTranscriptionFailure ErrorCode = "TRANSCRIPTION_FAILURE" // 502, recoverable
	ErrInternal             ErrorCode = "INTERNAL"              // 500
)

// JotError represents a structured error with code, status, and details.
type JotError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *JotError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *JotError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *JotError {
	return &JotError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a note cannot be found.
func NewNotFound(identifier string) *JotError {
	return &JotError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("note not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewSessionActive creates a 409 error when a recording session is already running.
func NewSessionActive(sessionID string) *JotError {
	return &JotError{
		Code:    ErrSessionActive,
		Status:  409,
		Message: fmt.Sprintf("recording session already active: %s", sessionID),
		Details: map[string]any{"session_id": sessionID},
	}
}

// NewNoSession creates a 409 error when an operation needs a running session.
func NewNoSession() *JotError {
	return &JotError{
		Code:    ErrNoSession,
		Status:  409,
		Message: "no recording session is active",
	}
}

// NewDeviceAcquisition creates an error for an audio device that could not be opened.
func NewDeviceAcquisition(device string, err error) *JotError {
	return &JotError{
		Code:    ErrDeviceAcquisition,
		Status:  503,
		Message: fmt.Sprintf("cannot acquire audio device %q: %v", device, err),
		Details: map[string]any{"device": device},
		Err:     err,
	}
}

// NewRecorderFault creates an error for a recorder that failed to start or stop.
func NewRecorderFault(op string, err error) *JotError {
	return &JotError{
		Code:    ErrRecorderFault,
		Status:  500,
		Message: fmt.Sprintf("recorder %s failed: %v", op, err),
		Details: map[string]any{"op": op},
		Err:     err,
	}
}

// NewTranscriptionTimeout creates an error for a transcription call that ran out of time.
func NewTranscriptionTimeout(timeout time.Duration) *JotError {
	return &JotError{
		Code:    ErrTranscriptionTimeout,
		Status:  504,
		Message: fmt.Sprintf("transcription timed out after %s", timeout),
		Details: map[string]any{"timeout_ms": timeout.Milliseconds()},
	}
}

// NewTranscriptionFailure creates an error for a failed or empty transcription.
func NewTranscriptionFailure(err error) *JotError {
	msg := "transcription returned no text"
	if err != nil {
		msg = err.Error()
	}
	return &JotError{
		Code:    ErrTranscriptionFailure,
		Status:  502,
		Message: msg,
		Err:     err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *JotError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &JotError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if an error is, or wraps, a JotError with the given code.
func Is(err error, code ErrorCode) bool {
	var jErr *JotError
	if stderrors.As(err, &jErr) {
		return jErr.Code == code
	}
	return false
}

// Recoverable reports whether err is one the session keeps running through.
func Recoverable(err error) bool {
	return Is(err, ErrRecorderFault) ||
		Is(err, ErrTranscriptionTimeout) ||
		Is(err, ErrTranscriptionFailure)
}
