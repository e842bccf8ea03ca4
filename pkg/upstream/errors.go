package upstream

import (
	"fmt"
	"strings"
)

// Error is returned by Client.Open when the backend could not be reached or
// answered with a non-success status. No bytes have been relayed when it is
// returned.
type Error struct {
	// Status is the HTTP status code, or 0 when no response was received.
	Status int

	// Body is the response body, trimmed.
	Body string

	// Cause is the transport error when Status is 0.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("Upstream request failed: %v", e.Cause)
	}
	return fmt.Sprintf("Upstream error %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Unwrap returns the underlying transport error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether another attempt could succeed.
func (e *Error) Retryable() bool {
	return e.Status == 0 || e.Status >= 500
}

// StreamError is a failure while reading an already-open stream.
type StreamError struct {
	// Message describes the failed operation.
	Message string

	// Cause is the underlying read error.
	Cause error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}
