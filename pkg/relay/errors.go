package relay

import (
	"errors"
	"fmt"

	"mercator-hq/localchat/pkg/upstream"
)

// Error codes carried by error frames.
const (
	CodeUpstream    = "upstream_error"
	CodeStream      = "stream_error"
	CodePersistence = "persistence_error"
)

// ValidationError reports a malformed chat request. It is raised before any
// side effect.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Message
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}

// PersistenceError reports a failed store operation during a session.
type PersistenceError struct {
	Op  string // "create_thread", "append_user_message" or "append_assistant_message"
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("Failed to save chat (%s): %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ErrorFrame is the payload of an error frame.
type ErrorFrame struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ThreadFrame is the payload announcing the session's thread.
type ThreadFrame struct {
	ThreadID string `json:"threadId"`
}

// NewErrorFrame maps a session error to its client-facing frame.
func NewErrorFrame(err error) ErrorFrame {
	var (
		persistErr  *PersistenceError
		upstreamErr *upstream.Error
		streamErr   *upstream.StreamError
	)
	switch {
	case errors.As(err, &persistErr):
		return ErrorFrame{Error: persistErr.Error(), Code: CodePersistence}
	case errors.As(err, &upstreamErr):
		return ErrorFrame{Error: upstreamErr.Error(), Code: CodeUpstream}
	case errors.As(err, &streamErr):
		return ErrorFrame{Error: streamErr.Error(), Code: CodeStream}
	default:
		return ErrorFrame{Error: err.Error(), Code: CodeStream}
	}
}
