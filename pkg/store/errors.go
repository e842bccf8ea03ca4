package store

import (
	"errors"
	"fmt"
)

// ErrThreadNotFound is returned when a thread id does not exist.
var ErrThreadNotFound = errors.New("thread not found")

var errClosed = errors.New("store is closed")

// Error is a failure reported by a storage backend.
type Error struct {
	Backend   string // "sqlite" or "memory"
	Operation string // operation that failed, e.g. "append_message"
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(backend, operation string, cause error) *Error {
	return &Error{Backend: backend, Operation: operation, Cause: cause}
}

func threadNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrThreadNotFound, id)
}
