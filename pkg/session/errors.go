package session

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no session exists for an ID.
var ErrNotFound = errors.New("session not found")

// ErrNoChatData is returned when a session is saved without content.
var ErrNoChatData = errors.New("no chat data")

// ValidationError reports a malformed session ID.
type ValidationError struct {
	ID     string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid session id %q: %s", e.ID, e.Reason)
}

// StorageError wraps a filesystem failure.
type StorageError struct {
	Operation string
	ID        string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("session storage error [operation=%s]: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("session storage error [operation=%s, id=%s]: %v", e.Operation, e.ID, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
