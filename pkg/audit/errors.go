package audit

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned when the recorder cannot accept a record in time.
	ErrQueueFull = errors.New("audit: record queue full")

	// ErrClosed is returned by a recorder or sink after Close.
	ErrClosed = errors.New("audit: closed")

	// ErrTailUnsupported is returned when the sink cannot render its history.
	ErrTailUnsupported = errors.New("audit: backend does not support tail")
)

// StorageError represents an error from an audit backend.
type StorageError struct {
	Backend   string // "file", "sqlite", "memory"
	Operation string // "open", "write", "tail", "prune"
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
