package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// ErrValidation is returned when a query or an input argument is malformed
	ErrValidation = errors.New("validation failed")

	// ErrState is returned when an operation is not allowed in the current index state
	ErrState = errors.New("invalid index state")

	// ErrPersistence is returned when a snapshot cannot be written or read
	ErrPersistence = errors.New("persistence failure")

	// ErrSnapshotCorrupt is returned when a snapshot file fails header or checksum validation
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
)

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StateError reports an operation attempted on an index that is not open,
// already open, or locked by another process.
type StateError struct {
	Op     string
	Path   string
	Reason string
}

func (e *StateError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s '%s': %s", e.Op, e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *StateError) Is(target error) bool {
	return target == ErrState
}

// NewStateError creates a new StateError
func NewStateError(op, path, reason string) *StateError {
	return &StateError{Op: op, Path: path, Reason: reason}
}

// PersistenceError wraps a failure to write or read a snapshot file.
type PersistenceError struct {
	Op   string // "write" or "read"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("snapshot %s '%s': %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new PersistenceError
func NewPersistenceError(op, path string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Path: path, Err: err}
}

// NewCorruptSnapshotError reports a snapshot rejected during validation.
// The result matches both ErrPersistence and ErrSnapshotCorrupt.
func NewCorruptSnapshotError(path, reason string) *PersistenceError {
	return &PersistenceError{Op: "read", Path: path, Err: fmt.Errorf("%w: %s", ErrSnapshotCorrupt, reason)}
}
