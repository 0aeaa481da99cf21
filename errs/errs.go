// Package errs defines the structured error kinds shared by the
// definition stores and the task creation orchestrator.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotInitialized is returned by store operations invoked before
// Initialize has completed.
var ErrNotInitialized = errors.New("store not initialized")

// ValidationError reports every invariant violated by a create or
// update, never just the first.
type ValidationError struct {
	Rules []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Rules, "; ")
}

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Kind string // "template", "bundle", "bundle item", "task"
	ID   string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// PersistenceError reports a backing-store read or write failure. It is
// surfaced to the caller, never retried internally.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
