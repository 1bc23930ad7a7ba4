// Package persistence provides standardized error types for state storage.
package persistence

import (
	"errors"
	"fmt"
)

// ErrStateNotFound indicates no workflow state exists for the given tenant.
var ErrStateNotFound = errors.New("workflow state not found")

// StateError wraps state storage errors with operation context.
type StateError struct {
	Op       string // Operation being performed (e.g., "LoadState", "SaveState")
	TenantID string
	Err      error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s operation failed for tenant %s: %v", e.Op, e.TenantID, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func (e *StateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStateError creates a new state error with context.
func NewStateError(op, tenantID string, err error) *StateError {
	return &StateError{
		Op:       op,
		TenantID: tenantID,
		Err:      err,
	}
}

// IsStateNotFound checks if an error indicates a missing workflow state.
func IsStateNotFound(err error) bool {
	return errors.Is(err, ErrStateNotFound)
}
