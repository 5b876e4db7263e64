// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDefinitionNotFound indicates a workflow definition was not found.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrTimeplanNotFound indicates no timeplan exists for the reference.
	ErrTimeplanNotFound = errors.New("timeplan not found")

	// ErrTimeplanAmbiguous indicates more than one timeplan row matches the
	// reference.
	ErrTimeplanAmbiguous = errors.New("timeplan reference is ambiguous")

	// ErrScheduleExecutionNotFound indicates a schedule execution was not
	// found by the given identifier.
	ErrScheduleExecutionNotFound = errors.New("schedule execution not found")

	// ErrProcessRunNotFound indicates a process run was not found by the
	// given run id.
	ErrProcessRunNotFound = errors.New("process run not found")
)

// StoreError wraps storage errors with operation context.
type StoreError struct {
	Op         string // Operation being performed (e.g. "TimeplanByID", "Save")
	WorkflowID int64  // Workflow id if applicable
	Err        error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.WorkflowID != 0 {
		return fmt.Sprintf("%s failed for workflow %d: %v", e.Op, e.WorkflowID, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a storage error with context.
func NewStoreError(op string, workflowID int64, err error) *StoreError {
	return &StoreError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsTimeplanNotFound checks if an error indicates a missing timeplan.
func IsTimeplanNotFound(err error) bool {
	return errors.Is(err, ErrTimeplanNotFound)
}

// IsTimeplanAmbiguous checks if an error indicates an ambiguous timeplan
// reference.
func IsTimeplanAmbiguous(err error) bool {
	return errors.Is(err, ErrTimeplanAmbiguous)
}

// IsScheduleExecutionNotFound checks if an error indicates a missing
// schedule execution.
func IsScheduleExecutionNotFound(err error) bool {
	return errors.Is(err, ErrScheduleExecutionNotFound)
}
