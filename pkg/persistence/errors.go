// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidID indicates an identifier that cannot be stored safely.
	ErrInvalidID = errors.New("invalid identifier")

	// ErrInvalidSortField indicates a list request sorted by an unsupported field.
	ErrInvalidSortField = errors.New("invalid sort field")

	// ErrInvalidLineage indicates a lineage record missing its root or id.
	ErrInvalidLineage = errors.New("invalid lineage record")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "WorkflowByID", "SaveWorkflow")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// LineageError wraps lineage-related errors with the tree they concern.
type LineageError struct {
	Op     string
	RootID string
	Err    error
}

func (e *LineageError) Error() string {
	return fmt.Sprintf("%s operation failed for root %s: %v", e.Op, e.RootID, e.Err)
}

func (e *LineageError) Unwrap() error {
	return e.Err
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// ValidateID rejects identifiers that are empty or could escape a storage namespace.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	for _, r := range id {
		if r == '/' || r == '\\' || r == 0 {
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}

	return nil
}
