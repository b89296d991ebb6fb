package guard

import (
	"errors"
	"fmt"
)

var (
	// ErrGuardDenied is the parent of every reason the guard refuses a step.
	ErrGuardDenied = errors.New("recursion step denied")

	ErrTerminationMissing = fmt.Errorf("%w: termination condition missing", ErrGuardDenied)
	ErrDepthExceeded      = fmt.Errorf("%w: depth exceeded", ErrGuardDenied)
	ErrFanoutExceeded     = fmt.Errorf("%w: fan-out exceeded", ErrGuardDenied)
	ErrBudgetExceeded     = fmt.Errorf("%w: cost budget exceeded", ErrGuardDenied)
	ErrCheckpointDenied   = fmt.Errorf("%w: checkpoint denied continuation", ErrGuardDenied)
	ErrInvalidCost        = fmt.Errorf("%w: declared cost must not be negative", ErrGuardDenied)

	ErrMissingRoot  = errors.New("root id is required")
	ErrAuditFailure = errors.New("failed to append audit snapshot")
)

// StepError wraps guard errors with the root they concern.
type StepError struct {
	Op     string // Operation being performed (e.g., "AuthorizeStep")
	RootID string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed for root %s: %v", e.Op, e.RootID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsGuardError checks if an error is a guard denial, fatal to the current refinement
// attempt but not to the process.
func IsGuardError(err error) bool {
	return errors.Is(err, ErrGuardDenied)
}
