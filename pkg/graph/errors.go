package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrStructuralFailure is the parent of every error that makes a workflow unevaluable.
	ErrStructuralFailure = errors.New("structural failure")

	ErrDuplicatePhase    = fmt.Errorf("%w: duplicate phase id", ErrStructuralFailure)
	ErrInvalidPhase      = fmt.Errorf("%w: invalid phase", ErrStructuralFailure)
	ErrUnrepairableCycle = fmt.Errorf("%w: unrepairable dependency cycle", ErrStructuralFailure)
)

// IsStructuralFailure checks if an error marks a workflow as structurally invalid.
func IsStructuralFailure(err error) bool {
	return errors.Is(err, ErrStructuralFailure)
}
