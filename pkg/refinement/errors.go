package refinement

import (
	"errors"
	"fmt"

	"github.com/dukex/refiner/pkg/graph"
)

var (
	// ErrGenerationFailure is raised when the candidate generator errors or returns
	// malformed output. It is handled as a rejection and never retried.
	ErrGenerationFailure = errors.New("candidate generation failed")

	ErrSchemaViolation = fmt.Errorf("%w: schema violation", graph.ErrStructuralFailure)
	ErrNilWorkflow     = errors.New("workflow is required")
	ErrDuplicateRoot   = errors.New("root refined more than once in the same run")
	ErrSinkFailure     = errors.New("failed to hand result to sink")
)

// IsGenerationFailure checks if an error came from the candidate generator.
func IsGenerationFailure(err error) bool {
	return errors.Is(err, ErrGenerationFailure)
}
