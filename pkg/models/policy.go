package models

import (
	"errors"
	"fmt"
)

// Default refinement policy values.
const (
	DefaultMaxDepth         = 2
	DefaultMaxChildren      = 4
	DefaultCostBudget       = 10.0
	DefaultCheckpointRatio  = 0.8
	DefaultMinImprovement   = 0.05
	DefaultMinSemanticDelta = 0.08
	DefaultTolerance        = 1e-9
)

var ErrInvalidPolicy = errors.New("invalid refinement policy")

// RefinementPolicy bounds a refinement tree. It is immutable for the lifetime of the tree.
type RefinementPolicy struct {
	MaxDepth         int     `json:"max_depth"`
	MaxChildren      int     `json:"max_children"`
	CostBudget       float64 `json:"cost_budget"`
	CheckpointRatio  float64 `json:"checkpoint_ratio"`
	MinImprovement   float64 `json:"min_improvement"`
	MinSemanticDelta float64 `json:"min_semantic_delta"`
	// Tolerance widens both acceptance thresholds to absorb floating point noise.
	Tolerance float64 `json:"tolerance"`
}

// DefaultPolicy returns the default refinement policy.
func DefaultPolicy() RefinementPolicy {
	return RefinementPolicy{
		MaxDepth:         DefaultMaxDepth,
		MaxChildren:      DefaultMaxChildren,
		CostBudget:       DefaultCostBudget,
		CheckpointRatio:  DefaultCheckpointRatio,
		MinImprovement:   DefaultMinImprovement,
		MinSemanticDelta: DefaultMinSemanticDelta,
		Tolerance:        DefaultTolerance,
	}
}

// Validate checks the policy limits.
func (p RefinementPolicy) Validate() error {
	switch {
	case p.MaxDepth <= 0:
		return fmt.Errorf("%w: max_depth must be positive", ErrInvalidPolicy)
	case p.MaxChildren <= 0:
		return fmt.Errorf("%w: max_children must be positive", ErrInvalidPolicy)
	case p.CostBudget <= 0:
		return fmt.Errorf("%w: cost_budget must be positive", ErrInvalidPolicy)
	case p.CheckpointRatio <= 0 || p.CheckpointRatio > 1:
		return fmt.Errorf("%w: checkpoint_ratio must be in (0, 1]", ErrInvalidPolicy)
	case p.MinSemanticDelta < 0 || p.MinSemanticDelta > 1:
		return fmt.Errorf("%w: min_semantic_delta must be in [0, 1]", ErrInvalidPolicy)
	case p.Tolerance < 0:
		return fmt.Errorf("%w: tolerance must not be negative", ErrInvalidPolicy)
	}

	return nil
}
