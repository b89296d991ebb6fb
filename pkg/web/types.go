package web

import (
	"github.com/dukex/refiner/pkg/graph"
	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/refinement"
)

// RefineRequest is the optional body of a refine call. Empty fields fall back to the
// server defaults; an empty RootID continues the tree the workflow belongs to.
type RefineRequest struct {
	RootID               string   `json:"root_id,omitempty"               validate:"omitempty,max=255,excludesall=/\\"`
	TerminationCondition string   `json:"termination_condition,omitempty"`
	StepCost             *float64 `json:"step_cost,omitempty"             validate:"omitempty,gte=0"`
}

// RefineResponse is the outcome of a refinement tree.
type RefineResponse struct {
	*refinement.Outcome

	Error string `json:"error,omitempty"`
}

// ValidationResponse reports the graph check of a workflow.
type ValidationResponse struct {
	Valid   bool                    `json:"valid"`
	Graph   *models.DependencyGraph `json:"graph,omitempty"`
	Repairs []graph.Repair          `json:"repairs"`
	Notes   []string                `json:"notes"`
	Error   string                  `json:"error,omitempty"`
}

// EvaluationResponse carries the evaluation of a repaired workflow.
type EvaluationResponse struct {
	Evaluation *models.EvaluationResult `json:"evaluation"`
	Notes      []string                 `json:"notes"`
}
