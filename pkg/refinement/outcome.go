package refinement

import "github.com/dukex/refiner/pkg/models"

// State is a step of the refinement state machine.
type State string

const (
	StateBaseline           State = "baseline"
	StateProposing          State = "proposing"
	StateCandidateEvaluated State = "candidate_evaluated"
	StateDecided            State = "decided"
	StateAccepted           State = "accepted"
	StateRejected           State = "rejected"
	StateHalted             State = "halted"
)

// Terminal reports whether the machine stops in this state.
func (s State) Terminal() bool {
	return s == StateRejected || s == StateHalted
}

// RunOptions configures a single refinement tree.
type RunOptions struct {
	// RootID identifies the tree; defaults to the baseline's own root.
	RootID string
	// TerminationCondition is declared on every recursive step.
	TerminationCondition string
	// StepCost is the declared cost of each step.
	StepCost float64
}

// CycleResult summarizes one baseline to decision pass.
type CycleResult struct {
	Cycle         int                       `json:"cycle"`
	State         State                     `json:"state"`
	CandidateID   string                    `json:"candidate_id,omitempty"`
	Signal        models.DecisionSignal     `json:"signal,omitempty"`
	ScoreDelta    float64                   `json:"score_delta"`
	SemanticDelta float64                   `json:"semantic_delta"`
	Evaluation    *models.EvaluationResult  `json:"evaluation,omitempty"`
	Snapshot      *models.RecursionSnapshot `json:"snapshot,omitempty"`
	Reason        string                    `json:"reason,omitempty"`
}

// Outcome is the result of refining one tree. Workflow is always the last good
// baseline.
type Outcome struct {
	RootID     string                   `json:"root_id"`
	State      State                    `json:"state"`
	Workflow   *models.Workflow         `json:"workflow,omitempty"`
	Evaluation *models.EvaluationResult `json:"evaluation,omitempty"`
	Accepted   int                      `json:"accepted"`
	Cycles     []CycleResult            `json:"cycles"`
	Reason     string                   `json:"reason,omitempty"`
	// Err is the guard denial or structural failure that ended the tree, if any.
	Err error `json:"-"`
}
