package models

import "time"

// LineageRecord is emitted to the persistence sink after every refinement cycle.
type LineageRecord struct {
	ID               string             `json:"id"`
	RootID           string             `json:"root_id"`
	Cycle            int                `json:"cycle"`
	WorkflowID       string             `json:"workflow_id"`
	ParentWorkflowID string             `json:"parent_workflow_id"`
	Evaluation       *EvaluationResult  `json:"evaluation_result,omitempty"`
	Decision         Decision           `json:"decision"`
	Signal           DecisionSignal     `json:"signal,omitempty"`
	ScoreDelta       float64            `json:"score_delta"`
	SemanticDelta    float64            `json:"semantic_delta"`
	Snapshot         *RecursionSnapshot `json:"recursion_snapshot,omitempty"`
	Reason           string             `json:"reason,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}
