package models

import "time"

// SnapshotOutcome records what happened to the recursive call a snapshot describes.
type SnapshotOutcome string

const (
	SnapshotAuthorized SnapshotOutcome = "authorized"
	SnapshotDenied     SnapshotOutcome = "denied"
	SnapshotFailed     SnapshotOutcome = "failed"
)

// RecursionSnapshot is an immutable audit record created once per recursive call attempt.
type RecursionSnapshot struct {
	RootID               string          `json:"root_id"`
	ParentID             string          `json:"parent_id"`
	Depth                int             `json:"depth"`
	ChildrenGenerated    int             `json:"children_generated"`
	CostSpent            float64         `json:"cost_spent"`
	RemainingBudget      float64         `json:"remaining_budget"`
	TerminationCondition string          `json:"termination_condition"`
	Outcome              SnapshotOutcome `json:"outcome"`
	Reason               string          `json:"reason,omitempty"`
	Timestamp            time.Time       `json:"timestamp"`
}
