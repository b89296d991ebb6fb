// Package persistence provides the storage abstraction for workflows and their
// refinement lineage.
package persistence

import (
	"context"

	"github.com/dukex/refiner/pkg/models"
)

// Persistence stores workflows and the lineage records of their refinement trees.
// Every implementation satisfies refinement.Sink.
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	RecordLineage(ctx context.Context, record *models.LineageRecord) error
	Lineage(ctx context.Context, rootID string) ([]*models.LineageRecord, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
