// Package file provides file-based persistence for workflows, lineage and audit trails.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
	lineageRepo  *LineageRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := CleanRoot(root)

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: NewWorkflowRepository(cleanRoot),
		lineageRepo:  NewLineageRepository(cleanRoot),
	}
}

// CleanRoot strips the file:// scheme from a storage URL.
func CleanRoot(root string) string {
	return strings.Replace(root, "file://", "", 1)
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return fp.workflowRepo.GetAll(ctx)
}

func (fp *Persistence) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	return fp.workflowRepo.ListWorkflows(ctx, opts)
}

func (fp *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return fp.workflowRepo.Save(ctx, workflow)
}

func (fp *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return fp.workflowRepo.GetByID(ctx, id)
}

func (fp *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return fp.workflowRepo.Delete(ctx, id)
}

func (fp *Persistence) RecordLineage(ctx context.Context, record *models.LineageRecord) error {
	return fp.lineageRepo.Append(ctx, record)
}

func (fp *Persistence) Lineage(ctx context.Context, rootID string) ([]*models.LineageRecord, error) {
	return fp.lineageRepo.ByRoot(ctx, rootID)
}
