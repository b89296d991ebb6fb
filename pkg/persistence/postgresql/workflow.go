package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/persistence"
)

const workflowColumns = `
	id
  , version
  , parent_id
  , root_id
  , metadata
  , phases
  , graph
  , evaluation
  , notes
  , created_at
  , updated_at
`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetAll returns all workflows from the database.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	return r.query(ctx, query)
}

// ListWorkflows returns paginated and filtered workflows with database-level operations.
func (r *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	where := "WHERE deleted_at IS NULL"
	args := make([]any, 0, 3)

	if opts.ParentID != "" {
		args = append(args, opts.ParentID)
		where += fmt.Sprintf(" AND parent_id = $%d", len(args))
	}

	var total int64

	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows "+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	// Sort column and order come from the Normalize allowlist.
	column := persistence.SortColumns[opts.SortBy]
	order := "DESC"

	if opts.SortOrder == "asc" {
		order = "ASC"
	}

	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf(`SELECT %s FROM workflows %s ORDER BY %s %s NULLS LAST, id ASC LIMIT $%d OFFSET $%d`,
		workflowColumns, where, column, order, len(args)-1, len(args))

	workflows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+len(workflows)) < total,
	}, nil
}

// GetByID returns a workflow or a persistence.ErrWorkflowNotFound error.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// Save upserts a workflow.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, persistence.ErrInvalidID)
	}

	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	payload, err := marshalColumns(workflow.Metadata, workflow.Phases, workflow.Graph, workflow.Evaluation, workflow.Notes)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	var score sql.NullFloat64
	if workflow.Evaluation != nil {
		score = sql.NullFloat64{Float64: workflow.Evaluation.OverallScore, Valid: true}
	}

	query := `
		INSERT INTO workflows (id, version, parent_id, root_id, metadata, phases, graph, evaluation, notes,
			overall_score, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULL)
		ON CONFLICT (id) DO UPDATE SET
			version = EXCLUDED.version,
			parent_id = EXCLUDED.parent_id,
			root_id = EXCLUDED.root_id,
			metadata = EXCLUDED.metadata,
			phases = EXCLUDED.phases,
			graph = EXCLUDED.graph,
			evaluation = EXCLUDED.evaluation,
			notes = EXCLUDED.notes,
			overall_score = EXCLUDED.overall_score,
			updated_at = EXCLUDED.updated_at,
			deleted_at = NULL
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Version,
		nullString(workflow.ParentID),
		nullString(workflow.RootID),
		payload[0],
		payload[1],
		payload[2],
		payload[3],
		payload[4],
		score,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

// Delete soft deletes a workflow.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) query(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow                                   models.Workflow
		parentID, rootID                           sql.NullString
		metadata, phases, graph, evaluation, notes []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Version,
		&parentID,
		&rootID,
		&metadata,
		&phases,
		&graph,
		&evaluation,
		&notes,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.ParentID = parentID.String
	workflow.RootID = rootID.String

	err = unmarshalColumns(
		column{metadata, &workflow.Metadata},
		column{phases, &workflow.Phases},
		column{graph, &workflow.Graph},
		column{evaluation, &workflow.Evaluation},
		column{notes, &workflow.Notes},
	)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", workflow.ID, err)
	}

	return &workflow, nil
}

type column struct {
	data []byte
	dest any
}

func unmarshalColumns(columns ...column) error {
	for _, c := range columns {
		if len(c.data) == 0 {
			continue
		}

		err := json.Unmarshal(c.data, c.dest)
		if err != nil {
			return fmt.Errorf("failed to unmarshal column: %w", err)
		}
	}

	return nil
}

// marshalColumns encodes values as JSONB parameters; nil values become SQL NULL.
func marshalColumns(values ...any) ([]any, error) {
	encoded := make([]any, len(values))

	for i, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}

		if string(data) == "null" {
			encoded[i] = nil

			continue
		}

		encoded[i] = string(data)
	}

	return encoded, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
