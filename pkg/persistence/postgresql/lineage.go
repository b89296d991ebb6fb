package postgresql

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/persistence"
)

// LineageRepository stores lineage records in insertion order.
type LineageRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLineageRepository creates a new lineage repository.
func NewLineageRepository(db *sql.DB, logger *slog.Logger) *LineageRepository {
	return &LineageRepository{db: db, logger: logger}
}

// Append inserts a lineage record.
func (r *LineageRepository) Append(ctx context.Context, record *models.LineageRecord) error {
	if record == nil || record.ID == "" || record.RootID == "" {
		return &persistence.LineageError{Op: "RecordLineage", Err: persistence.ErrInvalidLineage}
	}

	payload, err := marshalColumns(record.Evaluation, record.Snapshot)
	if err != nil {
		return &persistence.LineageError{Op: "RecordLineage", RootID: record.RootID, Err: err}
	}

	query := `
		INSERT INTO lineage_records (id, root_id, cycle, workflow_id, parent_workflow_id, decision, signal,
			score_delta, semantic_delta, evaluation, snapshot, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.RootID,
		record.Cycle,
		record.WorkflowID,
		nullString(record.ParentWorkflowID),
		string(record.Decision),
		nullString(string(record.Signal)),
		record.ScoreDelta,
		record.SemanticDelta,
		payload[0],
		payload[1],
		nullString(record.Reason),
		record.CreatedAt,
	)
	if err != nil {
		return &persistence.LineageError{Op: "RecordLineage", RootID: record.RootID, Err: err}
	}

	return nil
}

// ByRoot returns the lineage of rootID in the order it was recorded.
func (r *LineageRepository) ByRoot(ctx context.Context, rootID string) ([]*models.LineageRecord, error) {
	query := `
		SELECT id, root_id, cycle, workflow_id, parent_workflow_id, decision, signal,
			score_delta, semantic_delta, evaluation, snapshot, reason, created_at
		FROM lineage_records
		WHERE root_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, rootID)
	if err != nil {
		return nil, &persistence.LineageError{Op: "Lineage", RootID: rootID, Err: err}
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.LineageRecord, 0)

	for rows.Next() {
		var (
			record                   models.LineageRecord
			parentID, signal, reason sql.NullString
			decision                 string
			evaluation, snapshot     []byte
		)

		err := rows.Scan(
			&record.ID,
			&record.RootID,
			&record.Cycle,
			&record.WorkflowID,
			&parentID,
			&decision,
			&signal,
			&record.ScoreDelta,
			&record.SemanticDelta,
			&evaluation,
			&snapshot,
			&reason,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, &persistence.LineageError{Op: "Lineage", RootID: rootID, Err: err}
		}

		record.ParentWorkflowID = parentID.String
		record.Decision = models.Decision(decision)
		record.Signal = models.DecisionSignal(signal.String)
		record.Reason = reason.String

		err = unmarshalColumns(column{evaluation, &record.Evaluation}, column{snapshot, &record.Snapshot})
		if err != nil {
			return nil, &persistence.LineageError{Op: "Lineage", RootID: rootID, Err: err}
		}

		records = append(records, &record)
	}

	err = rows.Err()
	if err != nil {
		return nil, &persistence.LineageError{Op: "Lineage", RootID: rootID, Err: err}
	}

	return records, nil
}
