package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/refiner/pkg/models"
)

// AuditTrail stores recursion snapshots in the recursion_snapshots table.
type AuditTrail struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditTrail creates an audit trail on an already migrated database.
func NewAuditTrail(db *sql.DB, logger *slog.Logger) *AuditTrail {
	return &AuditTrail{db: db, logger: logger}
}

// Append inserts a snapshot.
func (a *AuditTrail) Append(ctx context.Context, snapshot models.RecursionSnapshot) error {
	query := `
		INSERT INTO recursion_snapshots (root_id, parent_id, depth, children_generated, cost_spent,
			remaining_budget, termination_condition, outcome, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := a.db.ExecContext(ctx, query,
		snapshot.RootID,
		nullString(snapshot.ParentID),
		snapshot.Depth,
		snapshot.ChildrenGenerated,
		snapshot.CostSpent,
		snapshot.RemainingBudget,
		nullString(snapshot.TerminationCondition),
		string(snapshot.Outcome),
		nullString(snapshot.Reason),
		snapshot.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append snapshot for root %s: %w", snapshot.RootID, err)
	}

	return nil
}

// Snapshots returns the snapshots of rootID in append order.
func (a *AuditTrail) Snapshots(ctx context.Context, rootID string) ([]models.RecursionSnapshot, error) {
	query := `
		SELECT root_id, parent_id, depth, children_generated, cost_spent, remaining_budget,
			termination_condition, outcome, reason, created_at
		FROM recursion_snapshots
		WHERE root_id = $1
		ORDER BY seq ASC
	`

	rows, err := a.db.QueryContext(ctx, query, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for root %s: %w", rootID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	snapshots := make([]models.RecursionSnapshot, 0)

	for rows.Next() {
		var (
			snapshot                      models.RecursionSnapshot
			parentID, termination, reason sql.NullString
			outcome                       string
		)

		err := rows.Scan(
			&snapshot.RootID,
			&parentID,
			&snapshot.Depth,
			&snapshot.ChildrenGenerated,
			&snapshot.CostSpent,
			&snapshot.RemainingBudget,
			&termination,
			&outcome,
			&reason,
			&snapshot.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		snapshot.ParentID = parentID.String
		snapshot.TerminationCondition = termination.String
		snapshot.Outcome = models.SnapshotOutcome(outcome)
		snapshot.Reason = reason.String

		snapshots = append(snapshots, snapshot)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}
