package file

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/dukex/refiner/pkg/guard"
	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/persistence"
)

// AuditTrail keeps recursion snapshots in one append-only JSON Lines file per root.
type AuditTrail struct {
	log *jsonLines
}

var _ guard.AuditTrail = (*AuditTrail)(nil)

func NewAuditTrail(root string) *AuditTrail {
	return &AuditTrail{log: &jsonLines{dir: path.Join(CleanRoot(root), "audit")}}
}

func (a *AuditTrail) Append(_ context.Context, snapshot models.RecursionSnapshot) error {
	if err := persistence.ValidateID(snapshot.RootID); err != nil {
		return err
	}

	return a.log.append(snapshot.RootID, snapshot)
}

func (a *AuditTrail) Snapshots(_ context.Context, rootID string) ([]models.RecursionSnapshot, error) {
	if err := persistence.ValidateID(rootID); err != nil {
		return nil, err
	}

	snapshots := make([]models.RecursionSnapshot, 0)

	err := a.log.read(rootID, func(line []byte) error {
		var snapshot models.RecursionSnapshot
		if err := json.Unmarshal(line, &snapshot); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}

		snapshots = append(snapshots, snapshot)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshots, nil
}
