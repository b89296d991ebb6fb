package file

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/persistence"
)

// LineageRepository appends lineage records to one JSON Lines file per root.
type LineageRepository struct {
	log *jsonLines
}

func NewLineageRepository(root string) *LineageRepository {
	return &LineageRepository{log: &jsonLines{dir: path.Join(root, "lineage")}}
}

func (lr *LineageRepository) Append(_ context.Context, record *models.LineageRecord) error {
	if record == nil || record.ID == "" {
		return &persistence.LineageError{Op: "RecordLineage", Err: persistence.ErrInvalidLineage}
	}

	if err := persistence.ValidateID(record.RootID); err != nil {
		return &persistence.LineageError{Op: "RecordLineage", RootID: record.RootID, Err: err}
	}

	return lr.log.append(record.RootID, record)
}

// ByRoot returns the lineage of rootID in the order it was recorded.
func (lr *LineageRepository) ByRoot(_ context.Context, rootID string) ([]*models.LineageRecord, error) {
	if err := persistence.ValidateID(rootID); err != nil {
		return nil, &persistence.LineageError{Op: "Lineage", RootID: rootID, Err: err}
	}

	records := make([]*models.LineageRecord, 0)

	err := lr.log.read(rootID, func(line []byte) error {
		var record models.LineageRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("failed to unmarshal lineage record: %w", err)
		}

		records = append(records, &record)

		return nil
	})
	if err != nil {
		return nil, &persistence.LineageError{Op: "Lineage", RootID: rootID, Err: err}
	}

	return records, nil
}
