package eventbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/refiner/pkg/events"
	"github.com/dukex/refiner/pkg/models"
)

// Store is where a Projection writes the workflows and lineage it consumes.
type Store interface {
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	RecordLineage(ctx context.Context, record *models.LineageRecord) error
	Lineage(ctx context.Context, rootID string) ([]*models.LineageRecord, error)
}

// Projection writes the workflows and lineage records published by refiner processes
// into a store. Redelivered lineage records are stored once.
type Projection struct {
	store  Store
	logger *slog.Logger
}

func NewProjection(store Store, logger *slog.Logger) *Projection {
	return &Projection{
		store:  store,
		logger: logger.With("module", "projection"),
	}
}

// Register installs the projection's handlers on subscriber.
func (p *Projection) Register(subscriber Subscriber) error {
	if err := subscriber.Handle(events.WorkflowSavedEvent, p.saveWorkflow); err != nil {
		return err
	}

	return subscriber.Handle(events.LineageRecordedEvent, p.recordLineage)
}

func (p *Projection) saveWorkflow(ctx context.Context, event Event) error {
	saved, ok := event.(*events.WorkflowSaved)
	if !ok || saved.Workflow == nil {
		p.logger.WarnContext(ctx, "Ignoring workflow event without workflow")

		return nil
	}

	if err := p.store.SaveWorkflow(ctx, saved.Workflow); err != nil {
		return fmt.Errorf("failed to store workflow %s: %w", saved.Workflow.ID, err)
	}

	p.logger.DebugContext(ctx, "Stored published workflow", "workflow_id", saved.Workflow.ID)

	return nil
}

func (p *Projection) recordLineage(ctx context.Context, event Event) error {
	recorded, ok := event.(*events.LineageRecorded)
	if !ok || recorded.Record == nil {
		p.logger.WarnContext(ctx, "Ignoring lineage event without record")

		return nil
	}

	record := recorded.Record

	existing, err := p.store.Lineage(ctx, record.RootID)
	if err != nil {
		return fmt.Errorf("failed to read lineage of root %s: %w", record.RootID, err)
	}

	for _, stored := range existing {
		if stored.ID == record.ID {
			return nil
		}
	}

	if err := p.store.RecordLineage(ctx, record); err != nil {
		return fmt.Errorf("failed to store lineage record %s: %w", record.ID, err)
	}

	p.logger.DebugContext(ctx, "Stored published lineage record",
		"root_id", record.RootID,
		"record_id", record.ID,
		"cycle", record.Cycle,
	)

	return nil
}
