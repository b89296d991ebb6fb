package eventbus

import (
	"context"
	"fmt"

	"github.com/dukex/refiner/pkg/events"
	"github.com/dukex/refiner/pkg/models"
)

// LineagePublisher is a refinement sink that publishes lineage and saved workflows as events.
// Events are keyed by root id so a partitioned transport keeps each tree in order.
type LineagePublisher struct {
	publisher Publisher
}

func NewLineagePublisher(publisher Publisher) *LineagePublisher {
	return &LineagePublisher{publisher: publisher}
}

// RecordLineage publishes a LineageRecorded event, followed by RefinementHalted for halt cycles.
func (p *LineagePublisher) RecordLineage(ctx context.Context, record *models.LineageRecord) error {
	event := &events.LineageRecorded{
		BaseEvent: events.NewBaseEvent(events.LineageRecordedEvent, record.RootID, record.WorkflowID),
		Record:    record,
	}

	err := p.publisher.Publish(ctx, record.RootID, event)
	if err != nil {
		return fmt.Errorf("failed to publish lineage record %s: %w", record.ID, err)
	}

	if record.Decision != models.DecisionHalted {
		return nil
	}

	halted := &events.RefinementHalted{
		BaseEvent: events.NewBaseEvent(events.RefinementHaltedEvent, record.RootID, record.WorkflowID),
		Cycle:     record.Cycle,
		Reason:    record.Reason,
		Snapshot:  record.Snapshot,
	}

	err = p.publisher.Publish(ctx, record.RootID, halted)
	if err != nil {
		return fmt.Errorf("failed to publish halt of root %s: %w", record.RootID, err)
	}

	return nil
}

// SaveWorkflow publishes a WorkflowSaved event keyed by the workflow id.
func (p *LineagePublisher) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	event := &events.WorkflowSaved{
		BaseEvent: events.NewBaseEvent(events.WorkflowSavedEvent, "", workflow.ID),
		Workflow:  workflow,
	}

	err := p.publisher.Publish(ctx, workflow.ID, event)
	if err != nil {
		return fmt.Errorf("failed to publish workflow %s: %w", workflow.ID, err)
	}

	return nil
}
