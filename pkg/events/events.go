// Package events defines the events published while workflows are refined.
package events

import (
	"time"

	"github.com/dukex/refiner/pkg/models"
	"github.com/google/uuid"
)

type EventType string

const Topic = "refiner.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	LineageRecordedEvent  EventType = "lineage.recorded"
	WorkflowSavedEvent    EventType = "workflow.saved"
	RefinementHaltedEvent EventType = "refinement.halted"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	RootID     string         `json:"root_id,omitempty"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// LineageRecorded carries the lineage record of one refinement cycle.
type LineageRecorded struct {
	BaseEvent

	Record *models.LineageRecord `json:"record"`
}

func (e LineageRecorded) GetType() EventType {
	return LineageRecordedEvent
}

// WorkflowSaved is published when a tree's final working workflow is stored.
type WorkflowSaved struct {
	BaseEvent

	Workflow *models.Workflow `json:"workflow"`
}

func (e WorkflowSaved) GetType() EventType {
	return WorkflowSavedEvent
}

// RefinementHalted is published when a cycle ends the tree with a halt.
type RefinementHalted struct {
	BaseEvent

	Cycle    int                       `json:"cycle"`
	Reason   string                    `json:"reason"`
	Snapshot *models.RecursionSnapshot `json:"recursion_snapshot,omitempty"`
}

func (e RefinementHalted) GetType() EventType {
	return RefinementHaltedEvent
}

func NewBaseEvent(eventType EventType, rootID, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		RootID:     rootID,
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
