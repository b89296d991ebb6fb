package refinement

import (
	"context"
	"errors"

	"github.com/dukex/refiner/pkg/models"
)

// Proposal is a candidate workflow with the generator's decision signal.
type Proposal struct {
	Workflow *models.Workflow `json:"workflow"`
	Signal   string           `json:"decision"`
}

// Generator produces a candidate from a baseline and its evaluation. It is the only
// suspension point of a refinement cycle.
type Generator interface {
	Propose(ctx context.Context, baseline *models.Workflow, evaluation *models.EvaluationResult) (*Proposal, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, baseline *models.Workflow, evaluation *models.EvaluationResult) (*Proposal, error)

func (f GeneratorFunc) Propose(ctx context.Context, baseline *models.Workflow, evaluation *models.EvaluationResult) (*Proposal, error) {
	return f(ctx, baseline, evaluation)
}

// SchemaValidator checks a workflow against rules outside the dependency graph.
type SchemaValidator interface {
	Validate(workflow *models.Workflow) (bool, []string)
}

// Sink receives a lineage record after every cycle and the final workflow of a tree.
type Sink interface {
	RecordLineage(ctx context.Context, record *models.LineageRecord) error
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
}

// MultiSink hands every record and workflow to each sink in order.
type MultiSink []Sink

func (m MultiSink) RecordLineage(ctx context.Context, record *models.LineageRecord) error {
	var errs []error

	for _, sink := range m {
		if sink == nil {
			continue
		}

		if err := sink.RecordLineage(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m MultiSink) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	var errs []error

	for _, sink := range m {
		if sink == nil {
			continue
		}

		if err := sink.SaveWorkflow(ctx, workflow); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

type discardSink struct{}

func (discardSink) RecordLineage(context.Context, *models.LineageRecord) error { return nil }

func (discardSink) SaveWorkflow(context.Context, *models.Workflow) error { return nil }
