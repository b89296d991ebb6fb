package mocks

import (
	"context"

	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/refinement"
	"github.com/stretchr/testify/mock"
)

// MockGenerator is a mock implementation of refinement.Generator interface.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Propose(
	ctx context.Context,
	baseline *models.Workflow,
	evaluation *models.EvaluationResult,
) (*refinement.Proposal, error) {
	args := m.Called(ctx, baseline, evaluation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*refinement.Proposal), args.Error(1)
}

// MockSink is a mock implementation of refinement.Sink interface.
type MockSink struct {
	mock.Mock
}

func (m *MockSink) RecordLineage(ctx context.Context, record *models.LineageRecord) error {
	args := m.Called(ctx, record)

	return args.Error(0)
}

func (m *MockSink) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

// MockSchemaValidator is a mock implementation of refinement.SchemaValidator interface.
type MockSchemaValidator struct {
	mock.Mock
}

func (m *MockSchemaValidator) Validate(workflow *models.Workflow) (bool, []string) {
	args := m.Called(workflow)
	if args.Get(1) == nil {
		return args.Bool(0), nil
	}

	return args.Bool(0), args.Get(1).([]string)
}
