package refinement_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/refiner/pkg/evaluation"
	"github.com/dukex/refiner/pkg/graph"
	"github.com/dukex/refiner/pkg/guard"
	"github.com/dukex/refiner/pkg/mocks"
	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/refinement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const termination = "stop when a candidate no longer improves the workflow"

var fixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// scoreRegistry makes overall_score equal the workflow's "score" metadata.
func scoreRegistry() *evaluation.Registry {
	registry := evaluation.NewRegistry()
	registry.MustRegister("score", func(w *models.Workflow) float64 {
		score, _ := w.Metadata["score"].(float64)

		return score
	})

	return registry
}

// fixedSimilarity reports the same similarity for any pair of texts.
type fixedSimilarity struct {
	value float64
	err   error
}

func (f fixedSimilarity) Name() string { return "fixed" }

func (f fixedSimilarity) Similarity(context.Context, string, string) (float64, error) {
	return f.value, f.err
}

// memorySink records everything it is handed.
type memorySink struct {
	mu        sync.Mutex
	records   []*models.LineageRecord
	workflows []*models.Workflow
}

func (s *memorySink) RecordLineage(_ context.Context, record *models.LineageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)

	return nil
}

func (s *memorySink) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows = append(s.workflows, workflow)

	return nil
}

func (s *memorySink) decisions() []models.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	decisions := make([]models.Decision, 0, len(s.records))
	for _, record := range s.records {
		decisions = append(decisions, record.Decision)
	}

	return decisions
}

func scoredWorkflow(id string, score float64) *models.Workflow {
	return &models.Workflow{
		ID:       id,
		Version:  "1",
		Metadata: map[string]any{"score": score, models.MetadataPurpose: "onboard new engineers"},
		Phases: []*models.Phase{
			{ID: "setup", Title: "Setup", AutomatedBehavior: "provision accounts and laptops"},
			{ID: "intro", Title: "Introductions", HumanBehavior: "meet the team", DependsOn: []string{"setup"}},
		},
	}
}

// stepGenerator proposes the baseline with its score raised by step.
func stepGenerator(step float64, signal string, calls *atomic.Int32) refinement.GeneratorFunc {
	return func(_ context.Context, baseline *models.Workflow, _ *models.EvaluationResult) (*refinement.Proposal, error) {
		if calls != nil {
			calls.Add(1)
		}

		candidate := baseline.Clone()
		candidate.Metadata["score"] = baseline.Metadata["score"].(float64) + step

		return &refinement.Proposal{Workflow: candidate, Signal: signal}, nil
	}
}

type setup struct {
	policy     models.RefinementPolicy
	similarity evaluation.Similarity
	guardOpts  []guard.Option
	orchOpts   []refinement.Option
}

func newOrchestrator(t *testing.T, generator refinement.Generator, s setup) (*refinement.Orchestrator, *guard.Guard, *memorySink) {
	t.Helper()

	policy := s.policy
	if policy == (models.RefinementPolicy{}) {
		policy = models.DefaultPolicy()
	}

	similarity := s.similarity
	if similarity == nil {
		similarity = fixedSimilarity{value: 1}
	}

	g, err := guard.New(policy, append([]guard.Option{guard.WithClock(func() time.Time { return fixedTime })}, s.guardOpts...)...)
	require.NoError(t, err)

	sink := &memorySink{}

	opts := append([]refinement.Option{
		refinement.WithEngine(evaluation.NewEngine(scoreRegistry())),
		refinement.WithSimilarity(similarity),
		refinement.WithSink(sink),
		refinement.WithClock(func() time.Time { return fixedTime }),
	}, s.orchOpts...)

	o, err := refinement.New(generator, g, opts...)
	require.NoError(t, err)

	return o, g, sink
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	g, err := guard.New(models.DefaultPolicy())
	require.NoError(t, err)

	_, err = refinement.New(nil, g)
	require.Error(t, err)

	_, err = refinement.New(stepGenerator(0.1, "accept", nil), nil)
	require.Error(t, err)
}

func TestRefine_AcceptsScoreImprovement(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	o, g, sink := newOrchestrator(t, stepGenerator(0.10, "accept", &calls), setup{})
	ctx := context.Background()

	outcome, err := o.Refine(ctx, scoredWorkflow("wf-b", 0.60), refinement.RunOptions{
		TerminationCondition: termination,
		StepCost:             1,
	})
	require.NoError(t, err)

	first := outcome.Cycles[0]
	assert.Equal(t, refinement.StateAccepted, first.State)
	assert.InDelta(t, 0.10, first.ScoreDelta, 1e-9)
	assert.Equal(t, models.SignalAccept, first.Signal)
	assert.Equal(t, 1, first.Snapshot.Depth)

	// Two acceptances fill max_depth 2; the third step is denied.
	assert.Equal(t, 2, outcome.Accepted)
	assert.Equal(t, refinement.StateHalted, outcome.State)
	require.ErrorIs(t, outcome.Err, guard.ErrDepthExceeded)
	assert.Equal(t, int32(2), calls.Load())
	assert.InDelta(t, 0.80, outcome.Evaluation.OverallScore, 1e-9)
	assert.Equal(t, "wf-b", outcome.RootID)

	assert.Equal(t, []models.Decision{
		models.DecisionAccepted,
		models.DecisionAccepted,
		models.DecisionHalted,
	}, sink.decisions())
	require.Len(t, sink.workflows, 1)
	assert.Equal(t, outcome.Workflow.ID, sink.workflows[0].ID)

	assert.Equal(t, guard.LedgerState{Depth: 2, ChildrenGenerated: 2, CostSpent: 2}, g.Ledger("wf-b"))

	trail, err := g.Trail(ctx, "wf-b")
	require.NoError(t, err)

	for _, snapshot := range trail {
		assert.LessOrEqual(t, snapshot.Depth, g.Policy().MaxDepth)
		assert.LessOrEqual(t, snapshot.CostSpent, g.Policy().CostBudget)
	}
}

func TestRefine_AcceptsLastStepOfRestoredLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	trail := guard.NewMemoryTrail()

	policy := models.DefaultPolicy()
	policy.MaxDepth = 3

	// The first process accepts once, then rejects a candidate that changes nothing.
	var calls atomic.Int32

	improveOnce := func(ctx context.Context, baseline *models.Workflow, eval *models.EvaluationResult) (*refinement.Proposal, error) {
		step := 0.0
		if calls.Add(1) == 1 {
			step = 0.1
		}

		return stepGenerator(step, "accept", nil)(ctx, baseline, eval)
	}

	first, _, _ := newOrchestrator(t, refinement.GeneratorFunc(improveOnce), setup{
		policy:     policy,
		similarity: fixedSimilarity{value: 1},
		guardOpts:  []guard.Option{guard.WithAuditTrail(trail)},
	})

	opts := refinement.RunOptions{TerminationCondition: termination, StepCost: 1}

	outcome, err := first.Refine(ctx, scoredWorkflow("wf-restored", 0.5), opts)
	require.NoError(t, err)
	require.Equal(t, refinement.StateRejected, outcome.State)
	require.Equal(t, 1, outcome.Accepted)

	// A later process over the same trail is one step away from max depth.
	second, g, _ := newOrchestrator(t, stepGenerator(0.1, "accept", nil), setup{
		policy:    policy,
		guardOpts: []guard.Option{guard.WithAuditTrail(trail)},
	})

	outcome, err = second.Refine(ctx, outcome.Workflow, opts)
	require.NoError(t, err)

	require.Len(t, outcome.Cycles, 2)
	assert.Equal(t, refinement.StateAccepted, outcome.Cycles[0].State)
	assert.Equal(t, 3, outcome.Cycles[0].Snapshot.Depth)
	assert.Equal(t, 1, outcome.Accepted)
	require.ErrorIs(t, outcome.Err, guard.ErrDepthExceeded)
	assert.Equal(t, 3, g.Ledger("wf-restored").Depth)
}

func TestRefine_RejectsBelowBothThresholds(t *testing.T) {
	t.Parallel()

	o, _, sink := newOrchestrator(t, stepGenerator(0.02, "accept", nil), setup{
		similarity: fixedSimilarity{value: 0.97},
	})

	baseline := scoredWorkflow("wf-c", 0.60)
	before := baseline.Clone()

	outcome, err := o.Refine(context.Background(), baseline, refinement.RunOptions{
		TerminationCondition: termination,
		StepCost:             1,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Cycles, 1)
	cycle := outcome.Cycles[0]
	assert.Equal(t, refinement.StateRejected, cycle.State)
	assert.InDelta(t, 0.02, cycle.ScoreDelta, 1e-9)
	assert.InDelta(t, 0.03, cycle.SemanticDelta, 1e-9)

	assert.Equal(t, refinement.StateRejected, outcome.State)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, 0, outcome.Accepted)
	assert.Equal(t, "wf-c", outcome.Workflow.ID)
	assert.InDelta(t, 0.60, outcome.Evaluation.OverallScore, 1e-9)
	assert.Equal(t, before.Phases, outcome.Workflow.Phases)
	assert.Equal(t, before.Metadata, outcome.Workflow.Metadata)

	// The caller's workflow is untouched.
	assert.Equal(t, before, baseline)

	require.Len(t, sink.records, 1)
	assert.Equal(t, models.DecisionRejected, sink.records[0].Decision)
	assert.Equal(t, "wf-c", sink.records[0].ParentWorkflowID)
	assert.NotEqual(t, "wf-c", sink.records[0].WorkflowID)
}

func TestRefine_TerminationMissingHaltsBeforeProposal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	o, g, sink := newOrchestrator(t, stepGenerator(0.2, "accept", &calls), setup{})
	ctx := context.Background()

	outcome, err := o.Refine(ctx, scoredWorkflow("wf-d", 0.5), refinement.RunOptions{StepCost: 1})
	require.NoError(t, err)

	assert.Equal(t, refinement.StateHalted, outcome.State)
	require.ErrorIs(t, outcome.Err, guard.ErrTerminationMissing)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, "wf-d", outcome.Workflow.ID)

	trail, err := g.Trail(ctx, "wf-d")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.SnapshotDenied, trail[0].Outcome)

	assert.Equal(t, []models.Decision{models.DecisionHalted}, sink.decisions())
}

func TestRefine_SemanticDeltaAloneAccepts(t *testing.T) {
	t.Parallel()

	policy := models.DefaultPolicy()
	policy.MaxDepth = 1

	o, _, _ := newOrchestrator(t, stepGenerator(0, "revise", nil), setup{
		policy:     policy,
		similarity: fixedSimilarity{value: 0.5},
	})

	outcome, err := o.Refine(context.Background(), scoredWorkflow("wf", 0.4), refinement.RunOptions{
		TerminationCondition: termination,
	})
	require.NoError(t, err)

	assert.Equal(t, refinement.StateAccepted, outcome.Cycles[0].State)
	assert.InDelta(t, 0.5, outcome.Cycles[0].SemanticDelta, 1e-9)
	assert.Equal(t, 1, outcome.Accepted)
	assert.Equal(t, "wf", outcome.Workflow.ParentID)
}

func TestRefine_ToleranceBandAbsorbsRoundingError(t *testing.T) {
	t.Parallel()

	policy := models.DefaultPolicy()
	policy.MaxDepth = 1

	// 0.35 - 0.30 is 0.04999999999999999 in float64.
	generator := refinement.GeneratorFunc(func(_ context.Context, baseline *models.Workflow, _ *models.EvaluationResult) (*refinement.Proposal, error) {
		candidate := baseline.Clone()
		candidate.Metadata["score"] = 0.35

		return &refinement.Proposal{Workflow: candidate, Signal: "accept"}, nil
	})

	o, _, _ := newOrchestrator(t, generator, setup{policy: policy})

	outcome, err := o.Refine(context.Background(), scoredWorkflow("wf", 0.30), refinement.RunOptions{
		TerminationCondition: termination,
	})
	require.NoError(t, err)

	assert.Equal(t, refinement.StateAccepted, outcome.Cycles[0].State)
}

func TestRefine_SignalsThatForbidAcceptance(t *testing.T) {
	t.Parallel()

	for _, signal := range []string{"reject", "ship it", "", "ACCEPTED"} {
		t.Run(signal, func(t *testing.T) {
			t.Parallel()

			o, _, _ := newOrchestrator(t, stepGenerator(0.3, signal, nil), setup{})

			outcome, err := o.Refine(context.Background(), scoredWorkflow("wf", 0.3), refinement.RunOptions{
				TerminationCondition: termination,
			})
			require.NoError(t, err)

			require.Len(t, outcome.Cycles, 1)
			assert.Equal(t, refinement.StateRejected, outcome.Cycles[0].State)
			assert.Equal(t, models.SignalReject, outcome.Cycles[0].Signal)
			assert.Equal(t, "wf", outcome.Workflow.ID)
		})
	}
}

func TestRefine_GenerationFailureIsRejectionWithoutRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		proposal *refinement.Proposal
		err      error
	}{
		{name: "generator error", err: errors.New("upstream timeout")},
		{name: "nil proposal"},
		{name: "proposal without workflow", proposal: &refinement.Proposal{Signal: "accept"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			generator := &mocks.MockGenerator{}
			generator.On("Propose", mock.Anything, mock.Anything, mock.Anything).Return(tt.proposal, tt.err).Once()

			o, g, sink := newOrchestrator(t, generator, setup{})
			ctx := context.Background()

			outcome, err := o.Refine(ctx, scoredWorkflow("wf", 0.5), refinement.RunOptions{
				TerminationCondition: termination,
				StepCost:             1,
			})
			require.NoError(t, err)

			generator.AssertNumberOfCalls(t, "Propose", 1)
			assert.Equal(t, refinement.StateRejected, outcome.State)
			require.ErrorIs(t, outcome.Err, refinement.ErrGenerationFailure)
			assert.True(t, refinement.IsGenerationFailure(outcome.Err))
			assert.Equal(t, "wf", outcome.Workflow.ID)

			trail, err := g.Trail(ctx, "wf")
			require.NoError(t, err)
			require.Len(t, trail, 2)
			assert.Equal(t, models.SnapshotAuthorized, trail[0].Outcome)
			assert.Equal(t, models.SnapshotFailed, trail[1].Outcome)

			assert.Equal(t, []models.Decision{models.DecisionRejected}, sink.decisions())
		})
	}
}

func TestRefine_StructurallyInvalidCandidateIsRejected(t *testing.T) {
	t.Parallel()

	generator := refinement.GeneratorFunc(func(_ context.Context, baseline *models.Workflow, _ *models.EvaluationResult) (*refinement.Proposal, error) {
		candidate := baseline.Clone()
		candidate.Metadata["score"] = 0.99
		candidate.Phases = append(candidate.Phases, &models.Phase{ID: "setup", Title: "Setup again"})

		return &refinement.Proposal{Workflow: candidate, Signal: "accept"}, nil
	})

	o, g, _ := newOrchestrator(t, generator, setup{})
	ctx := context.Background()

	outcome, err := o.Refine(ctx, scoredWorkflow("wf", 0.5), refinement.RunOptions{TerminationCondition: termination})
	require.NoError(t, err)

	assert.Equal(t, refinement.StateRejected, outcome.State)
	require.ErrorIs(t, outcome.Err, graph.ErrDuplicatePhase)
	assert.Len(t, outcome.Workflow.Phases, 2)
	assert.InDelta(t, 0.5, outcome.Evaluation.OverallScore, 1e-9)

	trail, err := g.Trail(ctx, "wf")
	require.NoError(t, err)
	assert.Equal(t, models.SnapshotFailed, trail[len(trail)-1].Outcome)
}

func TestRefine_StructurallyInvalidBaselineHalts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	o, g, sink := newOrchestrator(t, stepGenerator(0.2, "accept", &calls), setup{})
	ctx := context.Background()

	baseline := scoredWorkflow("wf", 0.5)
	baseline.Phases = append(baseline.Phases, &models.Phase{ID: "intro", Title: "Duplicate"})

	outcome, err := o.Refine(ctx, baseline, refinement.RunOptions{TerminationCondition: termination})
	require.NoError(t, err)

	assert.Equal(t, refinement.StateHalted, outcome.State)
	assert.True(t, graph.IsStructuralFailure(outcome.Err))
	assert.Equal(t, int32(0), calls.Load())
	assert.Empty(t, outcome.Cycles)
	assert.Empty(t, sink.records)

	trail, err := g.Trail(ctx, "wf")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.SnapshotFailed, trail[0].Outcome)
}

func TestRefine_RepairedBaselineCarriesNotes(t *testing.T) {
	t.Parallel()

	policy := models.DefaultPolicy()
	policy.MaxDepth = 1

	o, _, _ := newOrchestrator(t, stepGenerator(0, "accept", nil), setup{policy: policy})

	baseline := scoredWorkflow("wf", 0.5)
	baseline.Phases[0].DependsOn = []string{"intro"}

	outcome, err := o.Refine(context.Background(), baseline, refinement.RunOptions{TerminationCondition: termination})
	require.NoError(t, err)

	assert.False(t, graph.HasCycle(outcome.Workflow.Graph))
	require.NotEmpty(t, outcome.Workflow.Notes)
	assert.Contains(t, outcome.Workflow.Notes[0], "cycle")
}

func TestRefine_SchemaViolationRejectsCandidate(t *testing.T) {
	t.Parallel()

	schema := &mocks.MockSchemaValidator{}
	schema.On("Validate", mock.MatchedBy(func(w *models.Workflow) bool { return w.ID == "wf" })).Return(true, nil)
	schema.On("Validate", mock.MatchedBy(func(w *models.Workflow) bool { return w.ID != "wf" })).
		Return(false, []string{"phases.0.title: required"})

	o, _, _ := newOrchestrator(t, stepGenerator(0.3, "accept", nil), setup{
		orchOpts: []refinement.Option{refinement.WithSchemaValidator(schema)},
	})

	outcome, err := o.Refine(context.Background(), scoredWorkflow("wf", 0.3), refinement.RunOptions{TerminationCondition: termination})
	require.NoError(t, err)

	assert.Equal(t, refinement.StateRejected, outcome.State)
	require.ErrorIs(t, outcome.Err, refinement.ErrSchemaViolation)
	assert.True(t, graph.IsStructuralFailure(outcome.Err))
	assert.Contains(t, outcome.Reason, "phases.0.title")
}

func TestRefine_CandidateIdentity(t *testing.T) {
	t.Parallel()

	policy := models.DefaultPolicy()
	policy.MaxDepth = 1

	var received *models.Workflow

	generator := refinement.GeneratorFunc(func(_ context.Context, baseline *models.Workflow, evaluation *models.EvaluationResult) (*refinement.Proposal, error) {
		received = baseline
		assert.InDelta(t, 0.2, evaluation.OverallScore, 1e-9)

		candidate := baseline
		candidate.Metadata["score"] = 0.9
		candidate.Version = ""

		return &refinement.Proposal{Workflow: candidate, Signal: "accept"}, nil
	})

	o, _, _ := newOrchestrator(t, generator, setup{policy: policy})

	outcome, err := o.Refine(context.Background(), scoredWorkflow("wf", 0.2), refinement.RunOptions{TerminationCondition: termination})
	require.NoError(t, err)

	require.NotNil(t, received)
	assert.NotEqual(t, "wf", outcome.Workflow.ID)
	assert.Equal(t, "wf", outcome.Workflow.ParentID)
	assert.Equal(t, "1", outcome.Workflow.Version)
	assert.Equal(t, fixedTime, outcome.Workflow.UpdatedAt)

	// Mutating what the generator returned does not reach the accepted workflow.
	received.Metadata["score"] = 0.0
	assert.InDelta(t, 0.9, outcome.Workflow.Metadata["score"], 1e-9)
}

func TestRefine_CheckpointDeniesNearLimit(t *testing.T) {
	t.Parallel()

	checkpoint := func(_ context.Context, snapshot models.RecursionSnapshot) bool {
		return snapshot.CostSpent < 8
	}

	o, _, _ := newOrchestrator(t, stepGenerator(0.1, "accept", nil), setup{
		guardOpts: []guard.Option{guard.WithCheckpoint(checkpoint)},
	})

	outcome, err := o.Refine(context.Background(), scoredWorkflow("wf", 0.1), refinement.RunOptions{
		TerminationCondition: termination,
		StepCost:             8,
	})
	require.NoError(t, err)

	assert.Equal(t, refinement.StateHalted, outcome.State)
	require.ErrorIs(t, outcome.Err, guard.ErrCheckpointDenied)
	assert.Equal(t, "wf", outcome.Workflow.ID)
}

func TestRefine_SimilarityFailureFallsBackToScore(t *testing.T) {
	t.Parallel()

	policy := models.DefaultPolicy()
	policy.MaxDepth = 1

	o, g, _ := newOrchestrator(t, stepGenerator(0.2, "accept", nil), setup{
		policy:     policy,
		similarity: fixedSimilarity{err: errors.New("embedding service unavailable")},
	})
	ctx := context.Background()

	outcome, err := o.Refine(ctx, scoredWorkflow("wf", 0.2), refinement.RunOptions{TerminationCondition: termination})
	require.NoError(t, err)

	assert.Equal(t, refinement.StateAccepted, outcome.Cycles[0].State)
	assert.Zero(t, outcome.Cycles[0].SemanticDelta)

	trail, err := g.Trail(ctx, "wf")
	require.NoError(t, err)

	var failed int

	for _, snapshot := range trail {
		if snapshot.Outcome == models.SnapshotFailed {
			failed++

			assert.Contains(t, snapshot.Reason, "embedding service unavailable")
		}
	}

	assert.Equal(t, 1, failed)
}

func TestRefine_SinkReceivesEveryCycle(t *testing.T) {
	t.Parallel()

	sink := &mocks.MockSink{}
	sink.On("RecordLineage", mock.Anything, mock.MatchedBy(func(r *models.LineageRecord) bool {
		return r.Decision == models.DecisionAccepted && r.Cycle == 1
	})).Return(nil).Once()
	sink.On("RecordLineage", mock.Anything, mock.MatchedBy(func(r *models.LineageRecord) bool {
		return r.Decision == models.DecisionRejected && r.Cycle == 2
	})).Return(nil).Once()
	sink.On("SaveWorkflow", mock.Anything, mock.AnythingOfType("*models.Workflow")).Return(nil).Once()

	step := 0.2
	generator := refinement.GeneratorFunc(func(_ context.Context, baseline *models.Workflow, _ *models.EvaluationResult) (*refinement.Proposal, error) {
		candidate := baseline.Clone()
		candidate.Metadata["score"] = baseline.Metadata["score"].(float64) + step
		step = 0

		return &refinement.Proposal{Workflow: candidate, Signal: "accept"}, nil
	})

	o, _, _ := newOrchestrator(t, generator, setup{orchOpts: []refinement.Option{refinement.WithSink(sink)}})

	outcome, err := o.Refine(context.Background(), scoredWorkflow("wf", 0.2), refinement.RunOptions{TerminationCondition: termination})
	require.NoError(t, err)

	assert.Equal(t, refinement.StateRejected, outcome.State)
	sink.AssertExpectations(t)
}

func TestRefine_SinkFailureIsReturned(t *testing.T) {
	t.Parallel()

	sink := &mocks.MockSink{}
	sink.On("RecordLineage", mock.Anything, mock.Anything).Return(errors.New("database is down"))

	o, _, _ := newOrchestrator(t, stepGenerator(0.2, "accept", nil), setup{
		orchOpts: []refinement.Option{refinement.WithSink(sink)},
	})

	outcome, err := o.Refine(context.Background(), scoredWorkflow("wf", 0.2), refinement.RunOptions{TerminationCondition: termination})

	require.ErrorIs(t, err, refinement.ErrSinkFailure)
	require.NotNil(t, outcome)
	assert.Equal(t, "wf", outcome.Workflow.ID)
	sink.AssertNotCalled(t, "SaveWorkflow", mock.Anything, mock.Anything)
}

func TestRefine_CanceledContext(t *testing.T) {
	t.Parallel()

	o, _, _ := newOrchestrator(t, stepGenerator(0.2, "accept", nil), setup{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := o.Refine(ctx, scoredWorkflow("wf", 0.2), refinement.RunOptions{TerminationCondition: termination})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, refinement.StateHalted, outcome.State)
}

func TestRefine_NilWorkflow(t *testing.T) {
	t.Parallel()

	o, _, _ := newOrchestrator(t, stepGenerator(0.2, "accept", nil), setup{})

	_, err := o.Refine(context.Background(), nil, refinement.RunOptions{TerminationCondition: termination})

	assert.ErrorIs(t, err, refinement.ErrNilWorkflow)
}

func TestInspect(t *testing.T) {
	t.Parallel()

	o, _, _ := newOrchestrator(t, stepGenerator(0.2, "accept", nil), setup{})

	workflow := scoredWorkflow("wf", 0.7)
	workflow.Phases[1].DependsOn = append(workflow.Phases[1].DependsOn, "kickoff")

	inspected, result, err := o.Inspect(workflow)
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.InDelta(t, 0.7, inspected.Evaluation.OverallScore, 1e-9)
	assert.Len(t, inspected.Notes, 1)
	assert.Nil(t, workflow.Evaluation)
	assert.Empty(t, workflow.Notes)
}
