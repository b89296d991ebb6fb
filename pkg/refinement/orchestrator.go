// Package refinement drives the self-refinement loop: validate and evaluate a
// baseline, ask the guard for a step, request a candidate, evaluate it and decide
// whether it becomes the next baseline.
package refinement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukex/refiner/pkg/evaluation"
	"github.com/dukex/refiner/pkg/graph"
	"github.com/dukex/refiner/pkg/guard"
	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/otelhelper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// Orchestrator runs refinement trees. It holds no per-tree state, so one instance may
// refine independent roots concurrently.
type Orchestrator struct {
	generator  Generator
	guard      *guard.Guard
	engine     *evaluation.Engine
	similarity evaluation.Similarity
	schema     SchemaValidator
	sink       Sink
	tracer     trace.Tracer
	logger     *slog.Logger
	now        func() time.Time
}

func WithEngine(engine *evaluation.Engine) Option {
	return func(o *Orchestrator) {
		if engine != nil {
			o.engine = engine
		}
	}
}

// WithSimilarity fixes the semantic similarity backend for every run.
func WithSimilarity(similarity evaluation.Similarity) Option {
	return func(o *Orchestrator) {
		if similarity != nil {
			o.similarity = similarity
		}
	}
}

func WithSchemaValidator(schema SchemaValidator) Option {
	return func(o *Orchestrator) {
		o.schema = schema
	}
}

func WithSink(sink Sink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.sink = sink
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.now = clock
		}
	}
}

// New creates an orchestrator. The generator and guard are required.
func New(generator Generator, recursionGuard *guard.Guard, opts ...Option) (*Orchestrator, error) {
	if generator == nil {
		return nil, errors.New("generator is required")
	}

	if recursionGuard == nil {
		return nil, errors.New("recursion guard is required")
	}

	o := &Orchestrator{
		generator:  generator,
		guard:      recursionGuard,
		engine:     evaluation.NewEngine(nil),
		similarity: evaluation.LexicalSimilarity{},
		sink:       discardSink{},
		tracer:     otelhelper.NoopTracer("github.com/dukex/refiner/pkg/refinement"),
		logger:     slog.Default().With("module", "refinement"),
		now:        func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	return o, nil
}

// Guard returns the recursion guard the orchestrator consults.
func (o *Orchestrator) Guard() *guard.Guard {
	return o.guard
}

// Engine returns the evaluation engine.
func (o *Orchestrator) Engine() *evaluation.Engine {
	return o.engine
}

// Inspect validates and evaluates a workflow without starting a tree. The returned
// workflow is a copy carrying the repaired graph, repair notes and evaluation.
func (o *Orchestrator) Inspect(workflow *models.Workflow) (*models.Workflow, graph.Result, error) {
	if workflow == nil {
		return nil, graph.Result{}, ErrNilWorkflow
	}

	prepared := workflow.Clone()
	result, err := o.prepare(prepared)

	return prepared, result, err
}

// Refine runs a refinement tree from workflow until the guard denies a step or a
// cycle ends without acceptance. The caller's workflow is never modified. Guard
// denials and structural failures end the tree gracefully and are reported on the
// outcome; the returned error is reserved for failures to record the tree.
func (o *Orchestrator) Refine(ctx context.Context, workflow *models.Workflow, opts RunOptions) (*Outcome, error) {
	if workflow == nil {
		return nil, ErrNilWorkflow
	}

	baseline := workflow.Clone()
	if baseline.ID == "" {
		baseline.ID = newID()
	}

	rootID := opts.RootID
	if rootID == "" {
		rootID = baseline.Root()
	}

	baseline.RootID = rootID

	logger := o.logger.With("root_id", rootID)

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "refinement.tree",
		attribute.String(otelhelper.RootIDKey, rootID),
		attribute.String(otelhelper.WorkflowIDKey, baseline.ID),
		attribute.String(otelhelper.SimilarityKey, o.similarity.Name()),
	)
	defer span.End()

	outcome := &Outcome{RootID: rootID, State: StateBaseline}

	logger.InfoContext(ctx, "Starting refinement", "workflow_id", baseline.ID)

	if _, err := o.prepare(baseline); err != nil {
		outcome.State = StateHalted
		outcome.Err = err
		outcome.Reason = err.Error()
		outcome.Workflow = workflow.Clone()

		logger.WarnContext(ctx, "Baseline is structurally invalid", "error", err)
		otelhelper.SetError(span, err, attribute.String(otelhelper.StateKey, string(StateBaseline)))

		if recordErr := o.guard.RecordFailure(ctx, o.stepRequest(rootID, baseline, opts), err); recordErr != nil {
			return outcome, recordErr
		}

		return outcome, nil
	}

	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			outcome.State = StateHalted
			outcome.Err = err
			outcome.Reason = err.Error()
			outcome.Workflow = baseline

			return outcome, err
		}

		result, next, err := o.runCycle(ctx, rootID, cycle, baseline, opts)
		if err != nil {
			outcome.Workflow = baseline

			return outcome, err
		}

		outcome.Cycles = append(outcome.Cycles, result.CycleResult)
		outcome.State = result.State
		outcome.Reason = result.Reason

		if result.State == StateAccepted {
			outcome.Accepted++
			baseline = next

			continue
		}

		outcome.Err = result.err

		break
	}

	outcome.Workflow = baseline
	outcome.Evaluation = baseline.Evaluation.Clone()

	span.SetAttributes(
		attribute.String(otelhelper.StateKey, string(outcome.State)),
		attribute.String(otelhelper.WorkflowIDKey, baseline.ID),
	)

	if err := o.sink.SaveWorkflow(ctx, baseline.Clone()); err != nil {
		err = fmt.Errorf("%w: %w", ErrSinkFailure, err)
		otelhelper.SetError(span, err)

		return outcome, err
	}

	logger.InfoContext(ctx, "Refinement finished",
		"state", outcome.State,
		"accepted", outcome.Accepted,
		"cycles", len(outcome.Cycles),
		"workflow_id", baseline.ID,
		"overall_score", baseline.Evaluation.OverallScore,
	)

	return outcome, nil
}

type cycleResult struct {
	CycleResult

	err error
}

// runCycle performs Proposing, CandidateEvaluated and Decided for one cycle on a
// baseline that has already been validated and evaluated.
func (o *Orchestrator) runCycle(
	ctx context.Context,
	rootID string,
	cycle int,
	baseline *models.Workflow,
	opts RunOptions,
) (cycleResult, *models.Workflow, error) {
	logger := o.logger.With("root_id", rootID, "cycle", cycle)

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "refinement.cycle",
		attribute.String(otelhelper.RootIDKey, rootID),
		attribute.String(otelhelper.WorkflowIDKey, baseline.ID),
		attribute.Int(otelhelper.CycleKey, cycle),
	)
	defer span.End()

	result := cycleResult{CycleResult: CycleResult{Cycle: cycle, State: StateProposing}}
	request := o.stepRequest(rootID, baseline, opts)

	snapshot, err := o.guard.AuthorizeStep(ctx, request)
	if err != nil {
		if !guard.IsGuardError(err) {
			otelhelper.SetError(span, err)

			return result, nil, err
		}

		logger.InfoContext(ctx, "Guard halted refinement", "reason", err.Error())

		result.State = StateHalted
		result.Reason = err.Error()
		result.Snapshot = &snapshot
		result.err = err

		span.SetAttributes(attribute.String(otelhelper.DecisionKey, string(models.DecisionHalted)))

		return result, nil, o.record(ctx, rootID, baseline, nil, models.DecisionHalted, result)
	}

	result.Snapshot = &snapshot

	span.SetAttributes(otelhelper.SnapshotAttributes(snapshot)...)

	candidate, signal, err := o.propose(ctx, baseline)
	if err != nil {
		return o.reject(ctx, span, rootID, baseline, nil, result, request, err)
	}

	result.Signal = signal
	result.CandidateID = candidate.ID

	if _, err := o.prepare(candidate); err != nil {
		return o.reject(ctx, span, rootID, baseline, candidate, result, request, err)
	}

	result.State = StateCandidateEvaluated
	result.Evaluation = candidate.Evaluation.Clone()
	result.ScoreDelta = candidate.Evaluation.OverallScore - baseline.Evaluation.OverallScore

	semanticDelta, err := evaluation.SemanticDelta(ctx, o.similarity, baseline, candidate)
	if err != nil {
		logger.WarnContext(ctx, "Semantic delta unavailable, using zero", "error", err)

		if recordErr := o.guard.RecordFailure(ctx, request, fmt.Errorf("semantic delta: %w", err)); recordErr != nil {
			return result, nil, recordErr
		}

		semanticDelta = 0
	}

	result.SemanticDelta = semanticDelta
	result.State = StateDecided

	span.SetAttributes(otelhelper.DecisionAttributes(signal, result.ScoreDelta, result.SemanticDelta)...)

	accepted, reason := o.decide(signal, snapshot.Depth-1, result.ScoreDelta, result.SemanticDelta)
	result.Reason = reason

	decision := models.DecisionRejected
	if accepted {
		decision = models.DecisionAccepted
		result.State = StateAccepted
	} else {
		result.State = StateRejected
	}

	span.SetAttributes(attribute.String(otelhelper.DecisionKey, string(decision)))

	logger.InfoContext(ctx, "Candidate decided",
		"candidate_id", candidate.ID,
		"decision", decision,
		"signal", signal,
		"score_delta", result.ScoreDelta,
		"semantic_delta", result.SemanticDelta,
	)

	if err := o.record(ctx, rootID, baseline, candidate, decision, result); err != nil {
		return result, nil, err
	}

	if !accepted {
		return result, nil, nil
	}

	return result, candidate, nil
}

// decide applies the acceptance rule: an accepting signal, a pre-step depth below the
// limit, and a score or semantic delta reaching its threshold within the tolerance band.
func (o *Orchestrator) decide(signal models.DecisionSignal, preStepDepth int, scoreDelta, semanticDelta float64) (bool, string) {
	policy := o.guard.Policy()

	if !signal.AllowsAcceptance() {
		return false, fmt.Sprintf("generator signal %q does not allow acceptance", signal)
	}

	if preStepDepth >= policy.MaxDepth {
		return false, fmt.Sprintf("depth %d reached max depth %d", preStepDepth, policy.MaxDepth)
	}

	improved := scoreDelta >= policy.MinImprovement-policy.Tolerance
	changed := semanticDelta >= policy.MinSemanticDelta-policy.Tolerance

	switch {
	case improved && changed:
		return true, fmt.Sprintf("score delta %.4f and semantic delta %.4f reached their thresholds", scoreDelta, semanticDelta)
	case improved:
		return true, fmt.Sprintf("score delta %.4f reached min improvement %.4f", scoreDelta, policy.MinImprovement)
	case changed:
		return true, fmt.Sprintf("semantic delta %.4f reached min semantic delta %.4f", semanticDelta, policy.MinSemanticDelta)
	default:
		return false, fmt.Sprintf("score delta %.4f below %.4f and semantic delta %.4f below %.4f",
			scoreDelta, policy.MinImprovement, semanticDelta, policy.MinSemanticDelta)
	}
}

// propose calls the generator and turns its proposal into a detached candidate.
func (o *Orchestrator) propose(ctx context.Context, baseline *models.Workflow) (*models.Workflow, models.DecisionSignal, error) {
	proposal, err := o.generator.Propose(ctx, baseline.Clone(), baseline.Evaluation.Clone())
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}

	if proposal == nil || proposal.Workflow == nil {
		return nil, "", fmt.Errorf("%w: generator returned no candidate", ErrGenerationFailure)
	}

	candidate := proposal.Workflow.Clone()
	if candidate.ID == "" || candidate.ID == baseline.ID {
		candidate.ID = newID()
	}

	if candidate.Version == "" {
		candidate.Version = baseline.Version
	}

	now := o.now()
	candidate.ParentID = baseline.ID
	candidate.RootID = baseline.RootID
	candidate.Graph = nil
	candidate.Evaluation = nil
	candidate.UpdatedAt = now

	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}

	return candidate, models.ParseDecisionSignal(proposal.Signal), nil
}

// reject closes a cycle whose candidate failed generation or validation. The failure
// is written to the audit trail and the baseline is kept.
func (o *Orchestrator) reject(
	ctx context.Context,
	span trace.Span,
	rootID string,
	baseline, candidate *models.Workflow,
	result cycleResult,
	request guard.StepRequest,
	cause error,
) (cycleResult, *models.Workflow, error) {
	result.State = StateRejected
	result.Reason = cause.Error()
	result.err = cause

	o.logger.WarnContext(ctx, "Candidate rejected",
		"root_id", rootID,
		"cycle", result.Cycle,
		"error", cause,
	)
	otelhelper.SetError(span, cause, attribute.String(otelhelper.StateKey, string(StateRejected)))

	if err := o.guard.RecordFailure(ctx, request, cause); err != nil {
		return result, nil, err
	}

	return result, nil, o.record(ctx, rootID, baseline, candidate, models.DecisionRejected, result)
}

// prepare validates and evaluates w in place, writing the repaired graph, repair
// notes and evaluation onto it.
func (o *Orchestrator) prepare(w *models.Workflow) (graph.Result, error) {
	result := graph.Validate(w.Phases)
	if result.Err != nil {
		return result, result.Err
	}

	if o.schema != nil {
		if ok, problems := o.schema.Validate(w); !ok {
			return result, fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(problems, "; "))
		}
	}

	w.Graph = result.Graph

	for _, note := range result.Notes() {
		if !slices.Contains(w.Notes, note) {
			w.AddNote(note)
		}
	}

	w.Evaluation = o.engine.Evaluate(w)

	return result, nil
}

func (o *Orchestrator) record(
	ctx context.Context,
	rootID string,
	baseline, candidate *models.Workflow,
	decision models.Decision,
	result cycleResult,
) error {
	record := &models.LineageRecord{
		ID:               newID(),
		RootID:           rootID,
		Cycle:            result.Cycle,
		WorkflowID:       baseline.ID,
		ParentWorkflowID: baseline.ParentID,
		Evaluation:       baseline.Evaluation.Clone(),
		Decision:         decision,
		Signal:           result.Signal,
		ScoreDelta:       result.ScoreDelta,
		SemanticDelta:    result.SemanticDelta,
		Snapshot:         result.Snapshot,
		Reason:           result.Reason,
		CreatedAt:        o.now(),
	}

	if candidate != nil {
		record.WorkflowID = candidate.ID
		record.ParentWorkflowID = baseline.ID
		record.Evaluation = candidate.Evaluation.Clone()
	}

	if err := o.sink.RecordLineage(ctx, record); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkFailure, err)
	}

	return nil
}

func (o *Orchestrator) stepRequest(rootID string, baseline *models.Workflow, opts RunOptions) guard.StepRequest {
	return guard.StepRequest{
		RootID:               rootID,
		ParentID:             baseline.ID,
		DeclaredCost:         opts.StepCost,
		TerminationCondition: opts.TerminationCondition,
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
