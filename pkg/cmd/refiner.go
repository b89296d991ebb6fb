package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/refiner/pkg/config"
	"github.com/dukex/refiner/pkg/evaluation"
	"github.com/dukex/refiner/pkg/eventbus"
	"github.com/dukex/refiner/pkg/generator"
	"github.com/dukex/refiner/pkg/guard"
	"github.com/dukex/refiner/pkg/otelhelper"
	"github.com/dukex/refiner/pkg/persistence"
	"github.com/dukex/refiner/pkg/refinement"
	"github.com/dukex/refiner/pkg/schema"
	"go.opentelemetry.io/otel/trace"
)

// RefinerOptions collects what a binary needs to assemble an orchestrator.
type RefinerOptions struct {
	Config       config.RefinerConfig
	GeneratorURL string
	EmbeddingURL string
	Store        persistence.Persistence
	AuditTrail   guard.AuditTrail
	EventBus     eventbus.EventBus
	Tracer       trace.Tracer
	Logger       *slog.Logger
}

// NewOrchestrator wires the generator, guard, evaluation engine, schema validator and
// sinks of a refinement orchestrator.
func NewOrchestrator(opts RefinerOptions) (*refinement.Orchestrator, error) {
	if opts.GeneratorURL == "" {
		return nil, errors.New("generator url is required")
	}

	recursionGuard, err := guard.New(opts.Config.Policy,
		guard.WithAuditTrail(opts.AuditTrail),
		guard.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid refinement policy: %w", err)
	}

	validator, err := schema.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow schema: %w", err)
	}

	var embedder evaluation.Embedder
	if opts.EmbeddingURL != "" {
		embedder = evaluation.NewHTTPEmbedder(opts.EmbeddingURL)
	}

	sinks := refinement.MultiSink{}
	if opts.Store != nil {
		sinks = append(sinks, opts.Store)
	}

	if opts.EventBus != nil {
		sinks = append(sinks, eventbus.NewLineagePublisher(opts.EventBus))
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otelhelper.NoopTracer("refiner")
	}

	return refinement.New(
		generator.NewHTTPGenerator(opts.GeneratorURL, generator.WithLogger(opts.Logger)),
		recursionGuard,
		refinement.WithEngine(evaluation.NewEngine(opts.Config.Registry())),
		refinement.WithSimilarity(evaluation.NewSimilarity(embedder)),
		refinement.WithSchemaValidator(validator),
		refinement.WithSink(sinks),
		refinement.WithTracer(tracer),
		refinement.WithLogger(opts.Logger),
	)
}

// RunOptions returns the per-tree defaults of cfg.
func RunOptions(cfg config.RefinerConfig) refinement.RunOptions {
	return refinement.RunOptions{
		TerminationCondition: cfg.TerminationCondition,
		StepCost:             cfg.StepCost,
	}
}

// NewTracer installs the OTLP tracer when enabled and returns a no-op tracer otherwise.
// The shutdown function is never nil.
//
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, enabled bool, serviceName string) (trace.Tracer, func(context.Context) error, error) {
	if !enabled {
		return otelhelper.NoopTracer(serviceName), func(context.Context) error { return nil }, nil
	}

	return otelhelper.NewTracer(ctx, otelhelper.Config{ServiceName: serviceName})
}
