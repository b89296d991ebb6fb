// Package otelhelper provides distributed tracing for refinement cycles.
package otelhelper

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	RootIDKey          = "refiner.root.id"
	WorkflowIDKey      = "refiner.workflow.id"
	ParentIDKey        = "refiner.workflow.parent_id"
	CycleKey           = "refiner.cycle"
	StateKey           = "refiner.state"
	DecisionKey        = "refiner.decision"
	SignalKey          = "refiner.signal"
	ScoreDeltaKey      = "refiner.score_delta"
	SemanticDeltaKey   = "refiner.semantic_delta"
	DepthKey           = "refiner.guard.depth"
	CostSpentKey       = "refiner.guard.cost_spent"
	RemainingBudgetKey = "refiner.guard.remaining_budget"
	SimilarityKey      = "refiner.similarity"
)

// Config selects where traces go. An empty Endpoint defers to the standard
// OTEL_EXPORTER_OTLP_* environment variables.
type Config struct {
	ServiceName string
	Endpoint    string
	// SampleRatio is the fraction of new root traces kept; 0 keeps every trace.
	SampleRatio float64
}

// NewTracer installs a batching OTLP/HTTP tracer provider as the global provider and
// returns a tracer with its shutdown function.
//
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, config Config) (trace.Tracer, func(context.Context) error, error) {
	provider, err := newTracerProvider(ctx, config)
	if err != nil {
		return nil, nil, err
	}

	return provider.Tracer(config.ServiceName), provider.Shutdown, nil
}

// nolint:ireturn,spancheck // Returning interface is intentional for OpenTelemetry tracing
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// NoopTracer returns the globally registered tracer, a no-op until NewTracer runs.
//
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NoopTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}

	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func newTracerProvider(ctx context.Context, config Config) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	var opts []otlptracehttp.Option
	if config.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(config.Endpoint))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sampler(config.SampleRatio)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp, nil
}
