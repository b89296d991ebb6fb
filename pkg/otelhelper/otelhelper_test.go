package otelhelper

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/refiner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanAndSetError(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := StartSpan(context.Background(), tracer, "refinement.cycle",
		attribute.String(RootIDKey, "root-1"),
		attribute.Int(CycleKey, 1),
	)
	SetError(span, errors.New("generator failed"), attribute.String(StateKey, "proposing"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "refinement.cycle", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "generator failed", spans[0].Status().Description)
	assert.Contains(t, spans[0].Attributes(), attribute.String(RootIDKey, "root-1"))

	var names []string
	for _, event := range spans[0].Events() {
		names = append(names, event.Name)
	}

	assert.Contains(t, names, "error_occurred")
}

func TestSpanAttributeHelpers(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := StartSpan(context.Background(), provider.Tracer("test"), "refinement.cycle")
	span.SetAttributes(SnapshotAttributes(models.RecursionSnapshot{Depth: 2, CostSpent: 2, RemainingBudget: 8})...)
	span.SetAttributes(DecisionAttributes(models.SignalAccept, 0.1, 0.2)...)
	SetError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	attrs := spans[0].Attributes()
	assert.Contains(t, attrs, attribute.Int(DepthKey, 2))
	assert.Contains(t, attrs, attribute.Float64(RemainingBudgetKey, 8))
	assert.Contains(t, attrs, attribute.String(SignalKey, "accept"))
	assert.Contains(t, attrs, attribute.Float64(SemanticDeltaKey, 0.2))
}

func TestSampler(t *testing.T) {
	t.Parallel()

	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}
