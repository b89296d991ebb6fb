package otelhelper

import (
	"github.com/dukex/refiner/pkg/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks span as failed. A nil err leaves the span untouched.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}

	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(attrs...))
}

// SnapshotAttributes describes the guard ledger after an authorized step.
func SnapshotAttributes(snapshot models.RecursionSnapshot) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(DepthKey, snapshot.Depth),
		attribute.Float64(CostSpentKey, snapshot.CostSpent),
		attribute.Float64(RemainingBudgetKey, snapshot.RemainingBudget),
	}
}

// DecisionAttributes describes the inputs of an acceptance decision.
func DecisionAttributes(signal models.DecisionSignal, scoreDelta, semanticDelta float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SignalKey, string(signal)),
		attribute.Float64(ScoreDeltaKey, scoreDelta),
		attribute.Float64(SemanticDeltaKey, semanticDelta),
	}
}
