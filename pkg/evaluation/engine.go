// Package evaluation scores workflow quality deterministically and measures the
// semantic distance between workflow revisions.
package evaluation

import (
	"github.com/dukex/refiner/pkg/models"
)

// Engine evaluates workflows against the metrics of a registry.
type Engine struct {
	registry *Registry
}

// NewEngine creates an engine over registry. A nil registry uses the built-in metrics.
func NewEngine(registry *Registry) *Engine {
	if registry == nil {
		registry = NewDefaultRegistry()
	}

	return &Engine{registry: registry}
}

// Registry returns the engine's metric registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Evaluate computes a fresh result. OverallScore is the mean over every metric
// registered at call time; an empty registry scores 0.
func (e *Engine) Evaluate(w *models.Workflow) *models.EvaluationResult {
	metrics := e.registry.snapshot()
	result := &models.EvaluationResult{Metrics: make(map[string]float64, len(metrics))}

	if len(metrics) == 0 {
		return result
	}

	sum := 0.0

	for _, m := range metrics {
		value := Clamp(m.metric(w))
		result.Metrics[m.name] = value
		sum += value
	}

	result.OverallScore = Clamp(sum / float64(len(metrics)))

	return result
}
