package models

import "maps"

// Built-in metric names.
const (
	MetricClarity         = "clarity"
	MetricCoverage        = "coverage"
	MetricCoherence       = "coherence"
	MetricSpecificity     = "specificity"
	MetricCompleteness    = "completeness"
	MetricIntentAlignment = "intent_alignment"
	MetricUsability       = "usability"
)

// EvaluationResult holds per-metric scores in [0, 1] and their mean.
type EvaluationResult struct {
	Metrics      map[string]float64 `json:"metrics"       yaml:"metrics"`
	OverallScore float64            `json:"overall_score" yaml:"overall_score"`
}

// Clone returns a deep copy of the result.
func (r *EvaluationResult) Clone() *EvaluationResult {
	if r == nil {
		return nil
	}

	return &EvaluationResult{
		Metrics:      maps.Clone(r.Metrics),
		OverallScore: r.OverallScore,
	}
}
