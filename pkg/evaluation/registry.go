package evaluation

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dukex/refiner/pkg/models"
)

var (
	ErrMetricExists  = errors.New("metric already registered")
	ErrInvalidMetric = errors.New("invalid metric")
)

// Registry holds the named metrics an engine evaluates.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// NewDefaultRegistry returns a registry holding the built-in metrics.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(models.MetricClarity, Clarity)
	r.MustRegister(models.MetricCoverage, Coverage)
	r.MustRegister(models.MetricCoherence, Coherence)
	r.MustRegister(models.MetricSpecificity, Specificity)
	r.MustRegister(models.MetricCompleteness, Completeness)
	r.MustRegister(models.MetricIntentAlignment, IntentAlignment)
	r.MustRegister(models.MetricUsability, Usability)

	return r
}

// Register adds a metric under name.
func (r *Registry) Register(name string, metric Metric) error {
	if name == "" || metric == nil {
		return fmt.Errorf("%w: name and function are required", ErrInvalidMetric)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.metrics[name]; exists {
		return fmt.Errorf("%w: %s", ErrMetricExists, name)
	}

	r.metrics[name] = metric

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, metric Metric) {
	if err := r.Register(name, metric); err != nil {
		panic(err)
	}
}

// Unregister removes a metric. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.metrics, name)
}

// Names returns the registered metric names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames()
}

type namedMetric struct {
	name   string
	metric Metric
}

// snapshot copies the current registry contents, sorted by name.
func (r *Registry) snapshot() []namedMetric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.sortedNames()
	out := make([]namedMetric, 0, len(names))

	for _, name := range names {
		out = append(out, namedMetric{name: name, metric: r.metrics[name]})
	}

	return out
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
