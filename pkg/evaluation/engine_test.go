package evaluation

import (
	"math"
	"sync"
	"testing"

	"github.com/dukex/refiner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onboardingWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:      "wf-onboarding",
		Version: "1.0.0",
		Metadata: map[string]any{
			models.MetadataPurpose: "Onboard new engineers quickly",
		},
		Phases: []*models.Phase{
			{
				ID:                "setup",
				Title:             "Setup",
				AutomatedBehavior: "Provision laptop accounts and repository access for the new engineer",
				Tasks: []*models.Task{
					{Description: "Create accounts", Inputs: []string{"hire record"}, Outputs: []string{"accounts"}},
				},
			},
			{
				ID:            "mentoring",
				Title:         "Mentoring",
				HumanBehavior: "Pair with a mentor",
				DependsOn:     []string{"setup"},
				Tasks: []*models.Task{
					{Description: "Schedule pairing", Outputs: []string{"calendar invite"}},
				},
			},
			{ID: "review", Title: "Review", DependsOn: []string{"mentoring"}},
		},
	}
}

func TestMetrics_OnboardingWorkflow(t *testing.T) {
	t.Parallel()

	w := onboardingWorkflow()

	tests := []struct {
		name     string
		metric   Metric
		expected float64
	}{
		{name: "clarity", metric: Clarity, expected: (1.0 + 0.4 + 0) / 3},
		{name: "coverage", metric: Coverage, expected: 2.0 / 3},
		{name: "coherence", metric: Coherence, expected: 1},
		{name: "specificity", metric: Specificity, expected: (68.0 + 18 + 15 + 16) / 4 / 500},
		{name: "completeness", metric: Completeness, expected: (2.0/3 + 0.5) / 2},
		{name: "intent_alignment", metric: IntentAlignment, expected: 0.25},
		{name: "usability", metric: Usability, expected: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.InDelta(t, tt.expected, tt.metric(w), 1e-12)
		})
	}
}

func TestMetrics_EmptyWorkflow(t *testing.T) {
	t.Parallel()

	empty := &models.Workflow{ID: "empty", Version: "1"}

	assert.Zero(t, Clarity(empty))
	assert.Zero(t, Coverage(empty))
	assert.Equal(t, 1.0, Coherence(empty))
	assert.Zero(t, Specificity(empty))
	assert.Zero(t, Completeness(empty))
	assert.Zero(t, IntentAlignment(empty))
	assert.Zero(t, Usability(empty))
	assert.Zero(t, IntentAlignment(nil))
}

func TestCoherence_PenalisesDuplicatedPhases(t *testing.T) {
	t.Parallel()

	distinct := &models.Workflow{Phases: []*models.Phase{
		{ID: "a", AutomatedBehavior: "collect requirements from stakeholders"},
		{ID: "b", AutomatedBehavior: "deploy release candidate to staging"},
	}}
	duplicated := &models.Workflow{Phases: []*models.Phase{
		{ID: "a", AutomatedBehavior: "collect requirements from stakeholders"},
		{ID: "b", AutomatedBehavior: "collect requirements from stakeholders"},
	}}

	assert.Equal(t, 1.0, Coherence(distinct))
	assert.Zero(t, Coherence(duplicated))
}

func TestClarity_CapsAtTenWords(t *testing.T) {
	t.Parallel()

	w := &models.Workflow{Phases: []*models.Phase{
		{ID: "long", AutomatedBehavior: "one two three four five six seven eight nine ten eleven twelve"},
	}}

	assert.Equal(t, 1.0, Clarity(w))
}

func TestEngine_OverallIsMeanOfRegisteredMetrics(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)
	result := engine.Evaluate(onboardingWorkflow())

	require.Len(t, result.Metrics, 7)

	sum := 0.0
	for _, name := range engine.Registry().Names() {
		value := result.Metrics[name]
		assert.GreaterOrEqual(t, value, 0.0)
		assert.LessOrEqual(t, value, 1.0)

		sum += value
	}

	assert.InDelta(t, sum/7, result.OverallScore, 1e-12)
	assert.GreaterOrEqual(t, result.OverallScore, 0.0)
	assert.LessOrEqual(t, result.OverallScore, 1.0)
}

func TestEngine_IsDeterministic(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)
	w := onboardingWorkflow()

	first := engine.Evaluate(w)
	second := engine.Evaluate(w)
	third := NewEngine(nil).Evaluate(onboardingWorkflow())

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
	assert.NotSame(t, first, second)
}

func TestEngine_TracksRegistryChanges(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.MustRegister("half", func(*models.Workflow) float64 { return 0.5 })

	engine := NewEngine(registry)
	assert.Equal(t, 0.5, engine.Evaluate(nil).OverallScore)

	registry.MustRegister("full", func(*models.Workflow) float64 { return 1 })
	assert.Equal(t, 0.75, engine.Evaluate(nil).OverallScore)

	registry.Unregister("half")
	assert.Equal(t, 1.0, engine.Evaluate(nil).OverallScore)
	assert.Equal(t, []string{"full"}, registry.Names())
}

func TestEngine_ClampsMetricValues(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.MustRegister("high", func(*models.Workflow) float64 { return 3 })
	registry.MustRegister("low", func(*models.Workflow) float64 { return -2 })
	registry.MustRegister("nan", func(*models.Workflow) float64 { return math.NaN() })

	result := NewEngine(registry).Evaluate(nil)

	assert.Equal(t, map[string]float64{"high": 1, "low": 0, "nan": 0}, result.Metrics)
	assert.InDelta(t, 1.0/3, result.OverallScore, 1e-12)
}

func TestEngine_EmptyRegistry(t *testing.T) {
	t.Parallel()

	result := NewEngine(NewRegistry()).Evaluate(onboardingWorkflow())

	assert.Empty(t, result.Metrics)
	assert.Zero(t, result.OverallScore)
}

func TestRegistry_RejectsDuplicatesAndInvalid(t *testing.T) {
	t.Parallel()

	registry := NewDefaultRegistry()

	assert.ErrorIs(t, registry.Register(models.MetricClarity, Clarity), ErrMetricExists)
	assert.ErrorIs(t, registry.Register("", Clarity), ErrInvalidMetric)
	assert.ErrorIs(t, registry.Register("nil", nil), ErrInvalidMetric)
	assert.Panics(t, func() { registry.MustRegister(models.MetricUsability, Usability) })
}

func TestEngine_ConcurrentEvaluationAndRegistration(t *testing.T) {
	t.Parallel()

	registry := NewDefaultRegistry()
	engine := NewEngine(registry)
	w := onboardingWorkflow()

	var wg sync.WaitGroup

	for i := range 8 {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			if i%2 == 0 {
				_ = registry.Register("extra-"+string(rune('a'+i)), Coverage)

				return
			}

			result := engine.Evaluate(w)
			assert.LessOrEqual(t, result.OverallScore, 1.0)
		}(i)
	}

	wg.Wait()
}
