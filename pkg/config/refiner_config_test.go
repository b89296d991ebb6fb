package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/refiner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRefinerConfig(t *testing.T) {
	t.Parallel()

	config, err := ParseRefinerConfig([]byte(`
policy:
  max_depth: 3
  min_improvement: 0.1
termination_condition: stop after three refinements
step_cost: 2.5
disabled_metrics:
  - usability
`))
	require.NoError(t, err)

	want := models.DefaultPolicy()
	want.MaxDepth = 3
	want.MinImprovement = 0.1

	assert.Equal(t, want, config.Policy)
	assert.Equal(t, "stop after three refinements", config.TerminationCondition)
	assert.InDelta(t, 2.5, config.StepCost, 1e-9)
	assert.NotContains(t, config.Registry().Names(), models.MetricUsability)
	assert.Len(t, config.Registry().Names(), 6)
}

func TestParseRefinerConfig_Defaults(t *testing.T) {
	t.Parallel()

	config, err := ParseRefinerConfig([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, Default(), config)
}

func TestParseRefinerConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "malformed", yaml: "policy: [", wantErr: "failed to parse YAML config"},
		{name: "zero depth", yaml: "policy:\n  max_depth: 0", wantErr: "max_depth"},
		{name: "ratio above one", yaml: "policy:\n  checkpoint_ratio: 1.5", wantErr: "checkpoint_ratio"},
		{name: "negative cost", yaml: "step_cost: -1", wantErr: "step_cost"},
		{name: "cost above budget", yaml: "step_cost: 11", wantErr: "exceeds cost_budget"},
		{name: "unknown metric", yaml: "disabled_metrics: [brevity]", wantErr: "unknown metric 'brevity'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseRefinerConfig([]byte(tt.yaml))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRefinerConfigOrDefault(t *testing.T) {
	t.Parallel()

	config, err := LoadRefinerConfigOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), config)

	path := filepath.Join(t.TempDir(), "refiner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy:\n  cost_budget: 20\n"), 0o600))

	config, err = LoadRefinerConfigOrDefault(path)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, config.Policy.CostBudget, 1e-9)

	_, err = LoadRefinerConfigOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
