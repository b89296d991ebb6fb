// Package config loads refinement settings from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/dukex/refiner/pkg/evaluation"
	"github.com/dukex/refiner/pkg/models"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTerminationCondition = "stop when the guard denies a step or a candidate is not accepted"
	DefaultStepCost             = 1.0
)

// RefinerConfigFile represents the structure of the refiner.yaml file. Absent fields
// keep their defaults.
type RefinerConfigFile struct {
	Policy               PolicyConfigFile `yaml:"policy"`
	TerminationCondition string           `yaml:"termination_condition"`
	StepCost             *float64         `yaml:"step_cost"`
	DisabledMetrics      []string         `yaml:"disabled_metrics"`
}

// PolicyConfigFile represents the policy section of the YAML file.
type PolicyConfigFile struct {
	MaxDepth         *int     `yaml:"max_depth"`
	MaxChildren      *int     `yaml:"max_children"`
	CostBudget       *float64 `yaml:"cost_budget"`
	CheckpointRatio  *float64 `yaml:"checkpoint_ratio"`
	MinImprovement   *float64 `yaml:"min_improvement"`
	MinSemanticDelta *float64 `yaml:"min_semantic_delta"`
	Tolerance        *float64 `yaml:"tolerance"`
}

// RefinerConfig is the resolved refinement configuration.
type RefinerConfig struct {
	Policy               models.RefinementPolicy
	TerminationCondition string
	StepCost             float64
	DisabledMetrics      []string
}

// Default returns the configuration used when no file is given.
func Default() RefinerConfig {
	return RefinerConfig{
		Policy:               models.DefaultPolicy(),
		TerminationCondition: DefaultTerminationCondition,
		StepCost:             DefaultStepCost,
	}
}

// LoadRefinerConfig loads refinement configuration from a YAML file.
func LoadRefinerConfig(filepath string) (RefinerConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return RefinerConfig{}, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	return ParseRefinerConfig(data)
}

// ParseRefinerConfig parses a YAML document on top of the defaults.
func ParseRefinerConfig(data []byte) (RefinerConfig, error) {
	var configFile RefinerConfigFile
	if err := yaml.Unmarshal(data, &configFile); err != nil {
		return RefinerConfig{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config := Default()
	configFile.Policy.apply(&config.Policy)

	if configFile.TerminationCondition != "" {
		config.TerminationCondition = configFile.TerminationCondition
	}

	if configFile.StepCost != nil {
		config.StepCost = *configFile.StepCost
	}

	config.DisabledMetrics = configFile.DisabledMetrics

	if err := ValidateRefinerConfig(config); err != nil {
		return RefinerConfig{}, err
	}

	return config, nil
}

// LoadRefinerConfigOrDefault loads the file when path is set, falling back to the
// defaults when it is empty.
func LoadRefinerConfigOrDefault(filepath string) (RefinerConfig, error) {
	if filepath == "" {
		return Default(), nil
	}

	return LoadRefinerConfig(filepath)
}

// ValidateRefinerConfig validates the refinement configuration.
func ValidateRefinerConfig(config RefinerConfig) error {
	if err := config.Policy.Validate(); err != nil {
		return err
	}

	if config.StepCost < 0 {
		return errors.New("step_cost must not be negative")
	}

	if config.StepCost > config.Policy.CostBudget {
		return fmt.Errorf("step_cost %.2f exceeds cost_budget %.2f", config.StepCost, config.Policy.CostBudget)
	}

	known := evaluation.NewDefaultRegistry().Names()

	for i, name := range config.DisabledMetrics {
		if !contains(known, name) {
			return fmt.Errorf("disabled_metrics[%d]: unknown metric '%s'", i, name)
		}
	}

	return nil
}

// Registry returns the default metric registry without the disabled metrics.
func (c RefinerConfig) Registry() *evaluation.Registry {
	registry := evaluation.NewDefaultRegistry()
	for _, name := range c.DisabledMetrics {
		registry.Unregister(name)
	}

	return registry
}

func (p PolicyConfigFile) apply(policy *models.RefinementPolicy) {
	if p.MaxDepth != nil {
		policy.MaxDepth = *p.MaxDepth
	}

	if p.MaxChildren != nil {
		policy.MaxChildren = *p.MaxChildren
	}

	if p.CostBudget != nil {
		policy.CostBudget = *p.CostBudget
	}

	if p.CheckpointRatio != nil {
		policy.CheckpointRatio = *p.CheckpointRatio
	}

	if p.MinImprovement != nil {
		policy.MinImprovement = *p.MinImprovement
	}

	if p.MinSemanticDelta != nil {
		policy.MinSemanticDelta = *p.MinSemanticDelta
	}

	if p.Tolerance != nil {
		policy.Tolerance = *p.Tolerance
	}
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}

	return false
}
