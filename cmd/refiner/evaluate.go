package main

import (
	"context"

	"github.com/dukex/refiner/pkg/evaluation"
	"github.com/dukex/refiner/pkg/graph"
	"github.com/dukex/refiner/pkg/log"
	"github.com/dukex/refiner/pkg/models"
	"github.com/urfave/cli/v3"
)

// EvaluationReport is the evaluation of one workflow file.
type EvaluationReport struct {
	Path       string                   `json:"path"`
	ID         string                   `json:"id"`
	Evaluation *models.EvaluationResult `json:"evaluation"`
}

func NewEvaluateCommand() *cli.Command {
	return &cli.Command{
		Name:      "evaluate",
		Aliases:   []string{"e"},
		Usage:     "Score workflow files with the configured metrics",
		ArgsUsage: "<file or directory>...",
		Flags:     append(configFlags(), logLevelFlag()),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("refiner").With("action", "evaluate")

			cfg, err := loadConfig(command)
			if err != nil {
				return err
			}

			paths, err := workflowPaths(command.Args().Slice())
			if err != nil {
				return err
			}

			workflows, err := loadWorkflows(paths)
			if err != nil {
				return err
			}

			engine := evaluation.NewEngine(cfg.Registry())
			reports := evaluateWorkflows(engine, paths, workflows)

			for _, report := range reports {
				logger.DebugContext(ctx, "Evaluated workflow", "path", report.Path, "score", report.Evaluation.OverallScore)
			}

			return writeJSON(command.Root().Writer, reports)
		},
	}
}

// evaluateWorkflows scores each workflow against its repaired graph. Workflows whose
// graph cannot be repaired are scored without one.
func evaluateWorkflows(engine *evaluation.Engine, paths []string, workflows []*models.Workflow) []EvaluationReport {
	reports := make([]EvaluationReport, 0, len(workflows))

	for i, workflow := range workflows {
		scored := workflow.Clone()
		if result := graph.Validate(scored.Phases); result.Err == nil {
			scored.Graph = result.Graph
		}

		reports = append(reports, EvaluationReport{
			Path:       paths[i],
			ID:         workflow.ID,
			Evaluation: engine.Evaluate(scored),
		})
	}

	return reports
}
