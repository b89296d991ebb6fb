package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dukex/refiner/pkg/graph"
	"github.com/dukex/refiner/pkg/log"
	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/schema"
	"github.com/dukex/refiner/pkg/workflowfile"
	"github.com/urfave/cli/v3"
)

var ErrInvalidWorkflows = errors.New("invalid workflows found")

// ValidationReport is the validation result of one workflow file.
type ValidationReport struct {
	Path     string   `json:"path"`
	ID       string   `json:"id,omitempty"`
	Valid    bool     `json:"valid"`
	Repairs  []string `json:"repairs,omitempty"`
	Problems []string `json:"problems,omitempty"`
}

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate workflow files and report dependency graph repairs",
		ArgsUsage: "<file or directory>...",
		Flags:     []cli.Flag{logLevelFlag()},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("refiner").With("action", "validate")

			paths, err := workflowPaths(command.Args().Slice())
			if err != nil {
				return err
			}

			validator, err := schema.New()
			if err != nil {
				return err
			}

			reports := validateFiles(paths, validator)

			invalid := 0

			for _, report := range reports {
				if !report.Valid {
					invalid++

					logger.WarnContext(ctx, "Invalid workflow", "path", report.Path, "problems", report.Problems)
				}
			}

			if err := writeJSON(command.Root().Writer, reports); err != nil {
				return err
			}

			if invalid > 0 {
				return fmt.Errorf("%w: %d of %d", ErrInvalidWorkflows, invalid, len(reports))
			}

			logger.InfoContext(ctx, "All workflows are valid", "count", len(reports))

			return nil
		},
	}
}

func validateFiles(paths []string, validator *schema.Validator) []ValidationReport {
	reports := make([]ValidationReport, 0, len(paths))

	for _, path := range paths {
		workflow, err := workflowfile.Load(path)
		if err != nil {
			reports = append(reports, ValidationReport{Path: path, Problems: []string{err.Error()}})

			continue
		}

		reports = append(reports, validateWorkflow(path, workflow, validator))
	}

	return reports
}

func validateWorkflow(path string, workflow *models.Workflow, validator *schema.Validator) ValidationReport {
	report := ValidationReport{Path: path, ID: workflow.ID}

	result := graph.Validate(workflow.Phases)
	report.Repairs = result.Notes()

	if result.Err != nil {
		report.Problems = append(report.Problems, result.Err.Error())

		return report
	}

	checked := workflow.Clone()
	checked.Graph = result.Graph

	ok, problems := validator.Validate(checked)
	report.Valid = ok
	report.Problems = append(report.Problems, problems...)

	return report
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}
