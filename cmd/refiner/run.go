package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dukex/refiner/pkg/log"
	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/refinement"
	"github.com/dukex/refiner/pkg/workflowfile"
	"github.com/urfave/cli/v3"
)

var ErrNothingToRefine = errors.New("no workflows to refine")

// RunSummary is the result of refining one workflow.
type RunSummary struct {
	Path     string           `json:"path,omitempty"`
	RootID   string           `json:"root_id"`
	State    refinement.State `json:"state"`
	Cycles   int              `json:"cycles"`
	Accepted int              `json:"accepted"`
	Score    float64          `json:"score"`
	Reason   string           `json:"reason,omitempty"`
	Output   string           `json:"output,omitempty"`
}

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Refine workflow files, or the leaf of every stored tree with --stored",
		ArgsUsage: "[file or directory]...",
		Flags: append(refinerFlags(),
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Directory the refined workflow files are written to",
			},
			&cli.BoolFlag{
				Name:  "stored",
				Usage: "Refine the latest workflow of each tree in the database instead of files",
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("refiner").With("action", "run")

			r, err := newRefiner(ctx, command, logger)
			if err != nil {
				return err
			}
			defer r.Close(ctx, logger)

			var (
				paths     []string
				workflows []*models.Workflow
			)

			if command.Bool("stored") {
				workflows, err = r.store.Workflows(ctx)
				workflows = Leaves(workflows)
			} else {
				paths, err = workflowPaths(command.Args().Slice())
				if err == nil {
					workflows, err = loadWorkflows(paths)
				}
			}

			if err != nil {
				return err
			}

			if len(workflows) == 0 {
				return ErrNothingToRefine
			}

			logger.InfoContext(ctx, "Refining workflows", "count", len(workflows))

			outcomes, err := r.RefineAll(ctx, workflows)
			if err != nil {
				return err
			}

			summaries, err := writeOutcomes(logger, command.String("out"), paths, outcomes)
			if err != nil {
				return err
			}

			return writeJSON(command.Root().Writer, summaries)
		},
	}
}

// writeOutcomes summarizes each outcome and, when out is set, writes its final
// workflow under out using the source file name or the workflow id.
func writeOutcomes(logger *slog.Logger, out string, paths []string, outcomes []*refinement.Outcome) ([]RunSummary, error) {
	if out != "" {
		if err := os.MkdirAll(out, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", out, err)
		}
	}

	summaries := make([]RunSummary, 0, len(outcomes))

	for i, outcome := range outcomes {
		summary := summarize(outcome)
		if i < len(paths) {
			summary.Path = paths[i]
		}

		if out != "" && outcome.Workflow != nil {
			name := outcome.Workflow.ID + ".yaml"
			if summary.Path != "" {
				name = filepath.Base(summary.Path)
			}

			summary.Output = filepath.Join(out, name)
			if err := workflowfile.Save(summary.Output, outcome.Workflow); err != nil {
				return nil, err
			}
		}

		logger.Info("Refined workflow",
			"root_id", summary.RootID,
			"state", summary.State,
			"accepted", summary.Accepted,
			"score", summary.Score,
		)

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func summarize(outcome *refinement.Outcome) RunSummary {
	summary := RunSummary{
		RootID:   outcome.RootID,
		State:    outcome.State,
		Cycles:   len(outcome.Cycles),
		Accepted: outcome.Accepted,
		Reason:   outcome.Reason,
	}

	if outcome.Evaluation != nil {
		summary.Score = outcome.Evaluation.OverallScore
	}

	return summary
}
