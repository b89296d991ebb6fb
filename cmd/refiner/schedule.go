package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dukex/refiner/pkg/log"
	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/refinement"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"
)

const defaultSchedule = "@hourly"

// RefineFunc refines a batch of workflows.
type RefineFunc func(ctx context.Context, workflows []*models.Workflow) ([]*refinement.Outcome, error)

// WorkflowsFunc lists the workflows known to the store.
type WorkflowsFunc func(ctx context.Context) ([]*models.Workflow, error)

// Scheduler periodically re-refines the leaves of the stored refinement trees. Every
// leaf continues its tree's root, so a tree stops growing once the guard's limits for
// that root are spent.
type Scheduler struct {
	expr      string
	workflows WorkflowsFunc
	refine    RefineFunc
	logger    *slog.Logger
	cron      *cron.Cron
	entryID   cron.EntryID
	mutex     sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewScheduler(expr string, workflows WorkflowsFunc, refine RefineFunc, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(expr); err != nil {
		return nil, fmt.Errorf("invalid cron expression '%s': %w", expr, err)
	}

	return &Scheduler{
		expr:      expr,
		workflows: workflows,
		refine:    refine,
		logger:    logger.With("module", "scheduler"),
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	entryID, err := s.cron.AddFunc(s.expr, func() { s.Tick(s.ctx) })
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.mutex.Lock()
	s.entryID = entryID
	s.mutex.Unlock()

	s.cron.Start()
	s.logger.Info("Scheduler started", "cron", s.expr, "entry_id", entryID)

	return nil
}

// Tick refines every leaf workflow once and returns how many were refined.
func (s *Scheduler) Tick(ctx context.Context) int {
	workflows, err := s.workflows(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list workflows", "error", err)

		return 0
	}

	leaves := Leaves(workflows)
	if len(leaves) == 0 {
		s.logger.DebugContext(ctx, "No workflows to refine")

		return 0
	}

	outcomes, err := s.refine(ctx, leaves)
	if err != nil {
		s.logger.ErrorContext(ctx, "Scheduled refinement failed", "error", err)
	}

	accepted := 0

	for _, outcome := range outcomes {
		if outcome != nil {
			accepted += outcome.Accepted
		}
	}

	s.logger.InfoContext(ctx, "Scheduled refinement finished", "workflows", len(leaves), "accepted", accepted)

	return len(leaves)
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("Stopped cron scheduler")
	}
}

// Leaves returns the workflow each stored refinement tree would continue from: per
// root, the most recently updated workflow no other workflow was derived from. Ties
// keep the later workflow in input order. Leaves are returned in the order their
// roots first appear.
func Leaves(workflows []*models.Workflow) []*models.Workflow {
	parents := make(map[string]bool, len(workflows))
	for _, workflow := range workflows {
		if workflow.ParentID != "" {
			parents[workflow.ParentID] = true
		}
	}

	roots := make([]string, 0, len(workflows))
	latest := make(map[string]*models.Workflow, len(workflows))

	for _, workflow := range workflows {
		if parents[workflow.ID] {
			continue
		}

		root := workflow.Root()

		current, ok := latest[root]
		if !ok {
			roots = append(roots, root)
		}

		if !ok || !workflow.UpdatedAt.Before(current.UpdatedAt) {
			latest[root] = workflow
		}
	}

	leaves := make([]*models.Workflow, 0, len(roots))
	for _, root := range roots {
		leaves = append(leaves, latest[root])
	}

	return leaves
}

func NewScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:    "schedule",
		Aliases: []string{"s"},
		Usage:   "Periodically refine the latest revision of every stored workflow",
		Flags: append(refinerFlags(),
			&cli.StringFlag{
				Name:    "cron",
				Usage:   "Cron expression of the refinement schedule",
				Value:   defaultSchedule,
				Sources: cli.EnvVars("REFINER_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:  "now",
				Usage: "Run one refinement pass before waiting for the schedule",
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("refiner").With("action", "schedule")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r, err := newRefiner(ctx, command, logger)
			if err != nil {
				return err
			}
			defer r.Close(context.Background(), logger)

			scheduler, err := NewScheduler(command.String("cron"), r.store.Workflows, r.RefineAll, logger)
			if err != nil {
				return err
			}

			if command.Bool("now") {
				scheduler.Tick(ctx)
			}

			if err := scheduler.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			scheduler.Stop()

			return nil
		},
	}
}
