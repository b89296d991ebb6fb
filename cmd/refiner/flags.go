package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dukex/refiner/pkg/cmd"
	"github.com/dukex/refiner/pkg/config"
	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/persistence"
	"github.com/dukex/refiner/pkg/refinement"
	"github.com/dukex/refiner/pkg/workflowfile"
	"github.com/urfave/cli/v3"
)

var ErrNoWorkflows = errors.New("no workflow files given")

func logLevelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		Value:   "info",
		Sources: cli.EnvVars("LOG_LEVEL"),
	}
}

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the refiner YAML configuration",
			Sources: cli.EnvVars("REFINER_CONFIG"),
		},
		&cli.IntFlag{
			Name:    "max-depth",
			Usage:   "Maximum depth of a refinement tree (overrides the configuration)",
			Sources: cli.EnvVars("MAX_DEPTH"),
		},
		&cli.IntFlag{
			Name:    "max-children",
			Usage:   "Maximum candidates generated per tree (overrides the configuration)",
			Sources: cli.EnvVars("MAX_CHILDREN"),
		},
		&cli.FloatFlag{
			Name:    "cost-budget",
			Usage:   "Cost budget of a refinement tree (overrides the configuration)",
			Sources: cli.EnvVars("COST_BUDGET"),
		},
	}
}

func refinerFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "generator-url",
			Usage:    "URL of the candidate generator service",
			Required: true,
			Sources:  cli.EnvVars("GENERATOR_URL"),
		},
		&cli.StringFlag{
			Name:    "embedding-url",
			Usage:   "URL of the embedding service used for semantic deltas",
			Sources: cli.EnvVars("EMBEDDING_URL"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL for workflows and lineage",
			Value:   "./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "audit-url",
			Usage:   "Recursion audit trail URL (memory, a directory, redis:// or postgres://)",
			Value:   "memory",
			Sources: cli.EnvVars("AUDIT_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (none, gochannel, kafka)",
			Value:   "none",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Usage:   "Number of workflows refined at once",
			Value:   refinement.DefaultConcurrency,
			Sources: cli.EnvVars("REFINER_CONCURRENCY"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export cycle traces over OTLP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
	}

	return append(append(flags, configFlags()...), logLevelFlag())
}

// loadConfig reads the configuration file and applies the policy flags on top.
func loadConfig(command *cli.Command) (config.RefinerConfig, error) {
	cfg, err := config.LoadRefinerConfigOrDefault(command.String("config"))
	if err != nil {
		return config.RefinerConfig{}, err
	}

	if command.IsSet("max-depth") {
		cfg.Policy.MaxDepth = command.Int("max-depth")
	}

	if command.IsSet("max-children") {
		cfg.Policy.MaxChildren = command.Int("max-children")
	}

	if command.IsSet("cost-budget") {
		cfg.Policy.CostBudget = command.Float("cost-budget")
	}

	if err := config.ValidateRefinerConfig(cfg); err != nil {
		return config.RefinerConfig{}, err
	}

	return cfg, nil
}

// refiner bundles an orchestrator with the resources it was built from.
type refiner struct {
	config       config.RefinerConfig
	orchestrator *refinement.Orchestrator
	runner       *refinement.Runner
	store        persistence.Persistence
	closers      []func(context.Context) error
}

func newRefiner(ctx context.Context, command *cli.Command, logger *slog.Logger) (*refiner, error) {
	cfg, err := loadConfig(command)
	if err != nil {
		return nil, err
	}

	r := &refiner{config: cfg}

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, err
	}

	r.store = store
	r.closers = append(r.closers, store.Close)

	trail, closeTrail, err := cmd.NewAuditTrail(ctx, logger, command.String("audit-url"))
	if err != nil {
		r.Close(ctx, logger)

		return nil, err
	}

	r.closers = append(r.closers, func(context.Context) error { return closeTrail() })

	bus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
	if err != nil {
		r.Close(ctx, logger)

		return nil, err
	}

	if bus != nil {
		r.closers = append(r.closers, func(context.Context) error { return bus.Close() })
	}

	tracer, shutdown, err := cmd.NewTracer(ctx, command.Bool("tracing"), "refiner")
	if err != nil {
		r.Close(ctx, logger)

		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	r.closers = append(r.closers, shutdown)

	r.orchestrator, err = cmd.NewOrchestrator(cmd.RefinerOptions{
		Config:       cfg,
		GeneratorURL: command.String("generator-url"),
		EmbeddingURL: command.String("embedding-url"),
		Store:        store,
		AuditTrail:   trail,
		EventBus:     bus,
		Tracer:       tracer,
		Logger:       logger,
	})
	if err != nil {
		r.Close(ctx, logger)

		return nil, err
	}

	r.runner = refinement.NewRunner(r.orchestrator, command.Int("concurrency"))

	return r, nil
}

func (r *refiner) RefineAll(ctx context.Context, workflows []*models.Workflow) ([]*refinement.Outcome, error) {
	return r.runner.RefineAll(ctx, workflows, cmd.RunOptions(r.config))
}

// Close releases resources in reverse order of acquisition.
func (r *refiner) Close(ctx context.Context, logger *slog.Logger) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close resource", "error", err)
		}
	}

	r.closers = nil
}

// workflowPaths expands the arguments into workflow files. Directories contribute the
// workflow documents directly inside them, sorted by name.
func workflowPaths(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, ErrNoWorkflows
	}

	var paths []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}

		if !info.IsDir() {
			paths = append(paths, arg)

			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read workflow directory %s: %w", arg, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() && workflowfile.IsWorkflowFile(entry.Name()) {
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}

	if len(paths) == 0 {
		return nil, ErrNoWorkflows
	}

	return paths, nil
}

func loadWorkflows(paths []string) ([]*models.Workflow, error) {
	workflows := make([]*models.Workflow, 0, len(paths))

	for _, path := range paths {
		workflow, err := workflowfile.Load(path)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}
