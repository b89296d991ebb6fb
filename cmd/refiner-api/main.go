package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/refiner/pkg/cmd"
	"github.com/dukex/refiner/pkg/config"
	"github.com/dukex/refiner/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "refiner-api",
		Usage:                 "Store, inspect and refine workflows over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
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
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the refiner YAML configuration",
				Sources: cli.EnvVars("REFINER_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export cycle traces over OTLP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Refiner API")

			cfg, err := config.LoadRefinerConfigOrDefault(command.String("config"))
			if err != nil {
				return err
			}

			if err := config.ValidateRefinerConfig(cfg); err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			trail, closeTrail, err := cmd.NewAuditTrail(ctx, logger, command.String("audit-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := closeTrail(); err != nil {
					logger.ErrorContext(ctx, "Failed to close audit trail", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
			if err != nil {
				return err
			}

			if eventBus != nil {
				defer func() {
					if err := eventBus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()

				if err := cmd.SubscribeProjection(ctx, eventBus, persistence, logger); err != nil {
					return err
				}

				logger.InfoContext(ctx, "Storing workflows and lineage published on the event bus")
			}

			tracer, shutdown, err := cmd.NewTracer(ctx, command.Bool("tracing"), "refiner-api")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			orchestrator, err := cmd.NewOrchestrator(cmd.RefinerOptions{
				Config:       cfg,
				GeneratorURL: command.String("generator-url"),
				EmbeddingURL: command.String("embedding-url"),
				Store:        persistence,
				AuditTrail:   trail,
				EventBus:     eventBus,
				Tracer:       tracer,
				Logger:       logger,
			})
			if err != nil {
				return err
			}

			api := NewAPI(logger, persistence, orchestrator, cmd.RunOptions(cfg))

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
