package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/cascade/pkg/cmd"
	"github.com/dukex/cascade/pkg/log"
	"github.com/dukex/cascade/pkg/otelhelper"
	"github.com/dukex/cascade/pkg/protocol"
	"github.com/dukex/cascade/pkg/scheduler"
)

func main() {
	command := &cli.Command{
		Name:                  "cascade-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker that drains the execution queue and runs workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or a file root)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "queue-url",
				Usage:   "Optional dedicated queue backend (redis://)",
				Sources: cli.EnvVars("QUEUE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "queue",
				Usage:   "Name of the queue to drain",
				Value:   "",
				Sources: cli.EnvVars("QUEUE_NAME"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Maximum number of executions processed in parallel",
				Value:   scheduler.DefaultConcurrency,
				Sources: cli.EnvVars("WORKER_CONCURRENCY"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often to poll the queue when idle",
				Value:   scheduler.DefaultPollInterval,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "storage-root",
				Usage:   "Directory storage actions read and write under",
				Value:   "./data/storage",
				Sources: cli.EnvVars("STORAGE_ROOT"),
			},
			&cli.StringFlag{
				Name:    "agent-endpoint",
				Usage:   "HTTP endpoint of the agent runtime",
				Sources: cli.EnvVars("AGENT_ENDPOINT"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("cascade-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Cascade Worker")

			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
				if _, err := otelhelper.NewTracer(ctx, "cascade-worker"); err != nil {
					logger.WarnContext(ctx, "Failed to initialize tracer", "error", err)
				}
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), "cascade-worker", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persist := cmd.WithQueue(ctx, logger,
				cmd.NewPersistence(ctx, logger, command.String("database-url")),
				command.String("queue-url"),
			)
			defer func() {
				err := persist.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			registry := cmd.NewRegistry(logger, protocol.Dependencies{
				Logger:        logger,
				Publisher:     eventBus,
				StorageRoot:   command.String("storage-root"),
				AgentEndpoint: command.String("agent-endpoint"),
			})

			worker := NewWorker(
				workerID,
				persist,
				eventBus,
				registry,
				scheduler.Config{
					QueueName:    command.String("queue"),
					Concurrency:  command.Int("concurrency"),
					PollInterval: command.Duration("poll-interval"),
				},
				logger,
			)

			err := worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
