package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/cascade/pkg/cmd"
	"github.com/dukex/cascade/pkg/log"
	"github.com/dukex/cascade/pkg/otelhelper"
	"github.com/dukex/cascade/pkg/protocol"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "cascade-api",
		Usage:                 "Author workflows, request runs and query execution state",
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

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Cascade API")

			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
				if _, err := otelhelper.NewTracer(ctx, "cascade-api"); err != nil {
					logger.WarnContext(ctx, "Failed to initialize tracer", "error", err)
				}
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), "cascade-api", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persist := cmd.WithQueue(ctx, logger,
				cmd.NewPersistence(ctx, logger, command.String("database-url")),
				command.String("queue-url"),
			)
			defer func() {
				if err := persist.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			registry := cmd.NewRegistry(logger, protocol.Dependencies{
				Logger:        logger,
				Publisher:     eventBus,
				StorageRoot:   command.String("storage-root"),
				AgentEndpoint: command.String("agent-endpoint"),
			})

			api := NewAPI(logger, persist, registry, eventBus)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
