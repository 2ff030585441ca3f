package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/cascade/pkg/cmd"
	"github.com/dukex/cascade/pkg/log"
	"github.com/dukex/cascade/pkg/otelhelper"
)

const defaultPollInterval = 15 * time.Second

func main() {
	command := &cli.Command{
		Name:                  "cascade-activator",
		Usage:                 "Poll cron schedules and request workflow runs when they come due",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "activator-id",
				Aliases: []string{"id"},
				Usage:   "Custom activator ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ACTIVATOR_ID"),
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
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often to check for due schedules",
				Value:   defaultPollInterval,
				Sources: cli.EnvVars("POLL_INTERVAL"),
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

			activatorID := command.String("activator-id")
			if activatorID == "" {
				activatorID = fmt.Sprintf("activator-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("cascade-activator").With("activator_id", activatorID)

			logger.InfoContext(ctx, "Initializing Cascade Activator")

			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
				if _, err := otelhelper.NewTracer(ctx, "cascade-activator"); err != nil {
					logger.WarnContext(ctx, "Failed to initialize tracer", "error", err)
				}
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), "cascade-activator", logger)
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

			activator := NewActivator(
				activatorID,
				persist,
				eventBus,
				command.Duration("poll-interval"),
				logger,
			)

			if err := activator.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start activator", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
