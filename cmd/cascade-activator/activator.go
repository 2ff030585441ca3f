package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/cascade/pkg/cmd"
	"github.com/dukex/cascade/pkg/eventbus"
	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
	"github.com/dukex/cascade/pkg/protocol"
	"github.com/dukex/cascade/pkg/services"
)

// Activator polls for due schedules and submits run requests for them.
// Because the next due time is advanced after every activation, a schedule
// fires at most once per due time even if an activation attempt fails.
type Activator struct {
	id          string
	persistence persistence.Persistence
	executions  *services.Execution
	schedules   *services.Schedule
	pollEvery   time.Duration
	logger      *slog.Logger
}

func NewActivator(
	id string,
	persist persistence.Persistence,
	eventBus eventbus.EventBus,
	pollEvery time.Duration,
	logger *slog.Logger,
) *Activator {
	registry := cmd.NewRegistry(logger, protocol.Dependencies{
		Logger:    logger,
		Publisher: eventBus,
	})

	return &Activator{
		id:          id,
		persistence: persist,
		executions:  services.NewExecution(persist, registry, eventBus, logger),
		schedules:   services.NewSchedule(persist),
		pollEvery:   pollEvery,
		logger:      logger.With("module", "activator"),
	}
}

// Start runs the polling loop until a signal arrives or the context is
// cancelled.
func (a *Activator) Start(ctx context.Context) error {
	a.logger.InfoContext(ctx, "Starting activator", "poll_interval", a.pollEvery)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(a.pollEvery)
	defer ticker.Stop()

	a.activateDue(ctx)

	for {
		select {
		case <-ticker.C:
			a.activateDue(ctx)
		case <-sigChan:
			a.logger.InfoContext(ctx, "Shutting down activator...")

			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// activateDue fires every schedule whose due time has passed.
func (a *Activator) activateDue(ctx context.Context) {
	now := time.Now().UTC()

	due, err := a.schedules.ListDue(ctx, now)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to list due schedules", "error", err)

		return
	}

	for _, schedule := range due {
		a.activate(ctx, schedule, now)
	}
}

// activate submits one run for the schedule and advances its due time. The
// due time advances even when the run request fails, otherwise a broken
// workflow would be retried on every poll tick.
func (a *Activator) activate(ctx context.Context, schedule *models.Schedule, firedAt time.Time) {
	logger := a.logger.With("schedule_id", schedule.ID, "workflow_id", schedule.WorkflowID)

	triggerData := make(map[string]any, len(schedule.TriggerData)+3)
	for key, value := range schedule.TriggerData {
		triggerData[key] = value
	}

	triggerData["scheduled"] = true
	triggerData["schedule_id"] = schedule.ID
	triggerData["fired_at"] = firedAt.Format(time.RFC3339)

	execution, err := a.executions.Run(ctx, schedule.WorkflowID, services.RunRequest{
		TriggerData: triggerData,
		Priority:    models.PriorityMedium,
		RequesterID: a.id,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to request scheduled run", "error", err)
	} else {
		logger.InfoContext(ctx, "Requested scheduled run", "execution_id", execution.ID)
	}

	if err := schedule.Advance(); err != nil {
		logger.ErrorContext(ctx, "Failed to advance schedule", "error", err)

		return
	}

	if err := a.persistence.ScheduleRepository().Save(ctx, schedule); err != nil {
		logger.ErrorContext(ctx, "Failed to save advanced schedule", "error", err)
	}
}
