package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/cascade/pkg/eventbus"
	"github.com/dukex/cascade/pkg/events"
	"github.com/dukex/cascade/pkg/persistence"
	"github.com/dukex/cascade/pkg/registry"
	"github.com/dukex/cascade/pkg/scheduler"
	"github.com/dukex/cascade/pkg/workflow"
)

// Worker owns one scheduler loop. The queue is the source of truth for
// pending work; execution requested events only nudge the scheduler so
// fresh runs start before the next poll tick.
type Worker struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	scheduler   *scheduler.Scheduler
}

func NewWorker(
	id string,
	persist persistence.Persistence,
	eventBus eventbus.EventBus,
	registry *registry.Registry,
	cfg scheduler.Config,
	logger *slog.Logger,
) *Worker {
	dispatcher := workflow.NewDispatcher(registry, logger)
	orchestrator := workflow.NewOrchestrator(dispatcher, persist, eventBus, id, logger)

	return &Worker{
		id:          id,
		logger:      logger.With("module", "cascade-worker"),
		persistence: persist,
		eventBus:    eventBus,
		scheduler:   scheduler.NewScheduler(cfg, orchestrator, persist, logger),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker", "worker_id", w.id)

	err := w.eventBus.Handle(events.ExecutionRequestedEvent, w.handleExecutionRequested)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	err = w.scheduler.Start(ctx)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker...")

	return w.scheduler.Stop(ctx)
}

func (w *Worker) handleExecutionRequested(ctx context.Context, event any) error {
	requestedEvent, ok := event.(*events.ExecutionRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ExecutionRequested")

		return nil
	}

	w.logger.DebugContext(ctx, "Execution requested, nudging scheduler",
		"workflow_id", requestedEvent.WorkflowID,
		"execution_id", requestedEvent.ExecutionID,
	)

	w.scheduler.Nudge()

	return nil
}
