// Package scheduler drains the execution queue and drives every claimed
// entry through the orchestrator. Failed dispatches are requeued with
// exponential backoff while attempts remain and parked permanently once the
// budget is spent; retried executions resume from completed checkpoints.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
	"github.com/dukex/cascade/pkg/workflow"
)

const (
	DefaultConcurrency  = 4
	DefaultPollInterval = 2 * time.Second
)

// Config tunes one scheduler instance. Zero values fall back to the
// defaults above, the default queue and the default retry policy.
type Config struct {
	QueueName    string
	Concurrency  int
	PollInterval time.Duration
	RetryPolicy  RetryPolicy
}

// Scheduler polls the queue on a ticker, or immediately when nudged, and
// runs up to Concurrency executions in parallel.
type Scheduler struct {
	queueName   string
	pollEvery   time.Duration
	retryPolicy RetryPolicy

	orchestrator *workflow.Orchestrator
	persistence  persistence.Persistence
	logger       *slog.Logger

	sem     chan struct{}
	nudgeCh chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewScheduler(cfg Config, orchestrator *workflow.Orchestrator, persist persistence.Persistence, logger *slog.Logger) *Scheduler {
	if cfg.QueueName == "" {
		cfg.QueueName = models.DefaultQueueName
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	if cfg.RetryPolicy == (RetryPolicy{}) {
		cfg.RetryPolicy = DefaultRetryPolicy()
	}

	return &Scheduler{
		queueName:    cfg.QueueName,
		pollEvery:    cfg.PollInterval,
		retryPolicy:  cfg.RetryPolicy,
		orchestrator: orchestrator,
		persistence:  persist,
		logger:       logger.With("module", "scheduler", "queue", cfg.QueueName),
		sem:          make(chan struct{}, cfg.Concurrency),
		nudgeCh:      make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
}

// Start launches the polling loop and returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting scheduler",
		"concurrency", cap(s.sem), "poll_interval", s.pollEvery.String())

	s.wg.Add(1)

	go s.poll(ctx)

	return nil
}

// Stop halts polling and waits for in-flight executions to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping scheduler")

	close(s.stopCh)
	s.wg.Wait()

	return nil
}

// Nudge wakes the polling loop ahead of the next tick. It never blocks.
func (s *Scheduler) Nudge() {
	select {
	case s.nudgeCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Scheduler stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Context cancelled, stopping scheduler")

			return
		case <-s.nudgeCh:
		case <-ticker.C:
		}

		s.drain(ctx)
	}
}

// drain claims as many due entries as free worker slots allow and dispatches
// them, looping until the queue or the slots run out.
func (s *Scheduler) drain(ctx context.Context) {
	queue := s.persistence.QueueRepository()

	for {
		free := cap(s.sem) - len(s.sem)
		if free == 0 {
			return
		}

		entries, err := queue.DequeueReady(ctx, s.queueName, free)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to dequeue ready entries", "error", err)

			return
		}

		if len(entries) == 0 {
			return
		}

		for _, entry := range entries {
			s.sem <- struct{}{}
			s.wg.Add(1)

			go func(entry *models.QueueEntry) {
				defer s.wg.Done()
				defer func() { <-s.sem }()

				s.process(ctx, entry)
			}(entry)
		}

		if len(entries) < free {
			return
		}
	}
}

// process runs one claimed entry end to end: load the execution and its
// workflow, hand them to the orchestrator and settle the entry by the
// outcome.
func (s *Scheduler) process(ctx context.Context, entry *models.QueueEntry) {
	logger := s.logger.With("entry_id", entry.ID, "execution_id", entry.ExecutionID, "attempt", entry.Attempts)

	execution, err := s.persistence.ExecutionRepository().GetByID(ctx, entry.ExecutionID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			logger.WarnContext(ctx, "Queue entry references a missing execution, dropping it")
			s.ack(ctx, logger, entry)

			return
		}

		logger.ErrorContext(ctx, "Failed to load execution", "error", err)
		s.settleFailure(ctx, logger, entry, nil, err)

		return
	}

	// Executions cancelled or otherwise finished while queued are acked
	// without running.
	if execution.Status.IsTerminal() {
		logger.InfoContext(ctx, "Execution already terminal at dispatch, acking", "status", execution.Status)
		s.ack(ctx, logger, entry)

		return
	}

	definition, err := s.persistence.WorkflowRepository().GetByID(ctx, execution.WorkflowID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load workflow", "workflow_id", execution.WorkflowID, "error", err)
		s.settleFailure(ctx, logger, entry, execution, err)

		return
	}

	if err := s.orchestrator.Run(ctx, definition, execution, entry.Attempts); err != nil {
		s.settleFailure(ctx, logger, entry, execution, err)

		return
	}

	s.ack(ctx, logger, entry)
}

// settleFailure routes a failed dispatch to retry or permanent failure
// based on the entry's remaining attempt budget.
func (s *Scheduler) settleFailure(ctx context.Context, logger *slog.Logger, entry *models.QueueEntry, execution *models.Execution, runErr error) {
	if entry.Exhausted() {
		s.exhaust(ctx, logger, entry, execution, runErr)

		return
	}

	s.retry(ctx, logger, entry, execution, runErr)
}

// retry resets the failed portion of the plan so the next attempt resumes
// from completed checkpoints, then requeues the entry with backoff.
func (s *Scheduler) retry(ctx context.Context, logger *slog.Logger, entry *models.QueueEntry, execution *models.Execution, runErr error) {
	delay := s.retryPolicy.NextDelay(entry.Attempts)
	scheduledFor := time.Now().UTC().Add(delay)

	if execution != nil {
		resetForRetry(execution)
		execution.UpdatedAt = time.Now().UTC()

		if err := s.persistence.ExecutionRepository().Update(ctx, execution); err != nil {
			logger.ErrorContext(ctx, "Failed to reset execution for retry", "error", err)
		}
	}

	if err := s.persistence.QueueRepository().Requeue(ctx, entry.ID, scheduledFor); err != nil {
		logger.ErrorContext(ctx, "Failed to requeue entry", "error", err)

		return
	}

	logger.InfoContext(ctx, "Dispatch failed, retrying with backoff",
		"delay", delay.String(), "scheduled_for", scheduledFor, "error", runErr)
}

// exhaust parks the entry terminally, marks the execution failed when the
// orchestrator did not already, and records the exhaustion on the execution
// log.
func (s *Scheduler) exhaust(ctx context.Context, logger *slog.Logger, entry *models.QueueEntry, execution *models.Execution, runErr error) {
	exhausted := &QueueExhaustedError{ExecutionID: entry.ExecutionID, Attempts: entry.Attempts}

	if err := s.persistence.QueueRepository().MarkFailed(ctx, entry.ID); err != nil {
		logger.ErrorContext(ctx, "Failed to park exhausted queue entry", "error", err)
	}

	if execution != nil && execution.Status != models.ExecutionStatusFailed {
		now := time.Now().UTC()
		execution.Status = models.ExecutionStatusFailed
		execution.UpdatedAt = now

		if execution.CompletedAt == nil {
			execution.CompletedAt = &now
		}

		if execution.ErrorDetails == nil {
			execution.ErrorDetails = &models.ErrorDetails{Message: runErr.Error()}
		}

		if err := s.persistence.ExecutionRepository().Update(ctx, execution); err != nil {
			logger.ErrorContext(ctx, "Failed to mark execution failed", "error", err)
		}
	}

	s.appendLog(ctx, entry.ExecutionID, "queue.exhausted", exhausted.Error(), map[string]any{
		"attempts":     entry.Attempts,
		"max_attempts": entry.MaxAttempts,
		"error":        runErr.Error(),
	})

	logger.ErrorContext(ctx, "Retry budget exhausted, entry permanently failed", "error", runErr)
}

func (s *Scheduler) ack(ctx context.Context, logger *slog.Logger, entry *models.QueueEntry) {
	if err := s.persistence.QueueRepository().Ack(ctx, entry.ID); err != nil {
		logger.ErrorContext(ctx, "Failed to ack queue entry", "error", err)
	}
}

func (s *Scheduler) appendLog(ctx context.Context, executionID, eventType, message string, metadata map[string]any) {
	entry := &models.ExecutionLog{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		EventType:   eventType,
		Message:     message,
		Metadata:    metadata,
		Timestamp:   time.Now().UTC(),
	}

	if err := s.persistence.ExecutionLogRepository().Append(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "Failed to append execution log",
			"execution_id", executionID, "event_type", eventType, "error", err)
	}
}

// resetForRetry returns failed and skipped nodes to pending while keeping
// completed outputs as resume checkpoints.
func resetForRetry(execution *models.Execution) {
	for _, node := range execution.Plan {
		if node.Status != models.NodeStatusFailed && node.Status != models.NodeStatusSkipped {
			continue
		}

		node.Status = models.NodeStatusPending
		node.Error = ""
		node.StartedAt = nil
		node.CompletedAt = nil
		node.DurationMS = 0
	}

	execution.Status = models.ExecutionStatusQueued
	execution.ErrorDetails = nil
	execution.CompletedAt = nil
}
