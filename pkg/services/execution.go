package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/cascade/pkg/eventbus"
	"github.com/dukex/cascade/pkg/events"
	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
	"github.com/dukex/cascade/pkg/registry"
	"github.com/dukex/cascade/pkg/workflow"
)

// DefaultMaxAttempts is the delivery budget applied when a run request does
// not set max_retries.
const DefaultMaxAttempts = 3

// RunRequest carries the parameters of one run of a workflow. MaxRetries is
// a pointer so an explicit zero (no retries) is distinguishable from the
// default budget.
type RunRequest struct {
	TriggerData  map[string]any  `json:"trigger_data"`
	Priority     models.Priority `json:"priority"      validate:"omitempty,oneof=low medium high critical"`
	ScheduledFor *time.Time      `json:"scheduled_for"`
	MaxRetries   *int            `json:"max_retries"   validate:"omitempty,min=0,max=10"`
	RequesterID  string          `json:"requester_id"`
	TenantID     string          `json:"tenant_id"`
}

// Execution accepts run requests, owns the status/cancel surface of
// executions and exposes the queue depth. Runs proceed asynchronously: the
// request only validates, plans, persists and enqueues.
type Execution struct {
	persistence persistence.Persistence
	validator   *workflow.Validator
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

// NewExecution creates a new execution service.
func NewExecution(persist persistence.Persistence, reg *registry.Registry, eventBus eventbus.EventPublisher, logger *slog.Logger) *Execution {
	return &Execution{
		persistence: persist,
		validator:   workflow.NewValidator(reg),
		eventBus:    eventBus,
		logger:      logger.With("module", "execution_service"),
	}
}

// Run validates and plans the workflow, creates a queued execution and
// enqueues it for dispatch. Validation and planning errors return
// synchronously and leave no execution record behind.
func (s *Execution) Run(ctx context.Context, workflowID string, req RunRequest) (*models.Execution, error) {
	definition, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(definition); err != nil {
		return nil, err
	}

	plan, err := workflow.NewPlanner().BuildPlan(definition, req.TriggerData)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	scheduledFor := now

	if req.ScheduledFor != nil && req.ScheduledFor.After(now) {
		scheduledFor = req.ScheduledFor.UTC()
	}

	maxAttempts := DefaultMaxAttempts
	if req.MaxRetries != nil {
		maxAttempts = *req.MaxRetries + 1
	}

	execution := &models.Execution{
		ID:          uuid.New().String(),
		WorkflowID:  definition.ID,
		TenantID:    req.TenantID,
		RequesterID: req.RequesterID,
		Status:      models.ExecutionStatusQueued,
		TriggerData: req.TriggerData,
		Plan:        plan,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.persistence.ExecutionRepository().Create(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	entry := &models.QueueEntry{
		ID:           uuid.New().String(),
		ExecutionID:  execution.ID,
		QueueName:    models.DefaultQueueName,
		Priority:     req.Priority.Weight(),
		MaxAttempts:  maxAttempts,
		ScheduledFor: scheduledFor,
		Payload:      map[string]any{"workflow_id": definition.ID},
		Status:       models.QueueEntryStatusPending,
		EnqueuedAt:   now,
	}

	if err := s.persistence.QueueRepository().Enqueue(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to enqueue execution '%s': %w", execution.ID, err)
	}

	s.appendLog(ctx, execution.ID, "execution.requested", "run request accepted", map[string]any{
		"priority":      req.Priority,
		"scheduled_for": scheduledFor,
		"max_attempts":  maxAttempts,
	})

	event := events.ExecutionRequested{
		BaseEvent:   events.NewBaseEvent(events.ExecutionRequestedEvent, definition.ID),
		ExecutionID: execution.ID,
		Priority:    string(req.Priority),
		RequesterID: req.RequesterID,
		TenantID:    req.TenantID,
	}
	if scheduledFor.After(now) {
		event.ScheduledFor = &scheduledFor
	}

	if err := s.eventBus.Publish(ctx, execution.ID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish execution.requested",
			"execution_id", execution.ID, "error", err)
	}

	return execution, nil
}

// FetchByID retrieves the full execution record.
func (s *Execution) FetchByID(ctx context.Context, id string) (*models.Execution, error) {
	return s.persistence.ExecutionRepository().GetByID(ctx, id)
}

// List retrieves executions matching the given filters.
func (s *Execution) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.Execution, error) {
	return s.persistence.ExecutionRepository().List(ctx, opts)
}

// Logs retrieves the structured log entries appended during the execution.
func (s *Execution) Logs(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	if _, err := s.persistence.ExecutionRepository().GetByID(ctx, executionID); err != nil {
		return nil, err
	}

	return s.persistence.ExecutionLogRepository().ListByExecution(ctx, executionID)
}

// Cancel flags the execution cancelled. The orchestrator checks the flag
// before every wave; nodes already dispatched finish naturally. Cancelling a
// terminal execution is a conflict.
func (s *Execution) Cancel(ctx context.Context, executionID string) (*models.Execution, error) {
	execution, err := s.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: execution '%s' is %s", ErrExecutionTerminal, executionID, execution.Status)
	}

	now := time.Now().UTC()
	wasQueued := execution.Status == models.ExecutionStatusQueued

	execution.Status = models.ExecutionStatusCancelled
	execution.UpdatedAt = now

	// A queued execution is never picked up again, so it is finalized here.
	// A running one is finalized by the orchestrator when it sees the flag.
	if wasQueued {
		execution.CompletedAt = &now
	}

	if err := s.persistence.ExecutionRepository().Update(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to cancel execution '%s': %w", executionID, err)
	}

	s.appendLog(ctx, execution.ID, "execution.cancel_requested", "cancellation requested", nil)

	if wasQueued {
		event := events.ExecutionCancelled{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			Status:      string(execution.Status),
			Reason:      "cancelled before dispatch",
		}
		if err := s.eventBus.Publish(ctx, execution.ID, event); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish execution.cancelled",
				"execution_id", execution.ID, "error", err)
		}
	}

	return execution, nil
}

// QueueStats returns the depth of the given queue bucket by entry status.
func (s *Execution) QueueStats(ctx context.Context, queueName string) (*models.QueueStats, error) {
	if queueName == "" {
		queueName = models.DefaultQueueName
	}

	return s.persistence.QueueRepository().Stats(ctx, queueName)
}

func (s *Execution) appendLog(ctx context.Context, executionID, eventType, message string, metadata map[string]any) {
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
