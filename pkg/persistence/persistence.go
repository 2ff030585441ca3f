// Package persistence provides the data storage abstraction for workflows,
// executions, queue entries, execution logs and schedules.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/cascade/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	QueueRepository() QueueRepository
	ExecutionLogRepository() ExecutionLogRepository
	ScheduleRepository() ScheduleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	List(ctx context.Context) ([]*models.WorkflowDefinition, error)
	Delete(ctx context.Context, id string) error
}

// ListExecutionsOptions filters execution listings.
type ListExecutionsOptions struct {
	WorkflowID string
	Status     models.ExecutionStatus
	TenantID   string
	Limit      int
	Offset     int
}

// ExecutionRepository stores execution state. The orchestrator calls Update
// after every node transition, so implementations must persist the full plan.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.Execution) error
	Update(ctx context.Context, execution *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	List(ctx context.Context, opts ListExecutionsOptions) ([]*models.Execution, error)
}

// QueueRepository stores pending work. DequeueReady delivers due entries in
// priority order (weight descending, FIFO within a weight), marks them
// processing and counts the delivery as one attempt. Ack removes a delivered
// entry, Requeue returns it to pending with a new due time, MarkFailed parks
// it terminally. Failed entries are never delivered again.
type QueueRepository interface {
	Enqueue(ctx context.Context, entry *models.QueueEntry) error
	DequeueReady(ctx context.Context, queueName string, limit int) ([]*models.QueueEntry, error)
	Ack(ctx context.Context, entryID string) error
	Requeue(ctx context.Context, entryID string, scheduledFor time.Time) error
	MarkFailed(ctx context.Context, entryID string) error
	Stats(ctx context.Context, queueName string) (*models.QueueStats, error)
}

// ExecutionLogRepository stores the append-only structured execution log.
type ExecutionLogRepository interface {
	Append(ctx context.Context, entry *models.ExecutionLog) error
	ListByExecution(ctx context.Context, executionID string) ([]*models.ExecutionLog, error)
}

// ScheduleRepository stores cron schedules for the activator.
type ScheduleRepository interface {
	Save(ctx context.Context, schedule *models.Schedule) error
	GetByID(ctx context.Context, id string) (*models.Schedule, error)
	List(ctx context.Context) ([]*models.Schedule, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error)
	Delete(ctx context.Context, id string) error
}
