package models

import "time"

// DefaultQueueName is the bucket used when a run request names none.
const DefaultQueueName = "executions"

// Priority names the urgency buckets a run request may choose from.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Weight returns the numeric dequeue weight of the priority. Higher weights
// dequeue first. Unknown values weigh the same as medium.
func (p Priority) Weight() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 2
	}
}

// QueueEntryStatus represents the queue-side state of a dispatch.
type QueueEntryStatus string

const (
	QueueEntryStatusPending    QueueEntryStatus = "pending"    // Waiting for scheduled_for
	QueueEntryStatusProcessing QueueEntryStatus = "processing" // Claimed by a worker
	QueueEntryStatusFailed     QueueEntryStatus = "failed"     // Attempts exhausted, never redelivered
)

// QueueEntry holds one deferred or retryable execution dispatch.
type QueueEntry struct {
	ID           string           `json:"id"`
	ExecutionID  string           `json:"execution_id" validate:"required"`
	QueueName    string           `json:"queue_name"`
	Priority     int              `json:"priority"`
	Attempts     int              `json:"attempts"`
	MaxAttempts  int              `json:"max_attempts"`
	ScheduledFor time.Time        `json:"scheduled_for"`
	Payload      map[string]any   `json:"payload,omitempty"`
	Status       QueueEntryStatus `json:"status"`
	EnqueuedAt   time.Time        `json:"enqueued_at"`
}

// IsDue reports whether the entry is ready to dispatch at the given time.
func (q *QueueEntry) IsDue(now time.Time) bool {
	return !q.ScheduledFor.After(now)
}

// Exhausted reports whether the entry consumed every allowed attempt.
func (q *QueueEntry) Exhausted() bool {
	return q.Attempts >= q.MaxAttempts
}

// QueueStats summarizes the depth of one queue bucket by entry status.
type QueueStats struct {
	QueueName  string `json:"queue_name"`
	Pending    int    `json:"pending"`
	Processing int    `json:"processing"`
	Failed     int    `json:"failed"`
}
