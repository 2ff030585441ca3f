package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
)

// QueueRepository handles queue-related database operations. DequeueReady
// claims entries with FOR UPDATE SKIP LOCKED, so multiple workers can poll
// the same queue without handing out an entry twice.
type QueueRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewQueueRepository creates a new queue repository.
func NewQueueRepository(db *sql.DB, logger *slog.Logger) *QueueRepository {
	return &QueueRepository{db: db, logger: logger}
}

// Enqueue inserts a new queue entry, filling the defaults the scheduler
// relies on.
func (q *QueueRepository) Enqueue(ctx context.Context, entry *models.QueueEntry) error {
	if entry.QueueName == "" {
		entry.QueueName = models.DefaultQueueName
	}

	if entry.Status == "" {
		entry.Status = models.QueueEntryStatusPending
	}

	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now().UTC()
	}

	if entry.ScheduledFor.IsZero() {
		entry.ScheduledFor = entry.EnqueuedAt
	}

	payloadJSON, err := marshalJSON(entry.Payload)
	if err != nil {
		return persistence.NewQueueError("Enqueue", entry.QueueName, entry.ID, err)
	}

	query := `
		INSERT INTO queue_entries (id, execution_id, queue_name, priority, attempts, max_attempts, scheduled_for, payload, status, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = q.db.ExecContext(ctx, query,
		entry.ID,
		entry.ExecutionID,
		entry.QueueName,
		entry.Priority,
		entry.Attempts,
		entry.MaxAttempts,
		entry.ScheduledFor,
		payloadJSON,
		string(entry.Status),
		entry.EnqueuedAt,
	)
	if err != nil {
		return persistence.NewQueueError("Enqueue", entry.QueueName, entry.ID, err)
	}

	return nil
}

// DequeueReady claims up to limit due entries in priority order, marks them
// processing and counts the delivery as one attempt.
func (q *QueueRepository) DequeueReady(ctx context.Context, queueName string, limit int) ([]*models.QueueEntry, error) {
	if limit <= 0 {
		return []*models.QueueEntry{}, nil
	}

	query := `
		WITH claimed AS (
			SELECT id
			FROM queue_entries
			WHERE queue_name = $1
			  AND status = 'pending'
			  AND scheduled_for <= NOW()
			ORDER BY priority DESC, enqueued_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE queue_entries AS entries
		SET status = 'processing', attempts = entries.attempts + 1
		FROM claimed
		WHERE entries.id = claimed.id
		RETURNING entries.id, entries.execution_id, entries.queue_name, entries.priority, entries.attempts,
		          entries.max_attempts, entries.scheduled_for, entries.payload, entries.status, entries.enqueued_at
	`

	rows, err := q.db.QueryContext(ctx, query, queueName, limit)
	if err != nil {
		return nil, persistence.NewQueueError("DequeueReady", queueName, "", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			q.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.QueueEntry, 0, limit)

	for rows.Next() {
		entry, err := q.scanEntry(rows)
		if err != nil {
			return nil, persistence.NewQueueError("DequeueReady", queueName, "", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewQueueError("DequeueReady", queueName, "", err)
	}

	// RETURNING does not preserve the claim order.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}

		return entries[i].EnqueuedAt.Before(entries[j].EnqueuedAt)
	})

	return entries, nil
}

// Ack removes a delivered entry.
func (q *QueueRepository) Ack(ctx context.Context, entryID string) error {
	return q.exec(ctx, "Ack", entryID, "DELETE FROM queue_entries WHERE id = $1")
}

// Requeue returns a delivered entry to pending with a new due time.
func (q *QueueRepository) Requeue(ctx context.Context, entryID string, scheduledFor time.Time) error {
	query := "UPDATE queue_entries SET status = 'pending', scheduled_for = $2 WHERE id = $1"

	result, err := q.db.ExecContext(ctx, query, entryID, scheduledFor)
	if err != nil {
		return persistence.NewQueueError("Requeue", "", entryID, err)
	}

	return q.requireAffected(result, "Requeue", entryID)
}

// MarkFailed parks an entry terminally. Failed entries are never delivered
// again.
func (q *QueueRepository) MarkFailed(ctx context.Context, entryID string) error {
	return q.exec(ctx, "MarkFailed", entryID, "UPDATE queue_entries SET status = 'failed' WHERE id = $1")
}

// Stats summarizes the queue depth by entry status.
func (q *QueueRepository) Stats(ctx context.Context, queueName string) (*models.QueueStats, error) {
	query := `
		SELECT status, COUNT(*)
		FROM queue_entries
		WHERE queue_name = $1
		GROUP BY status
	`

	rows, err := q.db.QueryContext(ctx, query, queueName)
	if err != nil {
		return nil, persistence.NewQueueError("Stats", queueName, "", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			q.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	stats := &models.QueueStats{QueueName: queueName}

	for rows.Next() {
		var (
			status string
			count  int
		)

		if err := rows.Scan(&status, &count); err != nil {
			return nil, persistence.NewQueueError("Stats", queueName, "", err)
		}

		switch models.QueueEntryStatus(status) {
		case models.QueueEntryStatusPending:
			stats.Pending = count
		case models.QueueEntryStatusProcessing:
			stats.Processing = count
		case models.QueueEntryStatusFailed:
			stats.Failed = count
		}
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewQueueError("Stats", queueName, "", err)
	}

	return stats, nil
}

func (q *QueueRepository) exec(ctx context.Context, op, entryID, query string) error {
	result, err := q.db.ExecContext(ctx, query, entryID)
	if err != nil {
		return persistence.NewQueueError(op, "", entryID, err)
	}

	return q.requireAffected(result, op, entryID)
}

func (q *QueueRepository) requireAffected(result sql.Result, op, entryID string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewQueueError(op, "", entryID, err)
	}

	if rowsAffected == 0 {
		return persistence.NewQueueError(op, "", entryID, persistence.ErrQueueEntryNotFound)
	}

	return nil
}

func (q *QueueRepository) scanEntry(row rowScanner) (*models.QueueEntry, error) {
	var (
		entry       models.QueueEntry
		payloadJSON []byte
		status      string
	)

	err := row.Scan(
		&entry.ID,
		&entry.ExecutionID,
		&entry.QueueName,
		&entry.Priority,
		&entry.Attempts,
		&entry.MaxAttempts,
		&entry.ScheduledFor,
		&payloadJSON,
		&status,
		&entry.EnqueuedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Status = models.QueueEntryStatus(status)

	if err := unmarshalJSON(payloadJSON, &entry.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	entry.ScheduledFor = entry.ScheduledFor.UTC()
	entry.EnqueuedAt = entry.EnqueuedAt.UTC()

	return &entry, nil
}
