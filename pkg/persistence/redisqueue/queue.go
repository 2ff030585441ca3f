// Package redisqueue provides a Redis-backed queue repository. It can stand
// in for the queue of any persistence backend, letting deployments keep
// workflows and executions in PostgreSQL while dispatch runs through Redis.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
)

const keyPrefix = "cascade:queue:"

// Queue implements persistence.QueueRepository on Redis. Pending entries
// live in a sorted set scored by their due time; claims race through ZREM,
// so concurrent workers never receive the same entry twice.
type Queue struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewQueue connects to Redis and returns the queue repository.
func NewQueue(ctx context.Context, logger *slog.Logger, redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return &Queue{
		client: client,
		logger: logger.With("module", "redisqueue"),
	}, nil
}

// Close releases the Redis connection.
func (q *Queue) Close() error {
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	return nil
}

// HealthCheck verifies the Redis connection is healthy.
func (q *Queue) HealthCheck(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	return nil
}

// Enqueue stores the entry and registers it as pending.
func (q *Queue) Enqueue(ctx context.Context, entry *models.QueueEntry) error {
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

	data, err := json.Marshal(entry)
	if err != nil {
		return persistence.NewQueueError("Enqueue", entry.QueueName, entry.ID, err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, entryKey(entry.ID), data, 0)
		pipe.ZAdd(ctx, pendingKey(entry.QueueName), redis.Z{
			Score:  float64(entry.ScheduledFor.UnixMilli()),
			Member: entry.ID,
		})

		return nil
	})
	if err != nil {
		return persistence.NewQueueError("Enqueue", entry.QueueName, entry.ID, err)
	}

	return nil
}

// DequeueReady claims up to limit due entries in priority order, marks them
// processing and counts the delivery as one attempt.
func (q *Queue) DequeueReady(ctx context.Context, queueName string, limit int) ([]*models.QueueEntry, error) {
	if limit <= 0 {
		return []*models.QueueEntry{}, nil
	}

	maxScore := strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)

	ids, err := q.client.ZRangeByScore(ctx, pendingKey(queueName), &redis.ZRangeBy{
		Min: "-inf",
		Max: maxScore,
	}).Result()
	if err != nil {
		return nil, persistence.NewQueueError("DequeueReady", queueName, "", err)
	}

	if len(ids) == 0 {
		return []*models.QueueEntry{}, nil
	}

	candidates, err := q.loadEntries(ctx, queueName, ids)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}

		return candidates[i].EnqueuedAt.Before(candidates[j].EnqueuedAt)
	})

	claimed := make([]*models.QueueEntry, 0, limit)

	for _, entry := range candidates {
		if len(claimed) == limit {
			break
		}

		// ZREM is the claim: whoever removes the member owns the entry.
		removed, err := q.client.ZRem(ctx, pendingKey(queueName), entry.ID).Result()
		if err != nil {
			return nil, persistence.NewQueueError("DequeueReady", queueName, entry.ID, err)
		}

		if removed == 0 {
			continue
		}

		entry.Status = models.QueueEntryStatusProcessing
		entry.Attempts++

		if err := q.store(ctx, entry, processingKey(queueName)); err != nil {
			return nil, persistence.NewQueueError("DequeueReady", queueName, entry.ID, err)
		}

		claimed = append(claimed, entry)
	}

	return claimed, nil
}

// Ack removes a delivered entry.
func (q *Queue) Ack(ctx context.Context, entryID string) error {
	entry, err := q.load(ctx, "Ack", entryID)
	if err != nil {
		return err
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, entryKey(entryID))
		pipe.ZRem(ctx, pendingKey(entry.QueueName), entryID)
		pipe.SRem(ctx, processingKey(entry.QueueName), entryID)
		pipe.SRem(ctx, failedKey(entry.QueueName), entryID)

		return nil
	})
	if err != nil {
		return persistence.NewQueueError("Ack", entry.QueueName, entryID, err)
	}

	return nil
}

// Requeue returns a delivered entry to pending with a new due time.
func (q *Queue) Requeue(ctx context.Context, entryID string, scheduledFor time.Time) error {
	entry, err := q.load(ctx, "Requeue", entryID)
	if err != nil {
		return err
	}

	entry.Status = models.QueueEntryStatusPending
	entry.ScheduledFor = scheduledFor.UTC()

	data, err := json.Marshal(entry)
	if err != nil {
		return persistence.NewQueueError("Requeue", entry.QueueName, entryID, err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, entryKey(entryID), data, 0)
		pipe.SRem(ctx, processingKey(entry.QueueName), entryID)
		pipe.ZAdd(ctx, pendingKey(entry.QueueName), redis.Z{
			Score:  float64(entry.ScheduledFor.UnixMilli()),
			Member: entryID,
		})

		return nil
	})
	if err != nil {
		return persistence.NewQueueError("Requeue", entry.QueueName, entryID, err)
	}

	return nil
}

// MarkFailed parks an entry terminally. Failed entries are never delivered
// again.
func (q *Queue) MarkFailed(ctx context.Context, entryID string) error {
	entry, err := q.load(ctx, "MarkFailed", entryID)
	if err != nil {
		return err
	}

	entry.Status = models.QueueEntryStatusFailed

	data, err := json.Marshal(entry)
	if err != nil {
		return persistence.NewQueueError("MarkFailed", entry.QueueName, entryID, err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, entryKey(entryID), data, 0)
		pipe.ZRem(ctx, pendingKey(entry.QueueName), entryID)
		pipe.SRem(ctx, processingKey(entry.QueueName), entryID)
		pipe.SAdd(ctx, failedKey(entry.QueueName), entryID)

		return nil
	})
	if err != nil {
		return persistence.NewQueueError("MarkFailed", entry.QueueName, entryID, err)
	}

	return nil
}

// Stats summarizes the queue depth by entry status.
func (q *Queue) Stats(ctx context.Context, queueName string) (*models.QueueStats, error) {
	pending, err := q.client.ZCard(ctx, pendingKey(queueName)).Result()
	if err != nil {
		return nil, persistence.NewQueueError("Stats", queueName, "", err)
	}

	processing, err := q.client.SCard(ctx, processingKey(queueName)).Result()
	if err != nil {
		return nil, persistence.NewQueueError("Stats", queueName, "", err)
	}

	failed, err := q.client.SCard(ctx, failedKey(queueName)).Result()
	if err != nil {
		return nil, persistence.NewQueueError("Stats", queueName, "", err)
	}

	return &models.QueueStats{
		QueueName:  queueName,
		Pending:    int(pending),
		Processing: int(processing),
		Failed:     int(failed),
	}, nil
}

func (q *Queue) store(ctx context.Context, entry *models.QueueEntry, memberSet string) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, entryKey(entry.ID), data, 0)
		pipe.SAdd(ctx, memberSet, entry.ID)

		return nil
	})

	return err
}

func (q *Queue) load(ctx context.Context, op, entryID string) (*models.QueueEntry, error) {
	data, err := q.client.Get(ctx, entryKey(entryID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewQueueError(op, "", entryID, persistence.ErrQueueEntryNotFound)
		}

		return nil, persistence.NewQueueError(op, "", entryID, err)
	}

	var entry models.QueueEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, persistence.NewQueueError(op, "", entryID, err)
	}

	return &entry, nil
}

// loadEntries fetches the entry documents for the given ids. Ids whose
// document disappeared between the scan and the fetch are skipped.
func (q *Queue) loadEntries(ctx context.Context, queueName string, ids []string) ([]*models.QueueEntry, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(id)
	}

	values, err := q.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, persistence.NewQueueError("DequeueReady", queueName, "", err)
	}

	entries := make([]*models.QueueEntry, 0, len(values))

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			q.logger.WarnContext(ctx, "Queue entry document missing, skipping", "entry_id", ids[i])

			continue
		}

		var entry models.QueueEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, persistence.NewQueueError("DequeueReady", queueName, ids[i], err)
		}

		entries = append(entries, &entry)
	}

	return entries, nil
}

func entryKey(id string) string {
	return keyPrefix + "entries:" + id
}

func pendingKey(queueName string) string {
	return keyPrefix + queueName + ":pending"
}

func processingKey(queueName string) string {
	return keyPrefix + queueName + ":processing"
}

func failedKey(queueName string) string {
	return keyPrefix + queueName + ":failed"
}
