package redisqueue_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
	"github.com/dukex/cascade/pkg/persistence/redisqueue"
)

var redisContainer *tcredis.RedisContainer

func flushRedis(ctx context.Context, t *testing.T, redisURL string) {
	t.Helper()

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	require.NoError(t, client.FlushAll(ctx).Err())
	require.NoError(t, client.Close())
}

func setupTestQueue(t *testing.T) (*redisqueue.Queue, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if redisContainer == nil || !redisContainer.IsRunning() {
		var err error

		redisContainer, err = tcredis.Run(ctx, "redis:7-alpine",
			testcontainers.WithWaitStrategy(wait.ForLog("Ready to accept connections")),
		)
		require.NoError(t, err)
	}

	redisURL, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	flushRedis(ctx, t, redisURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	queue, err := redisqueue.NewQueue(ctx, logger, redisURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		flushRedis(ctx, t, redisURL)

		require.NoError(t, queue.Close())
		cancel()
	})

	return queue, ctx
}

func TestQueue_HealthCheck(t *testing.T) {
	queue, ctx := setupTestQueue(t)

	require.NoError(t, queue.HealthCheck(ctx))
}

func TestQueue_DequeueOrderAndRetryAccounting(t *testing.T) {
	queue, ctx := setupTestQueue(t)

	base := time.Now().UTC().Add(-time.Minute)

	enqueue := func(id string, priority models.Priority, enqueuedAt time.Time) {
		require.NoError(t, queue.Enqueue(ctx, &models.QueueEntry{
			ID:          id,
			ExecutionID: "exec-" + id,
			Priority:    priority.Weight(),
			MaxAttempts: 3,
			EnqueuedAt:  enqueuedAt,
		}))
	}

	enqueue("low", models.PriorityLow, base)
	enqueue("high", models.PriorityHigh, base.Add(2*time.Second))
	enqueue("medium-old", models.PriorityMedium, base)
	enqueue("medium-new", models.PriorityMedium, base.Add(time.Second))

	claimed, err := queue.DequeueReady(ctx, models.DefaultQueueName, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 4)

	ids := make([]string, 0, len(claimed))
	for _, entry := range claimed {
		ids = append(ids, entry.ID)
		assert.Equal(t, models.QueueEntryStatusProcessing, entry.Status)
		assert.Equal(t, 1, entry.Attempts)
	}

	assert.Equal(t, []string{"high", "medium-old", "medium-new", "low"}, ids)

	// Nothing pending is left.
	again, err := queue.DequeueReady(ctx, models.DefaultQueueName, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	// Requeue redelivers and counts another attempt.
	require.NoError(t, queue.Requeue(ctx, "high", time.Now().UTC().Add(-time.Second)))

	claimed, err = queue.DequeueReady(ctx, models.DefaultQueueName, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "high", claimed[0].ID)
	assert.Equal(t, 2, claimed[0].Attempts)

	// Failed entries never come back.
	require.NoError(t, queue.MarkFailed(ctx, "high"))

	claimed, err = queue.DequeueReady(ctx, models.DefaultQueueName, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	stats, err := queue.Stats(ctx, models.DefaultQueueName)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 3, stats.Processing)
	assert.Equal(t, 1, stats.Failed)

	require.NoError(t, queue.Ack(ctx, "low"))
	assert.True(t, persistence.IsQueueEntryNotFound(queue.Ack(ctx, "low")))
}

func TestQueue_SkipsFutureEntries(t *testing.T) {
	queue, ctx := setupTestQueue(t)

	require.NoError(t, queue.Enqueue(ctx, &models.QueueEntry{
		ID:           "later",
		ExecutionID:  "exec-later",
		Priority:     models.PriorityMedium.Weight(),
		MaxAttempts:  3,
		ScheduledFor: time.Now().UTC().Add(time.Hour),
	}))

	claimed, err := queue.DequeueReady(ctx, models.DefaultQueueName, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	stats, err := queue.Stats(ctx, models.DefaultQueueName)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
}

func TestQueue_ConcurrentClaimsNeverOverlap(t *testing.T) {
	queue, ctx := setupTestQueue(t)

	base := time.Now().UTC().Add(-time.Minute)
	for i := range 8 {
		require.NoError(t, queue.Enqueue(ctx, &models.QueueEntry{
			ID:          fmt.Sprintf("entry-%d", i),
			ExecutionID: "exec",
			Priority:    models.PriorityMedium.Weight(),
			MaxAttempts: 3,
			EnqueuedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	var (
		mu      sync.Mutex
		claimed []string
		wg      sync.WaitGroup
	)

	for range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			entries, err := queue.DequeueReady(ctx, models.DefaultQueueName, 2)
			assert.NoError(t, err)

			mu.Lock()
			defer mu.Unlock()

			for _, entry := range entries {
				claimed = append(claimed, entry.ID)
			}
		}()
	}

	wg.Wait()

	// Every entry lands with exactly one worker.
	require.Len(t, claimed, 8)

	seen := make(map[string]bool, len(claimed))
	for _, id := range claimed {
		assert.False(t, seen[id], "entry %s claimed twice", id)
		seen[id] = true
	}
}
