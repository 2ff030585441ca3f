package file

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
)

func enqueueEntry(t *testing.T, repo *QueueRepository, id string, priority models.Priority, enqueuedAt time.Time) *models.QueueEntry {
	t.Helper()

	entry := &models.QueueEntry{
		ID:          id,
		ExecutionID: "exec-" + id,
		QueueName:   models.DefaultQueueName,
		Priority:    priority.Weight(),
		MaxAttempts: 3,
		EnqueuedAt:  enqueuedAt,
	}
	require.NoError(t, repo.Enqueue(t.Context(), entry))

	return entry
}

func TestQueueRepository_DequeueReady_PriorityThenFIFO(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	repo := fp.queueRepo

	base := time.Now().UTC().Add(-time.Minute)

	enqueueEntry(t, repo, "low-old", models.PriorityLow, base)
	enqueueEntry(t, repo, "high", models.PriorityHigh, base.Add(2*time.Second))
	enqueueEntry(t, repo, "medium-old", models.PriorityMedium, base.Add(time.Second))
	enqueueEntry(t, repo, "medium-new", models.PriorityMedium, base.Add(3*time.Second))

	entries, err := repo.DequeueReady(t.Context(), models.DefaultQueueName, 10)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// Weight descending, FIFO within a weight
	assert.Equal(t, "high", entries[0].ID)
	assert.Equal(t, "medium-old", entries[1].ID)
	assert.Equal(t, "medium-new", entries[2].ID)
	assert.Equal(t, "low-old", entries[3].ID)
}

func TestQueueRepository_DequeueReady_CountsAttemptAndClaims(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	repo := fp.queueRepo

	enqueueEntry(t, repo, "entry-1", models.PriorityMedium, time.Now().UTC().Add(-time.Second))

	entries, err := repo.DequeueReady(t.Context(), models.DefaultQueueName, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Attempts)
	assert.Equal(t, models.QueueEntryStatusProcessing, entries[0].Status)

	// A claimed entry is not delivered twice
	again, err := repo.DequeueReady(t.Context(), models.DefaultQueueName, 1)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestQueueRepository_DequeueReady_SkipsFutureEntries(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	repo := fp.queueRepo

	entry := &models.QueueEntry{
		ID:           "deferred",
		ExecutionID:  "exec-deferred",
		Priority:     models.PriorityHigh.Weight(),
		MaxAttempts:  3,
		ScheduledFor: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, repo.Enqueue(t.Context(), entry))

	entries, err := repo.DequeueReady(t.Context(), models.DefaultQueueName, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestQueueRepository_RequeueAndRedeliver(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	repo := fp.queueRepo

	enqueueEntry(t, repo, "retry-me", models.PriorityMedium, time.Now().UTC().Add(-time.Second))

	first, err := repo.DequeueReady(t.Context(), models.DefaultQueueName, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, repo.Requeue(t.Context(), "retry-me", time.Now().UTC().Add(-time.Millisecond)))

	second, err := repo.DequeueReady(t.Context(), models.DefaultQueueName, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].Attempts)
}

func TestQueueRepository_MarkFailed_NeverRedelivered(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	repo := fp.queueRepo

	enqueueEntry(t, repo, "exhausted", models.PriorityMedium, time.Now().UTC().Add(-time.Second))

	_, err := repo.DequeueReady(t.Context(), models.DefaultQueueName, 1)
	require.NoError(t, err)

	require.NoError(t, repo.MarkFailed(t.Context(), "exhausted"))

	entries, err := repo.DequeueReady(t.Context(), models.DefaultQueueName, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	stats, err := repo.Stats(t.Context(), models.DefaultQueueName)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
}

func TestQueueRepository_Ack_RemovesEntry(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	repo := fp.queueRepo

	enqueueEntry(t, repo, "done", models.PriorityMedium, time.Now().UTC().Add(-time.Second))

	_, err := repo.DequeueReady(t.Context(), models.DefaultQueueName, 1)
	require.NoError(t, err)

	require.NoError(t, repo.Ack(t.Context(), "done"))

	err = repo.Ack(t.Context(), "done")
	require.Error(t, err)
	assert.True(t, persistence.IsQueueEntryNotFound(err))

	stats, err := repo.Stats(t.Context(), models.DefaultQueueName)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending+stats.Processing+stats.Failed)
}

func TestQueueRepository_Stats(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	repo := fp.queueRepo

	enqueueEntry(t, repo, "p1", models.PriorityMedium, time.Now().UTC().Add(-time.Second))
	enqueueEntry(t, repo, "p2", models.PriorityMedium, time.Now().UTC().Add(-time.Second))

	_, err := repo.DequeueReady(t.Context(), models.DefaultQueueName, 1)
	require.NoError(t, err)

	stats, err := repo.Stats(t.Context(), models.DefaultQueueName)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultQueueName, stats.QueueName)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Processing)
	assert.Equal(t, 0, stats.Failed)
}
