package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
)

// QueueRepository handles queue entry file operations. A single mutex makes
// the scan-claim-write of DequeueReady atomic with respect to other queue
// calls in this process.
type QueueRepository struct {
	root string
	mu   sync.Mutex
}

// NewQueueRepository creates a new queue repository.
func NewQueueRepository(root string) *QueueRepository {
	return &QueueRepository{root: root}
}

func (qr *QueueRepository) dir() string {
	return path.Join(qr.root, "queue")
}

// Enqueue stores a new entry as pending.
func (qr *QueueRepository) Enqueue(_ context.Context, entry *models.QueueEntry) error {
	qr.mu.Lock()
	defer qr.mu.Unlock()

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

	return qr.write(entry)
}

// DequeueReady claims up to limit due pending entries, ordered by priority
// weight descending and enqueue time ascending within a weight. Claimed
// entries move to processing and the delivery counts as one attempt.
func (qr *QueueRepository) DequeueReady(ctx context.Context, queueName string, limit int) ([]*models.QueueEntry, error) {
	qr.mu.Lock()
	defer qr.mu.Unlock()

	if limit <= 0 {
		return []*models.QueueEntry{}, nil
	}

	entries, err := qr.readAll(queueName)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	due := make([]*models.QueueEntry, 0, len(entries))

	for _, entry := range entries {
		if entry.Status == models.QueueEntryStatusPending && entry.IsDue(now) {
			due = append(due, entry)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}

		return due[i].EnqueuedAt.Before(due[j].EnqueuedAt)
	})

	if len(due) > limit {
		due = due[:limit]
	}

	for _, entry := range due {
		entry.Status = models.QueueEntryStatusProcessing
		entry.Attempts++

		if err := qr.write(entry); err != nil {
			return nil, persistence.NewQueueError("DequeueReady", queueName, entry.ID, err)
		}
	}

	return due, nil
}

// Ack removes a processed entry.
func (qr *QueueRepository) Ack(_ context.Context, entryID string) error {
	qr.mu.Lock()
	defer qr.mu.Unlock()

	err := os.Remove(path.Join(qr.dir(), entryID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewQueueError("Ack", "", entryID, persistence.ErrQueueEntryNotFound)
		}

		return persistence.NewQueueError("Ack", "", entryID, err)
	}

	return nil
}

// Requeue returns a claimed entry to pending with a new due time.
func (qr *QueueRepository) Requeue(_ context.Context, entryID string, scheduledFor time.Time) error {
	qr.mu.Lock()
	defer qr.mu.Unlock()

	entry, err := qr.read(entryID)
	if err != nil {
		return persistence.NewQueueError("Requeue", "", entryID, err)
	}

	entry.Status = models.QueueEntryStatusPending
	entry.ScheduledFor = scheduledFor

	if err := qr.write(entry); err != nil {
		return persistence.NewQueueError("Requeue", "", entryID, err)
	}

	return nil
}

// MarkFailed parks an entry terminally. Failed entries stay on disk for
// inspection but are never delivered again.
func (qr *QueueRepository) MarkFailed(_ context.Context, entryID string) error {
	qr.mu.Lock()
	defer qr.mu.Unlock()

	entry, err := qr.read(entryID)
	if err != nil {
		return persistence.NewQueueError("MarkFailed", "", entryID, err)
	}

	entry.Status = models.QueueEntryStatusFailed

	if err := qr.write(entry); err != nil {
		return persistence.NewQueueError("MarkFailed", "", entryID, err)
	}

	return nil
}

// Stats counts the entries of one queue by status.
func (qr *QueueRepository) Stats(_ context.Context, queueName string) (*models.QueueStats, error) {
	qr.mu.Lock()
	defer qr.mu.Unlock()

	entries, err := qr.readAll(queueName)
	if err != nil {
		return nil, err
	}

	stats := &models.QueueStats{QueueName: queueName}

	for _, entry := range entries {
		switch entry.Status {
		case models.QueueEntryStatusPending:
			stats.Pending++
		case models.QueueEntryStatusProcessing:
			stats.Processing++
		case models.QueueEntryStatusFailed:
			stats.Failed++
		}
	}

	return stats, nil
}

func (qr *QueueRepository) read(entryID string) (*models.QueueEntry, error) {
	filePath := filepath.Clean(path.Join(qr.dir(), entryID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrQueueEntryNotFound
		}

		return nil, err
	}

	var entry models.QueueEntry

	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

func (qr *QueueRepository) readAll(queueName string) ([]*models.QueueEntry, error) {
	jsonFiles, err := fs.Glob(os.DirFS(qr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list queue files: %w", err)
	}

	entries := make([]*models.QueueEntry, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		entry, err := qr.read(file[:len(file)-len(".json")])
		if err != nil {
			if persistence.IsQueueEntryNotFound(err) {
				continue
			}

			return nil, err
		}

		if queueName != "" && entry.QueueName != queueName {
			continue
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func (qr *QueueRepository) write(entry *models.QueueEntry) error {
	if err := os.MkdirAll(qr.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry %s: %w", entry.ID, err)
	}

	return os.WriteFile(path.Join(qr.dir(), entry.ID+".json"), data, 0600)
}
