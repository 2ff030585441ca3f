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

// ScheduleRepository handles schedule file operations.
type ScheduleRepository struct {
	root string
	mu   sync.Mutex
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(root string) *ScheduleRepository {
	return &ScheduleRepository{root: root}
}

func (sr *ScheduleRepository) dir() string {
	return path.Join(sr.root, "schedules")
}

// Save writes a schedule, creating it when new.
func (sr *ScheduleRepository) Save(_ context.Context, schedule *models.Schedule) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if err := os.MkdirAll(sr.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create schedules directory: %w", err)
	}

	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}

	schedule.UpdatedAt = now

	data, err := json.MarshalIndent(schedule, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schedule %s: %w", schedule.ID, err)
	}

	return os.WriteFile(path.Join(sr.dir(), schedule.ID+".json"), data, 0600)
}

// GetByID retrieves a schedule by its ID.
func (sr *ScheduleRepository) GetByID(_ context.Context, id string) (*models.Schedule, error) {
	filePath := filepath.Clean(path.Join(sr.dir(), id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("schedule '%s': %w", id, persistence.ErrScheduleNotFound)
		}

		return nil, fmt.Errorf("failed to fetch schedule %s: %w", id, err)
	}

	var schedule models.Schedule

	if err := json.Unmarshal(body, &schedule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule %s: %w", id, err)
	}

	return &schedule, nil
}

// List returns all schedules sorted by next due time.
func (sr *ScheduleRepository) List(ctx context.Context) ([]*models.Schedule, error) {
	schedules, err := sr.readAll(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].NextDueAt.Before(schedules[j].NextDueAt)
	})

	return schedules, nil
}

// ListDue returns active schedules whose next due time has passed.
func (sr *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	schedules, err := sr.readAll(ctx)
	if err != nil {
		return nil, err
	}

	due := make([]*models.Schedule, 0, len(schedules))

	for _, schedule := range schedules {
		if schedule.IsDue(now) {
			due = append(due, schedule)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextDueAt.Before(due[j].NextDueAt)
	})

	return due, nil
}

// Delete removes a schedule by its ID.
func (sr *ScheduleRepository) Delete(_ context.Context, id string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	err := os.Remove(path.Join(sr.dir(), id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("schedule '%s': %w", id, persistence.ErrScheduleNotFound)
		}

		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}

	return nil
}

func (sr *ScheduleRepository) readAll(ctx context.Context) ([]*models.Schedule, error) {
	jsonFiles, err := fs.Glob(os.DirFS(sr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule files: %w", err)
	}

	schedules := make([]*models.Schedule, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-len(".json")]

		schedule, err := sr.GetByID(ctx, id)
		if err != nil {
			if persistence.IsScheduleNotFound(err) {
				continue
			}

			return nil, err
		}

		schedules = append(schedules, schedule)
	}

	return schedules, nil
}
