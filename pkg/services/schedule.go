package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
)

// CreateScheduleRequest carries the parameters of a new recurring run.
type CreateScheduleRequest struct {
	CronExpression string         `json:"cron_expression" validate:"required"`
	TriggerData    map[string]any `json:"trigger_data"`
	Active         *bool          `json:"active"`
}

// Schedule manages the recurring runs polled by the activator.
type Schedule struct {
	persistence persistence.Persistence
}

// NewSchedule creates a new schedule service.
func NewSchedule(persist persistence.Persistence) *Schedule {
	return &Schedule{persistence: persist}
}

// Create registers a recurring run of the workflow. The cron expression is
// parsed up front so a malformed one fails synchronously, and the first due
// time is precomputed.
func (s *Schedule) Create(ctx context.Context, workflowID string, req CreateScheduleRequest) (*models.Schedule, error) {
	if _, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID); err != nil {
		return nil, err
	}

	schedule, err := models.NewSchedule(uuid.New().String(), workflowID, req.CronExpression, req.TriggerData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidSchedule, err)
	}

	if req.Active != nil {
		schedule.Active = *req.Active
	}

	if err := s.persistence.ScheduleRepository().Save(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	return schedule, nil
}

// FetchByID retrieves a schedule by its ID.
func (s *Schedule) FetchByID(ctx context.Context, id string) (*models.Schedule, error) {
	return s.persistence.ScheduleRepository().GetByID(ctx, id)
}

// List retrieves all schedules.
func (s *Schedule) List(ctx context.Context) ([]*models.Schedule, error) {
	return s.persistence.ScheduleRepository().List(ctx)
}

// ListDue retrieves the active schedules due at the given time.
func (s *Schedule) ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	return s.persistence.ScheduleRepository().ListDue(ctx, now)
}

// Delete removes a schedule.
func (s *Schedule) Delete(ctx context.Context, id string) error {
	return s.persistence.ScheduleRepository().Delete(ctx, id)
}
