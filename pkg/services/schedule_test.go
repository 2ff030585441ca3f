package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
	"github.com/dukex/cascade/pkg/persistence/file"
	"github.com/dukex/cascade/pkg/testutil"
)

func newScheduleService(t *testing.T) (*Schedule, persistence.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())

	return NewSchedule(persist), persist
}

func TestScheduleCreate(t *testing.T) {
	service, persist := newScheduleService(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-1", "http://example.com/a")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	schedule, err := service.Create(ctx, "wf-1", CreateScheduleRequest{
		CronExpression: "*/5 * * * *",
		TriggerData:    map[string]any{"source": "nightly"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, schedule.ID)
	assert.True(t, schedule.Active)
	assert.True(t, schedule.NextDueAt.After(time.Now().UTC().Add(-time.Second)))

	fetched, err := service.FetchByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, "wf-1", fetched.WorkflowID)
}

func TestScheduleCreateInvalidCron(t *testing.T) {
	service, persist := newScheduleService(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-1", "http://example.com/a")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	_, err := service.Create(ctx, "wf-1", CreateScheduleRequest{CronExpression: "not a cron"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidSchedule)
	assert.True(t, IsValidationError(err))
}

func TestScheduleCreateUnknownWorkflow(t *testing.T) {
	service, _ := newScheduleService(t)

	_, err := service.Create(t.Context(), "missing", CreateScheduleRequest{CronExpression: "* * * * *"})
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestScheduleCreateInactive(t *testing.T) {
	service, persist := newScheduleService(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-1", "http://example.com/a")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	inactive := false
	schedule, err := service.Create(ctx, "wf-1", CreateScheduleRequest{
		CronExpression: "0 0 * * *",
		Active:         &inactive,
	})
	require.NoError(t, err)
	assert.False(t, schedule.Active)

	due, err := service.ListDue(ctx, time.Now().UTC().Add(48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestScheduleDelete(t *testing.T) {
	service, persist := newScheduleService(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-1", "http://example.com/a")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	schedule, err := service.Create(ctx, "wf-1", CreateScheduleRequest{CronExpression: "* * * * *"})
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, schedule.ID))

	_, err = service.FetchByID(ctx, schedule.ID)
	assert.ErrorIs(t, err, persistence.ErrScheduleNotFound)
}
