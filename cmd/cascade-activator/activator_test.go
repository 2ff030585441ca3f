package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/cascade/pkg/log"
	"github.com/dukex/cascade/pkg/mocks"
	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
	"github.com/dukex/cascade/pkg/persistence/file"
	"github.com/dukex/cascade/pkg/testutil"
)

func newTestActivator(t *testing.T) (*Activator, persistence.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())

	eventBus := &mocks.MockEventBus{}
	eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return NewActivator("activator-test", persist, eventBus, time.Second, log.Discard()), persist
}

func dueSchedule(t *testing.T, persist persistence.Persistence, workflowID string, triggerData map[string]any) *models.Schedule {
	t.Helper()

	schedule, err := models.NewSchedule("sched-1", workflowID, "* * * * *", triggerData)
	require.NoError(t, err)

	schedule.NextDueAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, persist.ScheduleRepository().Save(t.Context(), schedule))

	return schedule
}

func TestActivatorFiresDueSchedule(t *testing.T) {
	activator, persist := newTestActivator(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-1", "http://example.com/hook")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	dueSchedule(t, persist, "wf-1", map[string]any{"region": "eu"})

	activator.activateDue(ctx)

	executions, err := persist.ExecutionRepository().List(ctx, persistence.ListExecutionsOptions{WorkflowID: "wf-1"})
	require.NoError(t, err)
	require.Len(t, executions, 1)

	execution := executions[0]
	assert.Equal(t, models.ExecutionStatusQueued, execution.Status)
	assert.Equal(t, "activator-test", execution.RequesterID)
	assert.Equal(t, true, execution.TriggerData["scheduled"])
	assert.Equal(t, "sched-1", execution.TriggerData["schedule_id"])
	assert.Equal(t, "eu", execution.TriggerData["region"])

	stats, err := persist.QueueRepository().Stats(ctx, models.DefaultQueueName)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)

	advanced, err := persist.ScheduleRepository().GetByID(ctx, "sched-1")
	require.NoError(t, err)
	assert.True(t, advanced.NextDueAt.After(time.Now().UTC().Add(-time.Second)))
}

func TestActivatorAdvancesScheduleWhenRunFails(t *testing.T) {
	activator, persist := newTestActivator(t)
	ctx := t.Context()

	// No workflow saved, so the run request fails with not found.
	dueSchedule(t, persist, "missing-wf", nil)

	activator.activateDue(ctx)

	executions, err := persist.ExecutionRepository().List(ctx, persistence.ListExecutionsOptions{})
	require.NoError(t, err)
	assert.Empty(t, executions)

	advanced, err := persist.ScheduleRepository().GetByID(ctx, "sched-1")
	require.NoError(t, err)
	assert.True(t, advanced.NextDueAt.After(time.Now().UTC()), "failed activation must not refire on the next poll")
}

func TestActivatorIgnoresFutureSchedules(t *testing.T) {
	activator, persist := newTestActivator(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-1", "http://example.com/hook")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	schedule, err := models.NewSchedule("sched-future", "wf-1", "* * * * *", nil)
	require.NoError(t, err)

	schedule.NextDueAt = time.Now().UTC().Add(time.Hour)
	require.NoError(t, persist.ScheduleRepository().Save(ctx, schedule))

	activator.activateDue(ctx)

	executions, err := persist.ExecutionRepository().List(ctx, persistence.ListExecutionsOptions{})
	require.NoError(t, err)
	assert.Empty(t, executions)
}
