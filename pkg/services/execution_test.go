package services

import (
	"errors"
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
	"github.com/dukex/cascade/pkg/protocol"
	"github.com/dukex/cascade/pkg/registry"
	"github.com/dukex/cascade/pkg/testutil"
)

func newExecutionService(t *testing.T) (*Execution, persistence.Persistence, *mocks.MockEventBus) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())
	service, eventBus := buildExecutionService(t, persist)

	return service, persist, eventBus
}

func buildExecutionService(t *testing.T, persist persistence.Persistence) (*Execution, *mocks.MockEventBus) {
	t.Helper()

	logger := log.Discard()
	reg := registry.NewRegistry(logger)

	deps := protocol.Dependencies{Logger: logger, StorageRoot: t.TempDir()}
	reg.RegisterDefaultNodes(deps)
	reg.RegisterDefaultActions(deps)

	eventBus := &mocks.MockEventBus{}
	eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return NewExecution(persist, reg, eventBus, logger), eventBus
}

// repoOverride swaps individual repositories of a real gateway so failure
// paths can be driven from mocks.
type repoOverride struct {
	persistence.Persistence

	queue      persistence.QueueRepository
	executions persistence.ExecutionRepository
}

func (p *repoOverride) QueueRepository() persistence.QueueRepository {
	if p.queue != nil {
		return p.queue
	}

	return p.Persistence.QueueRepository()
}

func (p *repoOverride) ExecutionRepository() persistence.ExecutionRepository {
	if p.executions != nil {
		return p.executions
	}

	return p.Persistence.ExecutionRepository()
}

func TestExecutionRun(t *testing.T) {
	service, persist, eventBus := newExecutionService(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-1", "http://example.com/a", "http://example.com/b")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	execution, err := service.Run(ctx, "wf-1", RunRequest{
		TriggerData: map[string]any{"order_id": "ord-42"},
		Priority:    models.PriorityHigh,
		RequesterID: "user-1",
		TenantID:    "tenant-1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusQueued, execution.Status)
	assert.Equal(t, "tenant-1", execution.TenantID)
	assert.Len(t, execution.Plan, 3)

	entries, err := persist.QueueRepository().DequeueReady(ctx, models.DefaultQueueName, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, execution.ID, entries[0].ExecutionID)
	assert.Equal(t, models.PriorityHigh.Weight(), entries[0].Priority)
	assert.Equal(t, DefaultMaxAttempts, entries[0].MaxAttempts)

	logs, err := service.Logs(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "execution.requested", logs[0].EventType)

	eventBus.AssertCalled(t, "Publish", mock.Anything, execution.ID, mock.Anything)
}

func TestExecutionRunExplicitZeroRetries(t *testing.T) {
	service, persist, _ := newExecutionService(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-1", "http://example.com/a")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	zero := 0
	_, err := service.Run(ctx, "wf-1", RunRequest{Priority: models.PriorityLow, MaxRetries: &zero})
	require.NoError(t, err)

	entries, err := persist.QueueRepository().DequeueReady(ctx, models.DefaultQueueName, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].MaxAttempts)
}

func TestExecutionRunDeferred(t *testing.T) {
	service, persist, _ := newExecutionService(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-1", "http://example.com/a")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	later := time.Now().UTC().Add(time.Hour)
	_, err := service.Run(ctx, "wf-1", RunRequest{Priority: models.PriorityMedium, ScheduledFor: &later})
	require.NoError(t, err)

	// Not due yet, so the queue delivers nothing.
	entries, err := persist.QueueRepository().DequeueReady(ctx, models.DefaultQueueName, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)

	stats, err := service.QueueStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
}

func TestExecutionRunWorkflowNotFound(t *testing.T) {
	service, _, _ := newExecutionService(t)

	_, err := service.Run(t.Context(), "missing", RunRequest{Priority: models.PriorityMedium})
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestExecutionRunRejectsInvalidWorkflow(t *testing.T) {
	service, persist, _ := newExecutionService(t)
	ctx := t.Context()

	// Cycle between two action nodes.
	definition := testutil.Definition(
		testutil.WithID("wf-cyclic"),
		testutil.WithNodes(
			testutil.TriggerNode("start"),
			testutil.HTTPNode("a", "http://example.com/a"),
			testutil.HTTPNode("b", "http://example.com/b"),
		),
		testutil.WithEdges(
			testutil.Edge("start", "a"),
			testutil.Edge("a", "b"),
			testutil.Edge("b", "a"),
		),
	)
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	_, err := service.Run(ctx, "wf-cyclic", RunRequest{Priority: models.PriorityMedium})
	require.Error(t, err)

	// Synchronous rejection leaves no execution behind.
	executions, listErr := service.List(ctx, persistence.ListExecutionsOptions{WorkflowID: "wf-cyclic"})
	require.NoError(t, listErr)
	assert.Empty(t, executions)
}

func TestExecutionCancelQueued(t *testing.T) {
	service, persist, _ := newExecutionService(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-1", "http://example.com/a")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	execution, err := service.Run(ctx, "wf-1", RunRequest{Priority: models.PriorityMedium})
	require.NoError(t, err)

	cancelled, err := service.Cancel(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CompletedAt)
}

func TestExecutionCancelTerminalConflict(t *testing.T) {
	service, persist, _ := newExecutionService(t)
	ctx := t.Context()

	now := time.Now().UTC()
	execution := &models.Execution{
		ID:          "done-1",
		WorkflowID:  "wf-1",
		Status:      models.ExecutionStatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
		CompletedAt: &now,
	}
	require.NoError(t, persist.ExecutionRepository().Create(ctx, execution))

	_, err := service.Cancel(ctx, "done-1")
	assert.ErrorIs(t, err, ErrExecutionTerminal)
	assert.True(t, IsConflictError(err))
}

func TestExecutionLogsUnknownExecution(t *testing.T) {
	service, _, _ := newExecutionService(t)

	_, err := service.Logs(t.Context(), "missing")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestExecutionRunValidationErrorShape(t *testing.T) {
	service, persist, _ := newExecutionService(t)
	ctx := t.Context()

	definition := testutil.Definition(
		testutil.WithID("wf-no-trigger"),
		testutil.WithNodes(testutil.HTTPNode("only", "http://example.com/a")),
	)
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	_, err := service.Run(ctx, "wf-no-trigger", RunRequest{Priority: models.PriorityMedium})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestExecutionRunEnqueueFailure(t *testing.T) {
	base := file.NewPersistence(t.TempDir())

	queue := &mocks.MockQueueRepository{}
	queue.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("queue unavailable"))

	persist := &repoOverride{Persistence: base, queue: queue}
	service, eventBus := buildExecutionService(t, persist)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-1", "http://example.com/a")
	require.NoError(t, base.WorkflowRepository().Save(ctx, definition))

	_, err := service.Run(ctx, "wf-1", RunRequest{Priority: models.PriorityMedium})
	require.ErrorContains(t, err, "failed to enqueue execution")

	queue.AssertExpectations(t)
	eventBus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutionCancelUpdateFailure(t *testing.T) {
	base := file.NewPersistence(t.TempDir())

	queued := &models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusQueued,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	executions := &mocks.MockExecutionRepository{}
	executions.On("GetByID", mock.Anything, "exec-1").Return(queued, nil)
	executions.On("Update", mock.Anything, mock.Anything).Return(errors.New("store unavailable"))

	persist := &repoOverride{Persistence: base, executions: executions}
	service, _ := buildExecutionService(t, persist)

	_, err := service.Cancel(t.Context(), "exec-1")
	require.ErrorContains(t, err, "failed to cancel execution")

	executions.AssertExpectations(t)
}
