package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
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
	"github.com/dukex/cascade/pkg/services"
	"github.com/dukex/cascade/pkg/testutil"
	"github.com/dukex/cascade/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, persistence.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())

	logger := log.Discard()
	reg := registry.NewRegistry(logger)

	deps := protocol.Dependencies{Logger: logger, StorageRoot: t.TempDir()}
	reg.RegisterDefaultNodes(deps)
	reg.RegisterDefaultActions(deps)

	eventBus := &mocks.MockEventBus{}
	eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(persist, reg),
		services.NewExecution(persist, reg, eventBus, logger),
		services.NewSchedule(persist),
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	web.RegisterRoutes(app, handlers)

	return app, persist
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, payload
}

func workflowBody(name string) web.WorkflowRequest {
	definition := testutil.LinearHTTPDefinition("", "http://example.com/notify")

	return web.WorkflowRequest{
		Name:  name,
		Nodes: definition.Nodes,
		Edges: definition.Edges,
	}
}

func TestCreateWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/", workflowBody("Order Pipeline"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Order Pipeline", created.Name)
}

func TestCreateWorkflowRejectsShortName(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows/", workflowBody("ab"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateWorkflowStructuralIssuesListed(t *testing.T) {
	app, _ := setupTestApp(t)

	// Well-formed request, invalid graph: nothing to trigger it.
	req := web.WorkflowRequest{
		Name:  "No Trigger",
		Nodes: []*models.Node{testutil.HTTPNode("only", "http://example.com/x")},
	}

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/", req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem struct {
		Type   string `json:"type"`
		Errors []struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Equal(t, "validation_error", problem.Type)
	assert.NotEmpty(t, problem.Errors)
}

func TestGetWorkflowNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/workflows/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var problem struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Equal(t, "not_found", problem.Type)
}

func TestUpdateWorkflowReplacesDefinition(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/", workflowBody("First Version"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = doJSON(t, app, http.MethodPut, "/workflows/"+created.ID, workflowBody("Second Version"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Second Version", updated.Name)
}

func TestDeleteWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/", workflowBody("Doomed Workflow"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &created))

	resp, _ = doJSON(t, app, http.MethodDelete, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestValidateWorkflowEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	valid := testutil.LinearHTTPDefinition("wf-check", "http://example.com/x")

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/validate", valid)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.ValidationResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)

	invalid := testutil.Definition(
		testutil.WithNodes(
			testutil.TriggerNode("start"),
			testutil.HTTPNode("a", "http://example.com/a"),
		),
		testutil.WithEdges(testutil.Edge("start", "ghost")),
	)

	resp, body = doJSON(t, app, http.MethodPost, "/workflows/validate", invalid)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, json.Unmarshal(body, &result))
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestRunWorkflow(t *testing.T) {
	app, persist := setupTestApp(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-run", "http://example.com/x")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/wf-run/run", map[string]any{
		"trigger_data": map[string]any{"order_id": "ord-1"},
		"priority":     "high",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var run web.RunResponse
	require.NoError(t, json.Unmarshal(body, &run))
	assert.NotEmpty(t, run.ExecutionID)
	assert.Equal(t, models.ExecutionStatusQueued, run.Status)

	stats, err := persist.QueueRepository().Stats(ctx, models.DefaultQueueName)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
}

func TestRunWorkflowEmptyBodyDefaults(t *testing.T) {
	app, persist := setupTestApp(t)

	definition := testutil.LinearHTTPDefinition("wf-run", "http://example.com/x")
	require.NoError(t, persist.WorkflowRepository().Save(t.Context(), definition))

	req := httptest.NewRequest(http.MethodPost, "/workflows/wf-run/run", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestRunWorkflowRejectsBadPriority(t *testing.T) {
	app, persist := setupTestApp(t)

	definition := testutil.LinearHTTPDefinition("wf-run", "http://example.com/x")
	require.NoError(t, persist.WorkflowRepository().Save(t.Context(), definition))

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows/wf-run/run", map[string]any{
		"priority": "urgent",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunWorkflowNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows/missing/run", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetExecutionAndLogs(t *testing.T) {
	app, persist := setupTestApp(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-run", "http://example.com/x")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/wf-run/run", map[string]any{})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var run web.RunResponse
	require.NoError(t, json.Unmarshal(body, &run))

	resp, body = doJSON(t, app, http.MethodGet, "/executions/"+run.ExecutionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var execution models.Execution
	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, "wf-run", execution.WorkflowID)

	resp, body = doJSON(t, app, http.MethodGet, "/executions/"+run.ExecutionID+"/logs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var logsResponse struct {
		ExecutionID string                 `json:"execution_id"`
		Logs        []*models.ExecutionLog `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(body, &logsResponse))
	assert.Equal(t, run.ExecutionID, logsResponse.ExecutionID)
	assert.NotEmpty(t, logsResponse.Logs)
}

func TestListExecutionsFiltered(t *testing.T) {
	app, persist := setupTestApp(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-run", "http://example.com/x")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows/wf-run/run", map[string]any{})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/executions/?workflow_id=wf-run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Executions []*models.Execution `json:"executions"`
		TotalCount int                 `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, 1, listing.TotalCount)

	resp, body = doJSON(t, app, http.MethodGet, "/executions/?workflow_id=other", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, 0, listing.TotalCount)
}

func TestCancelExecution(t *testing.T) {
	app, persist := setupTestApp(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-run", "http://example.com/x")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/wf-run/run", map[string]any{})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var run web.RunResponse
	require.NoError(t, json.Unmarshal(body, &run))

	resp, body = doJSON(t, app, http.MethodPost, "/executions/"+run.ExecutionID+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cancelled models.Execution
	require.NoError(t, json.Unmarshal(body, &cancelled))
	assert.Equal(t, models.ExecutionStatusCancelled, cancelled.Status)

	// Cancelling again conflicts: the execution is terminal now.
	resp, _ = doJSON(t, app, http.MethodPost, "/executions/"+run.ExecutionID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestScheduleEndpoints(t *testing.T) {
	app, persist := setupTestApp(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-sched", "http://example.com/x")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/wf-sched/schedules", map[string]any{
		"cron_expression": "0 6 * * *",
		"trigger_data":    map[string]any{"report": "daily"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var schedule models.Schedule
	require.NoError(t, json.Unmarshal(body, &schedule))
	assert.Equal(t, "wf-sched", schedule.WorkflowID)
	assert.True(t, schedule.Active)

	resp, body = doJSON(t, app, http.MethodGet, "/schedules", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Schedules  []*models.Schedule `json:"schedules"`
		TotalCount int                `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, 1, listing.TotalCount)

	resp, _ = doJSON(t, app, http.MethodDelete, "/schedules/"+schedule.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCreateScheduleRejectsBadCron(t *testing.T) {
	app, persist := setupTestApp(t)

	definition := testutil.LinearHTTPDefinition("wf-sched", "http://example.com/x")
	require.NoError(t, persist.WorkflowRepository().Save(t.Context(), definition))

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows/wf-sched/schedules", map[string]any{
		"cron_expression": "every tuesday",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueueStatsEndpoint(t *testing.T) {
	app, persist := setupTestApp(t)
	ctx := t.Context()

	definition := testutil.LinearHTTPDefinition("wf-run", "http://example.com/x")
	require.NoError(t, persist.WorkflowRepository().Save(ctx, definition))

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows/wf-run/run", map[string]any{})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/queue/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats models.QueueStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, models.DefaultQueueName, stats.QueueName)
	assert.Equal(t, 1, stats.Pending)
}

func TestHealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
}
