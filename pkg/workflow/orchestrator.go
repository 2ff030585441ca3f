package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/cascade/pkg/eventbus"
	"github.com/dukex/cascade/pkg/events"
	"github.com/dukex/cascade/pkg/expr"
	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/otelhelper"
	"github.com/dukex/cascade/pkg/persistence"
	"github.com/dukex/cascade/pkg/protocol"
)

// Orchestrator drives a single execution through waves of ready nodes until
// every plan node reaches a terminal status. Node strategies run concurrently
// within a wave and never write shared state; the orchestrator merges their
// outputs serially after the wave converges.
type Orchestrator struct {
	dispatcher  *Dispatcher
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	workerID    string
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewOrchestrator(
	dispatcher *Dispatcher,
	persist persistence.Persistence,
	eventBus eventbus.EventPublisher,
	workerID string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		dispatcher:  dispatcher,
		persistence: persist,
		eventBus:    eventBus,
		workerID:    workerID,
		logger:      logger.With("module", "orchestrator", "worker_id", workerID),
		tracer:      otel.Tracer("cascade/workflow"),
	}
}

type waveResult struct {
	node   *models.PlanNode
	result *protocol.Result
	err    error
}

// Run executes the plan until the execution reaches a terminal status,
// mutating the execution in place and persisting it after every node
// transition. attempt is the delivery attempt of the queue entry that carried
// the execution, starting at 1.
//
// A nil return means the execution finished as completed or cancelled. A
// non-nil return means either the execution failed (node failure under
// stop-on-failure, a deadlocked graph, failed nodes under
// continue-on-failure) or the surrounding context was cancelled before the
// run could finish; in the latter case the execution is left running and
// resumable.
func (o *Orchestrator) Run(ctx context.Context, workflow *models.WorkflowDefinition, execution *models.Execution, attempt int) error {
	logger := o.logger.With("execution_id", execution.ID, "workflow_id", execution.WorkflowID)

	ctx, span := o.tracer.Start(ctx, "orchestrator.run", trace.WithAttributes(
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.WorkflowIDKey, execution.WorkflowID),
	))
	defer span.End()

	if execution.Status.IsTerminal() && execution.Status != models.ExecutionStatusCancelled {
		logger.WarnContext(ctx, "Execution is already terminal, nothing to run", "status", execution.Status)

		return nil
	}

	if execution.Status == models.ExecutionStatusCancelled || o.cancelFlagged(ctx, execution) {
		logger.InfoContext(ctx, "Execution was cancelled before it started")
		o.skipRemainingPending(ctx, execution, "execution cancelled")
		o.finalize(ctx, logger, execution, models.ExecutionStatusCancelled)

		return nil
	}

	if len(execution.Plan) == 0 {
		plan, err := NewPlanner().BuildPlan(workflow, execution.TriggerData)
		if err != nil {
			execution.ErrorDetails = &models.ErrorDetails{Message: err.Error()}
			o.finalize(ctx, logger, execution, models.ExecutionStatusFailed)

			return fmt.Errorf("failed to build execution plan: %w", err)
		}

		execution.Plan = plan
	}

	if execution.Variables == nil {
		execution.Variables = make(map[string]any, len(workflow.Variables))
	}

	for key, value := range workflow.Variables {
		if _, ok := execution.Variables[key]; !ok {
			execution.Variables[key] = value
		}
	}

	now := time.Now().UTC()
	if execution.StartedAt == nil {
		execution.StartedAt = &now
	}

	execution.Status = models.ExecutionStatusRunning
	o.persistExecution(ctx, execution)
	o.appendLog(ctx, execution, "execution.started", "", "execution started", map[string]any{
		"worker_id": o.workerID,
		"attempt":   attempt,
	})

	startedEvent := events.ExecutionStarted{
		BaseEvent:    o.baseEvent(events.ExecutionStartedEvent, execution),
		ExecutionID:  execution.ID,
		WorkflowName: workflow.Name,
		TriggerData:  execution.TriggerData,
		Variables:    execution.Variables,
		Attempt:      attempt,
	}
	o.publish(ctx, execution, startedEvent)

	ectx := &models.ExecutionContext{
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		TriggerData: execution.TriggerData,
		Variables:   execution.Variables,
		NodeResults: make(map[string]map[string]any, len(execution.Plan)),
		Metadata:    workflow.Metadata,
	}

	// Resumed executions keep the outputs of nodes completed on earlier
	// attempts.
	for _, node := range execution.Plan {
		if node.Status == models.NodeStatusCompleted {
			output := node.Output
			if output == nil {
				output = map[string]any{}
			}

			ectx.NodeResults[node.ID] = output
		}
	}

	wave := 0

	for {
		if err := ctx.Err(); err != nil {
			logger.WarnContext(ctx, "Run interrupted, leaving execution resumable", "error", err)

			return fmt.Errorf("failed to finish execution '%s': %w", execution.ID, err)
		}

		if o.cancelFlagged(ctx, execution) {
			logger.InfoContext(ctx, "Execution flagged cancelled, skipping remaining nodes", "wave", wave)
			o.skipRemainingPending(ctx, execution, "execution cancelled")
			o.finalize(ctx, logger, execution, models.ExecutionStatusCancelled)

			return nil
		}

		ready, skipped := o.advance(ctx, workflow, execution, ectx)

		for _, node := range skipped {
			o.markSkipped(ctx, execution, node, "no inbound edge from a completed node was satisfied")
		}

		if len(ready) == 0 {
			pending := pendingNodeIDs(execution)
			if len(pending) == 0 {
				break
			}

			if len(skipped) > 0 {
				// The skip may cascade and unlock or skip more nodes on
				// the next pass.
				continue
			}

			deadlock := &DeadlockError{ExecutionID: execution.ID, PendingNodes: pending}
			execution.ErrorDetails = &models.ErrorDetails{Message: deadlock.Error()}
			o.appendLog(ctx, execution, "execution.deadlocked", "", deadlock.Error(), map[string]any{"pending_nodes": pending})
			o.finalize(ctx, logger, execution, models.ExecutionStatusFailed)

			return deadlock
		}

		wave++
		ectx.Wave = wave

		results := o.runWave(ctx, logger, workflow, execution, ectx, ready, wave)
		failedNode, failedErr := o.mergeWave(ctx, execution, ectx, results)

		if failedErr != nil && !workflow.ContinueOnFailure {
			o.skipRemainingPending(ctx, execution, fmt.Sprintf("stopped after node '%s' failed", failedNode.ID))
			execution.ErrorDetails = &models.ErrorDetails{NodeID: failedNode.ID, Message: failedErr.Error()}
			o.finalize(ctx, logger, execution, models.ExecutionStatusFailed)

			return failedErr
		}
	}

	if failed := firstFailedNode(execution); failed != nil {
		if execution.ErrorDetails == nil {
			execution.ErrorDetails = &models.ErrorDetails{NodeID: failed.ID, Message: failed.Error}
		}

		o.finalize(ctx, logger, execution, models.ExecutionStatusFailed)

		return fmt.Errorf("execution '%s' finished with failed nodes: %s", execution.ID, failed.Error)
	}

	o.finalize(ctx, logger, execution, models.ExecutionStatusCompleted)

	return nil
}

// advance splits the pending nodes whose dependencies are all terminal into
// the ready set and the nodes to skip. A node with dependencies is ready only
// when at least one inbound edge comes from a completed source and its
// condition holds.
func (o *Orchestrator) advance(ctx context.Context, workflow *models.WorkflowDefinition, execution *models.Execution, ectx *models.ExecutionContext) (ready, skipped []*models.PlanNode) {
	statuses := make(map[string]models.NodeStatus, len(execution.Plan))
	for _, node := range execution.Plan {
		statuses[node.ID] = node.Status
	}

	document := ectx.Document()

	for _, node := range execution.Plan {
		if node.Status != models.NodeStatusPending {
			continue
		}

		blocked := false

		for _, dep := range node.Dependencies {
			if !statuses[dep].IsTerminal() {
				blocked = true

				break
			}
		}

		if blocked {
			continue
		}

		if len(node.Dependencies) == 0 || o.inboundSatisfied(ctx, workflow, execution, node.ID, statuses, document) {
			ready = append(ready, node)
		} else {
			skipped = append(skipped, node)
		}
	}

	return ready, skipped
}

// inboundSatisfied reports whether any inbound edge of the node originates
// from a completed source and carries no condition or one that evaluates
// true. A condition that fails to parse or evaluate counts as false and is
// recorded as a warning, never an error.
func (o *Orchestrator) inboundSatisfied(ctx context.Context, workflow *models.WorkflowDefinition, execution *models.Execution, nodeID string, statuses map[string]models.NodeStatus, document map[string]any) bool {
	for _, edge := range workflow.Edges {
		if edge.Target != nodeID {
			continue
		}

		if statuses[edge.Source] != models.NodeStatusCompleted {
			continue
		}

		if strings.TrimSpace(edge.Condition) == "" {
			return true
		}

		pass, err := expr.Evaluate(edge.Condition, document)
		if err != nil {
			o.logger.WarnContext(ctx, "Edge condition treated as false",
				"execution_id", execution.ID,
				"edge_id", edge.ID,
				"condition", edge.Condition,
				"error", err,
			)
			o.appendLog(ctx, execution, "edge.condition_warning", nodeID,
				fmt.Sprintf("condition on edge '%s' treated as false: %v", edge.ID, err),
				map[string]any{"edge_id": edge.ID, "condition": edge.Condition},
			)

			continue
		}

		if pass {
			return true
		}
	}

	return false
}

// runWave marks every ready node running, then dispatches them concurrently
// and waits for all of them. Results come back in launch order.
func (o *Orchestrator) runWave(ctx context.Context, logger *slog.Logger, workflow *models.WorkflowDefinition, execution *models.Execution, ectx *models.ExecutionContext, ready []*models.PlanNode, wave int) []waveResult {
	logger.InfoContext(ctx, "Launching wave", "wave", wave, "nodes", len(ready))

	for _, node := range ready {
		startedAt := time.Now().UTC()
		node.Status = models.NodeStatusRunning
		node.StartedAt = &startedAt

		o.persistExecution(ctx, execution)
		o.appendLog(ctx, execution, "node.started", node.ID, fmt.Sprintf("node '%s' started", node.ID), map[string]any{
			"node_type": node.Type,
			"wave":      wave,
		})

		o.publish(ctx, execution, events.NodeStarted{
			BaseEvent:   o.baseEvent(events.NodeStartedEvent, execution),
			ExecutionID: execution.ID,
			NodeID:      node.ID,
			NodeType:    string(node.Type),
			Wave:        wave,
		})
	}

	results := make([]waveResult, len(ready))

	var wg sync.WaitGroup

	for i, node := range ready {
		wg.Add(1)

		go func(i int, planNode *models.PlanNode) {
			defer wg.Done()

			nodeCtx, nodeSpan := o.tracer.Start(ctx, "orchestrator.node", trace.WithAttributes(
				attribute.String(otelhelper.ExecutionIDKey, execution.ID),
				attribute.String(otelhelper.NodeIDKey, planNode.ID),
				attribute.String(otelhelper.NodeTypeKey, string(planNode.Type)),
				attribute.Int(otelhelper.WaveKey, wave),
			))
			defer nodeSpan.End()

			definition := workflow.NodeByID(planNode.ID)
			if definition == nil {
				err := &NodeExecutionError{
					NodeID: planNode.ID,
					Cause:  fmt.Errorf("node '%s' is not part of workflow '%s'", planNode.ID, workflow.ID),
				}
				otelhelper.SetError(nodeSpan, err)
				results[i] = waveResult{node: planNode, err: err}

				return
			}

			result, err := o.dispatcher.Dispatch(nodeCtx, definition, planNode.Input, ectx)
			if err != nil {
				otelhelper.SetError(nodeSpan, err)
			}

			results[i] = waveResult{node: planNode, result: result, err: err}
		}(i, node)
	}

	wg.Wait()

	return results
}

// mergeWave folds the wave results into the execution serially, in launch
// order: node bookkeeping, metrics, then the deep merge of outputs into the
// shared variables. Returns the first failed node of the wave, if any.
func (o *Orchestrator) mergeWave(ctx context.Context, execution *models.Execution, ectx *models.ExecutionContext, results []waveResult) (*models.PlanNode, error) {
	var (
		failedNode *models.PlanNode
		failedErr  error
	)

	for _, wr := range results {
		node := wr.node
		completedAt := time.Now().UTC()
		node.CompletedAt = &completedAt

		if node.StartedAt != nil {
			node.DurationMS = completedAt.Sub(*node.StartedAt).Milliseconds()
		}

		execution.Metrics.NodesExecuted++

		if wr.err != nil {
			node.Status = models.NodeStatusFailed
			node.Error = wr.err.Error()

			if failedErr == nil {
				failedNode, failedErr = node, wr.err
			}

			o.persistExecution(ctx, execution)
			o.appendLog(ctx, execution, "node.failed", node.ID, node.Error, map[string]any{"duration_ms": node.DurationMS})
			o.publish(ctx, execution, events.NodeFailed{
				BaseEvent:   o.baseEvent(events.NodeFailedEvent, execution),
				ExecutionID: execution.ID,
				NodeID:      node.ID,
				Error:       node.Error,
				DurationMs:  node.DurationMS,
			})

			continue
		}

		node.Status = models.NodeStatusCompleted
		node.Output = wr.result.Data

		execution.Metrics.ExternalCallsMade += wr.result.ExternalCalls
		execution.Metrics.ResourceUnitsConsumed += wr.result.ResourceUnits

		if len(wr.result.Data) > 0 {
			if err := mergo.Merge(&execution.Variables, wr.result.Data, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
				o.logger.ErrorContext(ctx, "Failed to merge node output into variables",
					"execution_id", execution.ID, "node_id", node.ID, "error", err)
			}
		}

		output := wr.result.Data
		if output == nil {
			output = map[string]any{}
		}

		ectx.NodeResults[node.ID] = output
		ectx.Variables = execution.Variables

		o.persistExecution(ctx, execution)
		o.appendLog(ctx, execution, "node.completed", node.ID, fmt.Sprintf("node '%s' completed", node.ID), map[string]any{"duration_ms": node.DurationMS})
		o.publish(ctx, execution, events.NodeCompleted{
			BaseEvent:   o.baseEvent(events.NodeCompletedEvent, execution),
			ExecutionID: execution.ID,
			NodeID:      node.ID,
			Status:      node.Status,
			OutputData:  node.Output,
			DurationMs:  node.DurationMS,
			CompletedAt: completedAt,
		})
	}

	return failedNode, failedErr
}

func (o *Orchestrator) markSkipped(ctx context.Context, execution *models.Execution, node *models.PlanNode, reason string) {
	completedAt := time.Now().UTC()
	node.Status = models.NodeStatusSkipped
	node.CompletedAt = &completedAt

	o.persistExecution(ctx, execution)
	o.appendLog(ctx, execution, "node.skipped", node.ID, fmt.Sprintf("node '%s' skipped: %s", node.ID, reason), nil)
	o.publish(ctx, execution, events.NodeSkipped{
		BaseEvent:   o.baseEvent(events.NodeSkippedEvent, execution),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		Reason:      reason,
	})
}

func (o *Orchestrator) skipRemainingPending(ctx context.Context, execution *models.Execution, reason string) {
	for _, node := range execution.Plan {
		if node.Status == models.NodeStatusPending {
			o.markSkipped(ctx, execution, node, reason)
		}
	}
}

// finalize computes the terminal metrics, persists the execution and
// publishes the terminal lifecycle event.
func (o *Orchestrator) finalize(ctx context.Context, logger *slog.Logger, execution *models.Execution, status models.ExecutionStatus) {
	completedAt := time.Now().UTC()
	execution.Status = status
	execution.CompletedAt = &completedAt

	if execution.StartedAt != nil {
		execution.Metrics.TotalDurationMS = completedAt.Sub(*execution.StartedAt).Milliseconds()
	}

	completed, executed := 0, 0

	for _, node := range execution.Plan {
		switch node.Status {
		case models.NodeStatusCompleted:
			completed++
			executed++
		case models.NodeStatusFailed:
			executed++
		}
	}

	execution.Metrics.NodesExecuted = executed
	if len(execution.Plan) > 0 {
		execution.Metrics.SuccessRate = float64(completed) / float64(len(execution.Plan))
	}

	o.persistExecution(ctx, execution)
	o.appendLog(ctx, execution, "execution."+string(status), "", fmt.Sprintf("execution finished with status %s", status), map[string]any{
		"nodes_executed":    executed,
		"success_rate":      execution.Metrics.SuccessRate,
		"total_duration_ms": execution.Metrics.TotalDurationMS,
	})

	switch status {
	case models.ExecutionStatusCompleted:
		o.publish(ctx, execution, events.ExecutionCompleted{
			BaseEvent:     o.baseEvent(events.ExecutionCompletedEvent, execution),
			ExecutionID:   execution.ID,
			Status:        string(status),
			DurationMs:    execution.Metrics.TotalDurationMS,
			NodesExecuted: executed,
			SuccessRate:   execution.Metrics.SuccessRate,
			Variables:     execution.Variables,
		})
	case models.ExecutionStatusFailed:
		event := events.ExecutionFailed{
			BaseEvent:     o.baseEvent(events.ExecutionFailedEvent, execution),
			ExecutionID:   execution.ID,
			Status:        string(status),
			DurationMs:    execution.Metrics.TotalDurationMS,
			NodesExecuted: executed,
		}
		if execution.ErrorDetails != nil {
			event.Error = &events.ExecutionError{
				NodeID:  execution.ErrorDetails.NodeID,
				Message: execution.ErrorDetails.Message,
			}
		}

		o.publish(ctx, execution, event)
	case models.ExecutionStatusCancelled:
		o.publish(ctx, execution, events.ExecutionCancelled{
			BaseEvent:     o.baseEvent(events.ExecutionCancelledEvent, execution),
			ExecutionID:   execution.ID,
			Status:        string(status),
			DurationMs:    execution.Metrics.TotalDurationMS,
			NodesExecuted: executed,
		})
	case models.ExecutionStatusQueued, models.ExecutionStatusRunning:
		// finalize is only called with terminal statuses.
	}

	logger.InfoContext(ctx, "Execution finished",
		"status", status,
		"nodes_executed", executed,
		"success_rate", execution.Metrics.SuccessRate,
		"total_duration_ms", execution.Metrics.TotalDurationMS,
	)
}

// cancelFlagged re-reads the stored execution to pick up a cancellation
// requested by an external caller while the run is in flight.
func (o *Orchestrator) cancelFlagged(ctx context.Context, execution *models.Execution) bool {
	stored, err := o.persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	if err != nil {
		if !persistence.IsExecutionNotFound(err) {
			o.logger.WarnContext(ctx, "Failed to refresh execution status",
				"execution_id", execution.ID, "error", err)
		}

		return false
	}

	return stored.Status == models.ExecutionStatusCancelled
}

// persistExecution writes the execution through the gateway. An externally
// set cancel flag is never overwritten by an in-flight running update.
func (o *Orchestrator) persistExecution(ctx context.Context, execution *models.Execution) {
	repo := o.persistence.ExecutionRepository()

	if execution.Status == models.ExecutionStatusRunning {
		if stored, err := repo.GetByID(ctx, execution.ID); err == nil && stored.Status == models.ExecutionStatusCancelled {
			execution.Status = models.ExecutionStatusCancelled
		}
	}

	execution.UpdatedAt = time.Now().UTC()

	if err := repo.Update(ctx, execution); err != nil {
		o.logger.ErrorContext(ctx, "Failed to persist execution",
			"execution_id", execution.ID, "status", execution.Status, "error", err)
	}
}

func (o *Orchestrator) appendLog(ctx context.Context, execution *models.Execution, eventType, nodeID, message string, metadata map[string]any) {
	entry := &models.ExecutionLog{
		ID:          uuid.New().String(),
		ExecutionID: execution.ID,
		EventType:   eventType,
		NodeID:      nodeID,
		Message:     message,
		Metadata:    metadata,
		Timestamp:   time.Now().UTC(),
	}

	if err := o.persistence.ExecutionLogRepository().Append(ctx, entry); err != nil {
		o.logger.WarnContext(ctx, "Failed to append execution log",
			"execution_id", execution.ID, "event_type", eventType, "error", err)
	}
}

func (o *Orchestrator) baseEvent(eventType events.EventType, execution *models.Execution) events.BaseEvent {
	base := events.NewBaseEvent(eventType, execution.WorkflowID)
	base.WorkerID = o.workerID

	return base
}

func (o *Orchestrator) publish(ctx context.Context, execution *models.Execution, event any) {
	if o.eventBus == nil {
		return
	}

	if err := o.eventBus.Publish(ctx, execution.ID, event); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish event",
			"execution_id", execution.ID, "error", err)
	}
}

func pendingNodeIDs(execution *models.Execution) []string {
	var pending []string

	for _, node := range execution.Plan {
		if node.Status == models.NodeStatusPending {
			pending = append(pending, node.ID)
		}
	}

	return pending
}

func firstFailedNode(execution *models.Execution) *models.PlanNode {
	for _, node := range execution.Plan {
		if node.Status == models.NodeStatusFailed {
			return node
		}
	}

	return nil
}
