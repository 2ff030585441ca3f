// Package events defines event types and structures for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukex/cascade/pkg/models"
)

type EventType string

// Kafka topic carrying all cascade events.
const Topic = "cascade.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionRequestedEvent EventType = "execution.requested"
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	// Node lifecycle events.
	NodeStartedEvent   EventType = "node.started"
	NodeCompletedEvent EventType = "node.completed"
	NodeFailedEvent    EventType = "node.failed"
	NodeSkippedEvent   EventType = "node.skipped"

	// Custom events emitted by publish actions.
	MessagePublishedEvent EventType = "message.published"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ExecutionRequested is published when a run request is enqueued. Workers use
// it as a nudge to poll the queue.
type ExecutionRequested struct {
	BaseEvent

	ExecutionID  string     `json:"execution_id"`
	Priority     string     `json:"priority"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	RequesterID  string     `json:"requester_id,omitempty"`
	TenantID     string     `json:"tenant_id,omitempty"`
}

func (e ExecutionRequested) GetType() EventType {
	return ExecutionRequestedEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID  string         `json:"execution_id"`
	WorkflowName string         `json:"workflow_name"`
	TriggerData  map[string]any `json:"trigger_data,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`
	Attempt      int            `json:"attempt"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string         `json:"execution_id"`
	Status        string         `json:"status"`
	DurationMs    int64          `json:"duration_ms"`
	NodesExecuted int            `json:"nodes_executed"`
	SuccessRate   float64        `json:"success_rate"`
	Variables     map[string]any `json:"variables,omitempty"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID   string          `json:"execution_id"`
	Status        string          `json:"status"`
	DurationMs    int64           `json:"duration_ms"`
	Error         *ExecutionError `json:"error,omitempty"`
	NodesExecuted int             `json:"nodes_executed"`
}

type ExecutionError struct {
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	Status        string `json:"status"`
	DurationMs    int64  `json:"duration_ms"`
	Reason        string `json:"reason,omitempty"`
	NodesExecuted int    `json:"nodes_executed"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

// Node lifecycle events

type NodeStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	NodeType    string `json:"node_type"`
	Wave        int    `json:"wave"`
}

func (e NodeStarted) GetType() EventType {
	return NodeStartedEvent
}

type NodeCompleted struct {
	BaseEvent

	ExecutionID string            `json:"execution_id"`
	NodeID      string            `json:"node_id"`
	Status      models.NodeStatus `json:"status"`
	OutputData  map[string]any    `json:"output_data,omitempty"`
	DurationMs  int64             `json:"duration_ms"`
	CompletedAt time.Time         `json:"completed_at"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	Error       string `json:"error"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

type NodeSkipped struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	Reason      string `json:"reason,omitempty"`
}

func (e NodeSkipped) GetType() EventType {
	return NodeSkippedEvent
}

// MessagePublished is the custom event emitted by publish actions.
type MessagePublished struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id,omitempty"`
	EventName   string         `json:"event_name"`
	Data        map[string]any `json:"data,omitempty"`
}

func (e MessagePublished) GetType() EventType {
	return MessagePublishedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
