package models

import "time"

// ExecutionStatus represents the lifecycle state of an execution.
type ExecutionStatus string

const (
	ExecutionStatusQueued    ExecutionStatus = "queued"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether no further status transitions may occur.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// NodeStatus represents the lifecycle state of a single plan node.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSkipped   NodeStatus = "skipped"
)

// IsTerminal reports whether the node finished in this status.
func (s NodeStatus) IsTerminal() bool {
	return s == NodeStatusCompleted || s == NodeStatusFailed || s == NodeStatusSkipped
}

// PlanNode is one entry of an execution plan: a definition node plus the
// dependency set derived from its inbound edges and the per-run bookkeeping.
// A node leaves pending only once every dependency is terminal.
type PlanNode struct {
	ID           string         `json:"id"`
	Type         NodeType       `json:"type"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Status       NodeStatus     `json:"status"`
	Input        map[string]any `json:"input,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
	Wave         int            `json:"wave"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	DurationMS   int64          `json:"duration_ms,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// ErrorDetails identifies the node that caused a failed execution.
type ErrorDetails struct {
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

// ExecutionMetrics aggregates per-run counters. Counters accumulate while the
// run progresses; SuccessRate and TotalDurationMS are computed once at
// finalization.
type ExecutionMetrics struct {
	NodesExecuted         int     `json:"nodes_executed"`
	TotalDurationMS       int64   `json:"total_duration_ms"`
	ExternalCallsMade     int     `json:"external_calls_made"`
	ResourceUnitsConsumed int     `json:"resource_units_consumed"`
	SuccessRate           float64 `json:"success_rate"`
}

// Execution is one run of a workflow definition. It is owned by the scheduler
// until dispatch and by the orchestrator until it reaches a terminal status,
// after which it is an immutable audit record.
type Execution struct {
	ID           string           `json:"id"`
	WorkflowID   string           `json:"workflow_id"`
	TenantID     string           `json:"tenant_id,omitempty"`
	RequesterID  string           `json:"requester_id,omitempty"`
	Status       ExecutionStatus  `json:"status"`
	TriggerData  map[string]any   `json:"trigger_data,omitempty"`
	Variables    map[string]any   `json:"variables,omitempty"`
	Plan         []*PlanNode      `json:"plan,omitempty"`
	Metrics      ExecutionMetrics `json:"metrics"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	ErrorDetails *ErrorDetails    `json:"error_details,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// PlanNode returns the plan entry for the given node id, or nil.
func (e *Execution) PlanNode(id string) *PlanNode {
	for _, node := range e.Plan {
		if node.ID == id {
			return node
		}
	}

	return nil
}
