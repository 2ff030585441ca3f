package models

import "time"

// ExecutionLog is one structured audit entry. The orchestrator appends one on
// every execution and node transition, so no outcome is silent.
type ExecutionLog struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	EventType   string         `json:"event_type"`
	NodeID      string         `json:"node_id,omitempty"`
	Message     string         `json:"message"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
