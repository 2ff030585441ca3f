// Package models defines the core domain models for the workflow execution engine.
package models

import "time"

// NodeType identifies the execution strategy used for a workflow node.
type NodeType string

const (
	NodeTypeTrigger     NodeType = "trigger"     // Entry point, passes trigger data through
	NodeTypeAction      NodeType = "action"      // Side-effecting step, sub-typed by action_type
	NodeTypeCondition   NodeType = "condition"   // Evaluates a boolean expression
	NodeTypeIntegration NodeType = "integration" // Calls a named external service
	NodeTypeAgent       NodeType = "agent"       // Delegates a task to an agent runtime
)

// Node is a single step of a workflow definition. Config carries the
// strategy-specific settings, for action nodes including the action_type
// sub-strategy selector.
type Node struct {
	ID     string         `json:"id"   validate:"required"`
	Type   NodeType       `json:"type" validate:"required"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config,omitempty"`
}

// Edge connects two nodes, optionally gated by a condition expression
// evaluated against the execution context. An edge without a condition is
// always traversed.
type Edge struct {
	ID        string `json:"id"`
	Source    string `json:"source" validate:"required"`
	Target    string `json:"target" validate:"required"`
	Condition string `json:"condition,omitempty"`
}

// WorkflowDefinition is the declarative description of a workflow: nodes plus
// the edges that order them. Definitions are authored through the API and are
// read-only to the engine while executions run.
type WorkflowDefinition struct {
	ID          string         `json:"id"`
	Name        string         `json:"name" validate:"required,min=3"`
	Description string         `json:"description"`
	Nodes       []*Node        `json:"nodes"`
	Edges       []*Edge        `json:"edges"`
	Variables   map[string]any `json:"variables,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	// ContinueOnFailure disables the default stop-on-failure policy: failed
	// nodes no longer halt the whole execution, only their dependents.
	ContinueOnFailure bool `json:"continue_on_failure,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NodeByID returns the node with the given id, or nil when absent.
func (w *WorkflowDefinition) NodeByID(id string) *Node {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// EntryNodes returns the nodes without inbound edges, in declaration order.
func (w *WorkflowDefinition) EntryNodes() []*Node {
	hasInbound := make(map[string]bool, len(w.Nodes))
	for _, edge := range w.Edges {
		hasInbound[edge.Target] = true
	}

	var entries []*Node

	for _, node := range w.Nodes {
		if !hasInbound[node.ID] {
			entries = append(entries, node)
		}
	}

	return entries
}
