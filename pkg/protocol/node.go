// Package protocol defines the interfaces and contracts for pluggable nodes.
package protocol

import (
	"context"

	"github.com/dukex/cascade/pkg/models"
)

// Node is a single executable step of a workflow plan.
type Node interface {
	// Execute runs the node against the execution context. Input carries the
	// node's seeded plan input (trigger data for trigger nodes, the config
	// snapshot otherwise). Implementations must honor ctx cancellation.
	Execute(ctx context.Context, ectx *models.ExecutionContext, input map[string]any) (*Result, error)
}

// NodeFactory creates node instances and provides metadata about the node type.
type NodeFactory interface {
	// Create creates a new node instance with the given configuration
	Create(ctx context.Context, id string, config map[string]any) (Node, error)

	// Type returns the unique identifier for this node type
	Type() string

	// Name returns the human-readable name for this node type
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Schema returns the JSON schema for configuring this node
	Schema() map[string]any
}

// Result is what a node hands back to the orchestrator. Nodes never write
// shared state directly; outputs are merged serially after each wave.
type Result struct {
	// Data becomes the node's output document, addressable by downstream
	// nodes as nodes.<id>.output.<key>.
	Data map[string]any

	// ExternalCalls counts outbound calls made while executing.
	ExternalCalls int

	// ResourceUnits counts consumed capacity (agent tokens, storage bytes).
	ResourceUnits int
}
