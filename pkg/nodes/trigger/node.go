// Package trigger provides the trigger node implementation for workflow execution.
package trigger

import (
	"context"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
)

// TriggerNode implements the Node interface for workflow entry points. It
// passes the run's trigger data through unchanged so downstream nodes can
// address it as nodes.<id>.output.
type TriggerNode struct {
	id string
}

// NewTriggerNode creates a new trigger node.
func NewTriggerNode(id string, _ map[string]any) (*TriggerNode, error) {
	return &TriggerNode{id: id}, nil
}

// Execute returns the seeded trigger data as the node output.
func (n *TriggerNode) Execute(_ context.Context, _ *models.ExecutionContext, input map[string]any) (*protocol.Result, error) {
	if input == nil {
		input = map[string]any{}
	}

	return &protocol.Result{Data: input}, nil
}
