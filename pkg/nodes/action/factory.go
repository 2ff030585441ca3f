package action

import (
	"context"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
)

// ActionNodeFactory creates ActionNode instances bound to an action registry.
type ActionNodeFactory struct {
	actions protocol.ActionCreator
	deps    protocol.Dependencies
}

// NewActionNodeFactory creates a new action node factory.
func NewActionNodeFactory(actions protocol.ActionCreator, deps protocol.Dependencies) protocol.NodeFactory {
	return &ActionNodeFactory{actions: actions, deps: deps}
}

// Create creates a new ActionNode instance.
func (f *ActionNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewActionNode(id, config, f.actions, f.deps.Logger)
}

// Type returns the node type served by this factory.
func (f *ActionNodeFactory) Type() string {
	return string(models.NodeTypeAction)
}

// Name returns the factory name.
func (f *ActionNodeFactory) Name() string {
	return "Action"
}

// Description returns the factory description.
func (f *ActionNodeFactory) Description() string {
	return "Performs a side effect selected by action_type: http_call, storage, publish or delay"
}

// Schema returns the JSON schema for action node configuration.
func (f *ActionNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action_type": map[string]any{
				"type":        "string",
				"description": "Sub-strategy that performs the side effect",
				"examples":    []string{"http_call", "storage", "publish", "delay"},
			},
			"timeout_seconds": map[string]any{
				"type":             "number",
				"description":      "Bounded wait for the node, in seconds",
				"default":          30,
				"exclusiveMinimum": 0,
				"maximum":          300,
			},
		},
		"required": []string{"action_type"},
		"examples": []map[string]any{
			{
				"action_type": "http_call",
				"url":         "https://api.example.com/orders/{{.trigger.order_id}}",
				"method":      "GET",
			},
			{
				"action_type": "delay",
				"duration_ms": 1500,
			},
		},
	}
}
