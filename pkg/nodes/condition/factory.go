package condition

import (
	"context"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
)

// ConditionNodeFactory creates ConditionNode instances.
type ConditionNodeFactory struct{}

// NewConditionNodeFactory creates a new condition node factory.
func NewConditionNodeFactory() protocol.NodeFactory {
	return &ConditionNodeFactory{}
}

// Create creates a new ConditionNode instance.
func (f *ConditionNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewConditionNode(id, config)
}

// Type returns the node type served by this factory.
func (f *ConditionNodeFactory) Type() string {
	return string(models.NodeTypeCondition)
}

// Name returns the factory name.
func (f *ConditionNodeFactory) Name() string {
	return "Condition"
}

// Description returns the factory description.
func (f *ConditionNodeFactory) Description() string {
	return "Evaluates a boolean expression against the execution context"
}

// Schema returns the JSON schema for condition node configuration.
func (f *ConditionNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Boolean expression over the execution context",
				"examples": []string{
					`variables.status == "active"`,
					"trigger.amount > 100 && trigger.amount <= 5000",
					"nodes.fetch.output.status_code == 200",
				},
			},
		},
		"required": []string{"expression"},
	}
}
