package trigger

import (
	"context"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
)

// TriggerNodeFactory creates TriggerNode instances.
type TriggerNodeFactory struct{}

// NewTriggerNodeFactory creates a new trigger node factory.
func NewTriggerNodeFactory() protocol.NodeFactory {
	return &TriggerNodeFactory{}
}

// Create creates a new TriggerNode instance.
func (f *TriggerNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewTriggerNode(id, config)
}

// Type returns the node type served by this factory.
func (f *TriggerNodeFactory) Type() string {
	return string(models.NodeTypeTrigger)
}

// Name returns the factory name.
func (f *TriggerNodeFactory) Name() string {
	return "Trigger"
}

// Description returns the factory description.
func (f *TriggerNodeFactory) Description() string {
	return "Entry point of a workflow, emits the run's trigger data unchanged"
}

// Schema returns the JSON schema for trigger node configuration.
func (f *TriggerNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"source": map[string]any{
				"type":        "string",
				"description": "Informational label of what fires this trigger",
				"examples":    []string{"webhook", "schedule", "manual"},
			},
		},
	}
}
