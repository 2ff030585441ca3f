package delay

import (
	"github.com/dukex/cascade/pkg/protocol"
)

// DelayActionFactory creates DelayAction instances.
type DelayActionFactory struct{}

// NewDelayActionFactory creates a new delay action factory.
func NewDelayActionFactory() protocol.ActionFactory {
	return &DelayActionFactory{}
}

// Create creates a new DelayAction instance.
func (f *DelayActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewDelayAction(config)
}

// ActionType returns the action_type served by this factory.
func (f *DelayActionFactory) ActionType() string {
	return "delay"
}

// Schema returns the JSON schema for delay action configuration.
func (f *DelayActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration_ms": map[string]any{
				"type":        "number",
				"description": "How long to wait, in milliseconds",
				"minimum":     0,
				"maximum":     300000,
			},
		},
		"required": []string{"duration_ms"},
	}
}
