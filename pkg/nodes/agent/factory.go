package agent

import (
	"context"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
)

// AgentNodeFactory creates AgentNode instances bound to the runtime endpoint.
type AgentNodeFactory struct {
	deps protocol.Dependencies
}

// NewAgentNodeFactory creates a new agent node factory.
func NewAgentNodeFactory(deps protocol.Dependencies) protocol.NodeFactory {
	return &AgentNodeFactory{deps: deps}
}

// Create creates a new AgentNode instance.
func (f *AgentNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewAgentNode(id, f.deps.AgentEndpoint, config)
}

// Type returns the node type served by this factory.
func (f *AgentNodeFactory) Type() string {
	return string(models.NodeTypeAgent)
}

// Name returns the factory name.
func (f *AgentNodeFactory) Name() string {
	return "Agent"
}

// Description returns the factory description.
func (f *AgentNodeFactory) Description() string {
	return "Submits a task to the agent runtime and waits for the result"
}

// Schema returns the JSON schema for agent node configuration.
func (f *AgentNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "Task prompt. Supports templating",
				"examples": []string{
					"Summarize the order {{.trigger.order_id}} for support",
					"Classify this message: {{.nodes.fetch.output.body}}",
				},
			},
			"model": map[string]any{
				"type":        "string",
				"description": "Runtime model hint",
			},
			"variables": map[string]any{
				"type":        "object",
				"description": "Extra task variables. String values support templating",
			},
			"endpoint": map[string]any{
				"type":        "string",
				"description": "Overrides the configured runtime endpoint",
			},
			"timeout_seconds": map[string]any{
				"type":        "number",
				"description": "Bounded wait for the task, in seconds",
				"default":     60,
			},
		},
		"required": []string{"prompt"},
	}
}
