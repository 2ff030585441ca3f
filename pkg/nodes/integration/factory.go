package integration

import (
	"context"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
)

// IntegrationNodeFactory creates IntegrationNode instances.
type IntegrationNodeFactory struct{}

// NewIntegrationNodeFactory creates a new integration node factory.
func NewIntegrationNodeFactory() protocol.NodeFactory {
	return &IntegrationNodeFactory{}
}

// Create creates a new IntegrationNode instance.
func (f *IntegrationNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewIntegrationNode(id, config)
}

// Type returns the node type served by this factory.
func (f *IntegrationNodeFactory) Type() string {
	return string(models.NodeTypeIntegration)
}

// Name returns the factory name.
func (f *IntegrationNodeFactory) Name() string {
	return "Integration"
}

// Description returns the factory description.
func (f *IntegrationNodeFactory) Description() string {
	return "Calls a named external service endpoint with resolved authentication"
}

// Schema returns the JSON schema for integration node configuration.
func (f *IntegrationNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"service": map[string]any{
				"type":        "string",
				"description": "Name of the external service, used in errors and logs",
				"examples":    []string{"github", "slack", "billing"},
			},
			"endpoint": map[string]any{
				"type":        "string",
				"description": "Endpoint URL. Supports templating",
				"examples": []string{
					"https://api.github.com/repos/{{.variables.repo}}/issues",
					"https://hooks.slack.com/services/{{.variables.slack_path}}",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"default":     "POST",
				"enum":        []string{"GET", "POST", "PUT", "DELETE", "PATCH"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Extra headers. Values support templating",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body. Supports templating",
			},
			"auth_env": map[string]any{
				"type":        "string",
				"description": "Environment variable holding the bearer token",
				"examples":    []string{"GITHUB_TOKEN", "SLACK_TOKEN"},
			},
			"auth_token": map[string]any{
				"type":        "string",
				"description": "Literal bearer token, used when auth_env is unset or empty",
			},
			"timeout_seconds": map[string]any{
				"type":        "number",
				"description": "Bounded wait for the call, in seconds",
				"default":     30,
			},
		},
		"required": []string{"service", "endpoint"},
	}
}
