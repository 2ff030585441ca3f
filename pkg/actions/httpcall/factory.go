package httpcall

import (
	"github.com/dukex/cascade/pkg/protocol"
)

// HTTPCallActionFactory creates HTTPCallAction instances.
type HTTPCallActionFactory struct{}

// NewHTTPCallActionFactory creates a new HTTP call action factory.
func NewHTTPCallActionFactory() protocol.ActionFactory {
	return &HTTPCallActionFactory{}
}

// Create creates a new HTTPCallAction instance.
func (f *HTTPCallActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewHTTPCallAction(config)
}

// ActionType returns the action_type served by this factory.
func (f *HTTPCallActionFactory) ActionType() string {
	return "http_call"
}

// Schema returns the JSON schema for HTTP call configuration.
func (f *HTTPCallActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "URL to request. Supports templating before dispatch",
				"examples": []string{
					"https://api.example.com/users",
					"https://{{.variables.api_host}}/orders/{{.trigger.order_id}}",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "HTTP headers. Values support templating",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body. Supports templating",
			},
		},
		"required": []string{"url"},
	}
}
