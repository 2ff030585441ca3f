// Package integration provides the integration node implementation for
// workflow execution. Integration nodes call named external service endpoints
// with an auth header resolved from configuration.
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
	"github.com/dukex/cascade/pkg/template"
)

// IntegrationNode implements the Node interface for calls to named external
// services.
type IntegrationNode struct {
	id     string
	config IntegrationConfig
	client *http.Client
}

// IntegrationConfig defines the configuration for integration nodes.
type IntegrationConfig struct {
	Service  string            `json:"service"`
	Endpoint string            `json:"endpoint"`
	Method   string            `json:"method"`
	Headers  map[string]string `json:"headers"`
	Body     string            `json:"body,omitempty"`
	AuthEnv  string            `json:"auth_env,omitempty"`
	Auth     string            `json:"auth_token,omitempty"`
}

// NewIntegrationNode creates a new integration node.
func NewIntegrationNode(id string, config map[string]any) (*IntegrationNode, error) {
	integrationConfig := IntegrationConfig{
		Method:  "POST",
		Headers: make(map[string]string),
	}

	if service, ok := config["service"].(string); ok {
		integrationConfig.Service = service
	} else {
		return nil, errors.New("missing required field 'service'")
	}

	if endpoint, ok := config["endpoint"].(string); ok {
		integrationConfig.Endpoint = endpoint
	} else {
		return nil, errors.New("missing required field 'endpoint'")
	}

	if method, ok := config["method"].(string); ok {
		integrationConfig.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if headerValue, ok := v.(string); ok {
				integrationConfig.Headers[k] = headerValue
			}
		}
	}

	if body, ok := config["body"].(string); ok {
		integrationConfig.Body = body
	}

	if authEnv, ok := config["auth_env"].(string); ok {
		integrationConfig.AuthEnv = authEnv
	}

	if auth, ok := config["auth_token"].(string); ok {
		integrationConfig.Auth = auth
	}

	return &IntegrationNode{
		id:     id,
		config: integrationConfig,
		client: &http.Client{},
	}, nil
}

// Execute performs the configured call against the service endpoint.
func (n *IntegrationNode) Execute(ctx context.Context, ectx *models.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
	endpoint, err := renderString(n.config.Endpoint, ectx)
	if err != nil {
		return nil, fmt.Errorf("failed to render endpoint template: %w", err)
	}

	body := ""
	if n.config.Body != "" {
		body, err = renderString(n.config.Body, ectx)
		if err != nil {
			return nil, fmt.Errorf("failed to render body template: %w", err)
		}
	}

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, n.config.Method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range n.config.Headers {
		rendered, err := renderString(value, ectx)
		if err != nil {
			rendered = value
		}

		req.Header.Set(key, rendered)
	}

	if token := n.authToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call to service '%s' failed: %w", n.config.Service, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from service '%s': %w", n.config.Service, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("service '%s' returned HTTP %d: %s", n.config.Service, resp.StatusCode, string(respBody))
	}

	data := map[string]any{
		"service":     n.config.Service,
		"status_code": resp.StatusCode,
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		data["json"] = jsonBody
	}

	return &protocol.Result{
		Data:          data,
		ExternalCalls: 1,
	}, nil
}

// authToken resolves the bearer token, preferring the environment indirection.
func (n *IntegrationNode) authToken() string {
	if n.config.AuthEnv != "" {
		if token := os.Getenv(n.config.AuthEnv); token != "" {
			return token
		}
	}

	return n.config.Auth
}

func renderString(input string, ectx *models.ExecutionContext) (string, error) {
	if ectx == nil || !strings.Contains(input, "{{") {
		return input, nil
	}

	rendered, err := template.RenderWithContext(input, ectx)
	if err != nil {
		return "", err
	}

	if value, ok := rendered.(string); ok {
		return value, nil
	}

	return fmt.Sprintf("%v", rendered), nil
}
