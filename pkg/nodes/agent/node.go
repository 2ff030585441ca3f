// Package agent provides the agent node implementation for workflow execution.
// Agent nodes submit a rendered task to the agent runtime and account consumed
// tokens as resource units.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
	"github.com/dukex/cascade/pkg/template"
)

// AgentNode implements the Node interface for agent task submission.
type AgentNode struct {
	id       string
	endpoint string
	config   AgentConfig
	client   *http.Client
}

// AgentConfig defines the configuration for agent nodes.
type AgentConfig struct {
	Prompt    string         `json:"prompt"`
	Model     string         `json:"model,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
}

// agentResponse is the runtime's reply to a submitted task.
type agentResponse struct {
	Output     any            `json:"output"`
	TokensUsed int            `json:"tokens_used"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewAgentNode creates a new agent node.
func NewAgentNode(id, endpoint string, config map[string]any) (*AgentNode, error) {
	agentConfig := AgentConfig{}

	if prompt, ok := config["prompt"].(string); ok && prompt != "" {
		agentConfig.Prompt = prompt
	} else {
		return nil, errors.New("missing required field 'prompt'")
	}

	if model, ok := config["model"].(string); ok {
		agentConfig.Model = model
	}

	if variables, ok := config["variables"].(map[string]any); ok {
		agentConfig.Variables = variables
	}

	if configEndpoint, ok := config["endpoint"].(string); ok && configEndpoint != "" {
		endpoint = configEndpoint
	}

	if endpoint == "" {
		return nil, errors.New("agent runtime endpoint is not configured")
	}

	return &AgentNode{
		id:       id,
		endpoint: endpoint,
		config:   agentConfig,
		client:   &http.Client{},
	}, nil
}

// Execute renders the prompt, posts the task to the runtime and waits for the
// reply. The bounded wait comes from ctx, enforced by the dispatcher.
func (n *AgentNode) Execute(ctx context.Context, ectx *models.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
	prompt, err := template.RenderWithContext(n.config.Prompt, ectx)
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt template: %w", err)
	}

	variables, err := template.RenderMap(n.config.Variables, ectx)
	if err != nil {
		return nil, fmt.Errorf("failed to render task variables: %w", err)
	}

	task := map[string]any{
		"prompt":    prompt,
		"variables": variables,
	}

	if n.config.Model != "" {
		task["model"] = n.config.Model
	}

	if ectx != nil {
		task["execution_id"] = ectx.ExecutionID
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent task submission failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("agent runtime returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var reply agentResponse
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode agent response: %w", err)
	}

	data := map[string]any{
		"output":      reply.Output,
		"tokens_used": reply.TokensUsed,
	}

	if len(reply.Metadata) > 0 {
		data["metadata"] = reply.Metadata
	}

	return &protocol.Result{
		Data:          data,
		ExternalCalls: 1,
		ResourceUnits: reply.TokensUsed,
	}, nil
}
