// Package action provides the action node implementation for workflow execution.
// An action node selects its sub-strategy by the action_type config field and
// delegates execution to it.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
	"github.com/dukex/cascade/pkg/template"
)

// ActionNode implements the Node interface for side-effecting steps.
type ActionNode struct {
	id         string
	actionType string
	config     map[string]any
	actions    protocol.ActionCreator
	logger     *slog.Logger
}

// NewActionNode creates a new action node. The sub-strategy is created per
// execution because its configuration is template-rendered against the
// execution context first.
func NewActionNode(id string, config map[string]any, actions protocol.ActionCreator, logger *slog.Logger) (*ActionNode, error) {
	actionType, ok := config["action_type"].(string)
	if !ok || actionType == "" {
		return nil, errors.New("missing required field 'action_type'")
	}

	if actions == nil {
		return nil, errors.New("action node requires an action registry")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &ActionNode{
		id:         id,
		actionType: actionType,
		config:     config,
		actions:    actions,
		logger:     logger,
	}, nil
}

// Execute renders the action configuration and runs the sub-strategy.
func (n *ActionNode) Execute(ctx context.Context, ectx *models.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
	rendered, err := template.RenderMap(n.actionConfig(), ectx)
	if err != nil {
		return nil, fmt.Errorf("failed to render action config: %w", err)
	}

	action, err := n.actions.CreateAction(n.actionType, rendered)
	if err != nil {
		return nil, fmt.Errorf("failed to create action '%s': %w", n.actionType, err)
	}

	logger := n.logger.With("node_id", n.id, "action_type", n.actionType)

	return action.Execute(ctx, ectx, logger)
}

// actionConfig returns the node config without the routing field.
func (n *ActionNode) actionConfig() map[string]any {
	config := make(map[string]any, len(n.config))
	for key, value := range n.config {
		if key == "action_type" {
			continue
		}

		config[key] = value
	}

	return config
}
