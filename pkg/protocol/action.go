package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/cascade/pkg/models"
)

// Action is an action node sub-strategy, selected by the node's action_type.
// Configuration is bound at Create time, already template-rendered.
type Action interface {
	Execute(ctx context.Context, ectx *models.ExecutionContext, logger *slog.Logger) (*Result, error)
}

// ActionFactory creates action instances for one action_type.
type ActionFactory interface {
	Create(config map[string]any) (Action, error)

	// ActionType returns the action_type value this factory serves
	ActionType() string

	// Schema returns the JSON schema for configuring this action
	Schema() map[string]any
}
