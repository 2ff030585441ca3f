package protocol

import (
	"context"
	"log/slog"
)

// EventPublisher delivers events produced by nodes to the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// ActionCreator resolves action sub-strategies by action_type.
type ActionCreator interface {
	CreateAction(actionType string, config map[string]any) (Action, error)
}

// Dependencies contains the common collaborators built-in factories need.
type Dependencies struct {
	Logger *slog.Logger

	// Publisher receives events emitted by publish actions.
	Publisher EventPublisher

	// StorageRoot is the directory storage actions read and write under.
	StorageRoot string

	// AgentEndpoint is the HTTP endpoint of the agent runtime.
	AgentEndpoint string
}
