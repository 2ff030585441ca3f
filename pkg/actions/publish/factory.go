package publish

import (
	"github.com/dukex/cascade/pkg/protocol"
)

// PublishActionFactory creates PublishAction instances bound to a publisher.
type PublishActionFactory struct {
	publisher protocol.EventPublisher
}

// NewPublishActionFactory creates a new publish action factory.
func NewPublishActionFactory(publisher protocol.EventPublisher) protocol.ActionFactory {
	return &PublishActionFactory{publisher: publisher}
}

// Create creates a new PublishAction instance.
func (f *PublishActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewPublishAction(f.publisher, config)
}

// ActionType returns the action_type served by this factory.
func (f *PublishActionFactory) ActionType() string {
	return "publish"
}

// Schema returns the JSON schema for publish action configuration.
func (f *PublishActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"event_name": map[string]any{
				"type":        "string",
				"description": "Routing key of the published event",
				"examples":    []string{"order.approved", "report.ready"},
			},
			"data": map[string]any{
				"type":        "object",
				"description": "Event payload. String values support templating",
			},
		},
		"required": []string{"event_name"},
	}
}
