// Package publish provides the messaging action for workflow execution. It
// sends a custom event to the event bus.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/cascade/pkg/events"
	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
)

// PublishAction emits a MessagePublished event through the configured publisher.
type PublishAction struct {
	EventName string
	Data      map[string]any

	publisher protocol.EventPublisher
}

// NewPublishAction creates a new publish action from rendered config.
func NewPublishAction(publisher protocol.EventPublisher, config map[string]any) (*PublishAction, error) {
	if publisher == nil {
		return nil, errors.New("publish action requires an event publisher")
	}

	action := &PublishAction{publisher: publisher}

	if eventName, ok := config["event_name"].(string); ok && eventName != "" {
		action.EventName = eventName
	} else {
		return nil, errors.New("missing required field 'event_name'")
	}

	if data, ok := config["data"].(map[string]any); ok {
		action.Data = data
	}

	return action, nil
}

// Execute publishes the event keyed by the event name.
func (a *PublishAction) Execute(ctx context.Context, ectx *models.ExecutionContext, logger *slog.Logger) (*protocol.Result, error) {
	var workflowID, executionID string
	if ectx != nil {
		workflowID = ectx.WorkflowID
		executionID = ectx.ExecutionID
	}

	event := events.MessagePublished{
		BaseEvent:   events.NewBaseEvent(events.MessagePublishedEvent, workflowID),
		ExecutionID: executionID,
		EventName:   a.EventName,
		Data:        a.Data,
	}

	logger.InfoContext(ctx, "Publishing custom event", "event_name", a.EventName)

	if err := a.publisher.Publish(ctx, a.EventName, event); err != nil {
		return nil, fmt.Errorf("failed to publish event '%s': %w", a.EventName, err)
	}

	return &protocol.Result{
		Data: map[string]any{
			"event_name": a.EventName,
			"event_id":   event.ID,
			"published":  true,
		},
		ExternalCalls: 1,
	}, nil
}
