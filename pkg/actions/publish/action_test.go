package publish

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/cascade/pkg/events"
	"github.com/dukex/cascade/pkg/models"
)

type capturePublisher struct {
	key   string
	event any
}

func (p *capturePublisher) Publish(_ context.Context, key string, event any) error {
	p.key = key
	p.event = event

	return nil
}

func TestPublishAction_Execute(t *testing.T) {
	publisher := &capturePublisher{}

	action, err := NewPublishAction(publisher, map[string]any{
		"event_name": "order.approved",
		"data":       map[string]any{"order_id": "ord-1"},
	})
	if err != nil {
		t.Fatalf("Failed to create action: %v", err)
	}

	ectx := &models.ExecutionContext{ExecutionID: "exec-1", WorkflowID: "wf-1"}

	result, err := action.Execute(context.Background(), ectx, slog.Default())
	if err != nil {
		t.Fatalf("Action execution failed: %v", err)
	}

	if publisher.key != "order.approved" {
		t.Errorf("Expected event keyed by name, got: %s", publisher.key)
	}

	published, ok := publisher.event.(events.MessagePublished)
	if !ok {
		t.Fatalf("Expected MessagePublished event, got: %T", publisher.event)
	}

	if published.ExecutionID != "exec-1" {
		t.Errorf("Expected execution_id 'exec-1', got: %s", published.ExecutionID)
	}

	if published.Data["order_id"] != "ord-1" {
		t.Errorf("Expected payload to carry order_id, got: %v", published.Data)
	}

	if result.Data["published"] != true {
		t.Errorf("Expected published true, got: %v", result.Data)
	}
}

func TestNewPublishAction_Validation(t *testing.T) {
	if _, err := NewPublishAction(nil, map[string]any{"event_name": "x"}); err == nil {
		t.Error("Expected error for nil publisher")
	}

	if _, err := NewPublishAction(&capturePublisher{}, map[string]any{}); err == nil {
		t.Error("Expected error for missing event_name")
	}
}
