package action

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
)

// fakeAction records the config it was created with and returns a canned result.
type fakeAction struct {
	config map[string]any
}

func (a *fakeAction) Execute(_ context.Context, _ *models.ExecutionContext, _ *slog.Logger) (*protocol.Result, error) {
	return &protocol.Result{Data: map[string]any{"config": a.config}}, nil
}

type fakeActionCreator struct {
	lastType   string
	lastConfig map[string]any
	err        error
}

func (c *fakeActionCreator) CreateAction(actionType string, config map[string]any) (protocol.Action, error) {
	c.lastType = actionType
	c.lastConfig = config

	if c.err != nil {
		return nil, c.err
	}

	return &fakeAction{config: config}, nil
}

func TestActionNode_Execute_RendersConfigAndDelegates(t *testing.T) {
	creator := &fakeActionCreator{}

	config := map[string]any{
		"action_type": "http_call",
		"url":         "https://api.example.com/orders/{{.trigger.order_id}}",
	}

	node, err := NewActionNode("notify", config, creator, slog.Default())
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	ectx := &models.ExecutionContext{
		ExecutionID: "exec-1",
		TriggerData: map[string]any{"order_id": "ord-9"},
	}

	_, err = node.Execute(context.Background(), ectx, nil)
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if creator.lastType != "http_call" {
		t.Errorf("Expected action type 'http_call', got: %s", creator.lastType)
	}

	if creator.lastConfig["url"] != "https://api.example.com/orders/ord-9" {
		t.Errorf("Expected rendered URL, got: %v", creator.lastConfig["url"])
	}

	if _, ok := creator.lastConfig["action_type"]; ok {
		t.Error("action_type should not be passed to the sub-strategy config")
	}
}

func TestNewActionNode_MissingActionType(t *testing.T) {
	_, err := NewActionNode("notify", map[string]any{"url": "https://example.com"}, &fakeActionCreator{}, slog.Default())
	if err == nil {
		t.Fatal("Expected error for missing action_type")
	}
}

func TestActionNode_Execute_UnknownActionType(t *testing.T) {
	creator := &fakeActionCreator{err: errors.New("action type not registered: 'nope'")}

	node, err := NewActionNode("notify", map[string]any{"action_type": "nope"}, creator, slog.Default())
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	_, err = node.Execute(context.Background(), &models.ExecutionContext{}, nil)
	if err == nil {
		t.Fatal("Expected error for unknown action type")
	}
}
