package registry

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/cascade/pkg/protocol"
)

func testDeps() protocol.Dependencies {
	return protocol.Dependencies{
		Logger:        slog.Default(),
		StorageRoot:   "/tmp/cascade-test-storage",
		AgentEndpoint: "http://localhost:8090/tasks",
	}
}

func TestRegisterDefaultNodes(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterDefaultNodes(testDeps())

	expectedNodes := []string{
		"trigger",
		"condition",
		"action",
		"integration",
		"agent",
	}

	availableNodes := registry.GetAvailableNodes()
	if len(availableNodes) != len(expectedNodes) {
		t.Errorf("Expected %d nodes, got %d", len(expectedNodes), len(availableNodes))
	}

	for _, expectedType := range expectedNodes {
		found := false

		for _, factory := range availableNodes {
			if factory.Type() == expectedType {
				found = true

				break
			}
		}

		if !found {
			t.Errorf("Expected node type '%s' not found in registry", expectedType)
		}
	}
}

func TestRegisterDefaultActions(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterDefaultActions(testDeps())

	expected := []string{"delay", "http_call", "publish", "storage"}

	available := registry.GetAvailableActions()
	if len(available) != len(expected) {
		t.Fatalf("Expected %d actions, got %d", len(expected), len(available))
	}

	for i, actionType := range expected {
		if available[i] != actionType {
			t.Errorf("Expected action '%s' at position %d, got '%s'", actionType, i, available[i])
		}
	}
}

func TestCreateNode_Condition(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterDefaultNodes(testDeps())

	config := map[string]any{
		"expression": `variables.status == "active"`,
	}

	node, err := registry.CreateNode(context.Background(), "condition", "cond-1", config)
	if err != nil {
		t.Fatalf("Failed to create condition node: %v", err)
	}

	if node == nil {
		t.Fatal("Expected a node instance")
	}
}

func TestCreateNode_SchemaRejectsMissingFields(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterDefaultNodes(testDeps())

	_, err := registry.CreateNode(context.Background(), "condition", "cond-1", map[string]any{})
	if err == nil {
		t.Fatal("Expected schema validation error for missing expression")
	}
}

func TestCreateNode_AcceptsFractionalTimeout(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterDefaultNodes(testDeps())
	registry.RegisterDefaultActions(testDeps())

	config := map[string]any{
		"action_type":     "delay",
		"duration_ms":     10,
		"timeout_seconds": 0.05,
	}

	node, err := registry.CreateNode(context.Background(), "action", "a-1", config)
	if err != nil {
		t.Fatalf("Failed to create action node with sub-second timeout: %v", err)
	}

	if node == nil {
		t.Fatal("Expected a node instance")
	}
}

func TestCreateNode_RejectsNonPositiveTimeout(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterDefaultNodes(testDeps())
	registry.RegisterDefaultActions(testDeps())

	config := map[string]any{
		"action_type":     "delay",
		"duration_ms":     10,
		"timeout_seconds": 0,
	}

	_, err := registry.CreateNode(context.Background(), "action", "a-1", config)
	if err == nil {
		t.Fatal("Expected schema validation error for zero timeout")
	}
}

func TestCreateNode_UnknownType(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterDefaultNodes(testDeps())

	_, err := registry.CreateNode(context.Background(), "unknown_type", "n-1", map[string]any{})
	if err == nil {
		t.Fatal("Expected error when creating node with unknown type")
	}

	if !errors.Is(err, ErrNodeNotRegistered) {
		t.Errorf("Expected ErrNodeNotRegistered, got: %v", err)
	}
}

func TestCreateAction_UnknownType(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterDefaultActions(testDeps())

	_, err := registry.CreateAction("unknown_action", map[string]any{})
	if err == nil {
		t.Fatal("Expected error when creating action with unknown type")
	}

	if !errors.Is(err, ErrActionNotRegistered) {
		t.Errorf("Expected ErrActionNotRegistered, got: %v", err)
	}
}
