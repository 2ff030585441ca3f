package trigger

import (
	"context"
	"testing"
)

func TestTriggerNode_Execute_PassesInputThrough(t *testing.T) {
	node, err := NewTriggerNode("start", map[string]any{"source": "webhook"})
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	input := map[string]any{"order_id": "ord-1", "amount": 42.5}

	result, err := node.Execute(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if result.Data["order_id"] != "ord-1" {
		t.Errorf("Expected order_id 'ord-1', got: %v", result.Data["order_id"])
	}

	if result.ExternalCalls != 0 {
		t.Errorf("Trigger node should not count external calls, got: %d", result.ExternalCalls)
	}
}

func TestTriggerNode_Execute_NilInput(t *testing.T) {
	node, err := NewTriggerNode("start", nil)
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	result, err := node.Execute(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if result.Data == nil {
		t.Error("Expected non-nil output data for nil input")
	}
}
