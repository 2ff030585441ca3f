package condition

import (
	"context"
	"testing"

	"github.com/dukex/cascade/pkg/models"
)

func TestConditionNode_Execute_True(t *testing.T) {
	config := map[string]any{
		"expression": `variables.status == "active"`,
	}

	node, err := NewConditionNode("gate", config)
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	ectx := &models.ExecutionContext{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		Variables:   map[string]any{"status": "active"},
	}

	result, err := node.Execute(context.Background(), ectx, nil)
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if result.Data["result"] != true {
		t.Errorf("Expected result true, got: %v", result.Data["result"])
	}

	if result.Data["expression"] != `variables.status == "active"` {
		t.Errorf("Expected expression to be echoed, got: %v", result.Data["expression"])
	}
}

func TestConditionNode_Execute_False(t *testing.T) {
	config := map[string]any{
		"expression": "trigger.amount > 100",
	}

	node, err := NewConditionNode("gate", config)
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	ectx := &models.ExecutionContext{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		TriggerData: map[string]any{"amount": 10},
	}

	result, err := node.Execute(context.Background(), ectx, nil)
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if result.Data["result"] != false {
		t.Errorf("Expected result false, got: %v", result.Data["result"])
	}
}

func TestNewConditionNode_MissingExpression(t *testing.T) {
	_, err := NewConditionNode("gate", map[string]any{})
	if err == nil {
		t.Fatal("Expected error for missing expression")
	}
}

func TestNewConditionNode_MalformedExpression(t *testing.T) {
	_, err := NewConditionNode("gate", map[string]any{"expression": "amount >"})
	if err == nil {
		t.Fatal("Expected error for malformed expression")
	}
}

func TestConditionNode_Execute_EvaluationError(t *testing.T) {
	node, err := NewConditionNode("gate", map[string]any{"expression": `variables.count > "ten"`})
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	ectx := &models.ExecutionContext{
		ExecutionID: "exec-1",
		Variables:   map[string]any{"count": 5},
	}

	_, err = node.Execute(context.Background(), ectx, nil)
	if err == nil {
		t.Fatal("Expected error when ordering mismatched types")
	}
}
