// Package condition provides the condition node implementation for workflow execution.
package condition

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/cascade/pkg/expr"
	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
)

// ConditionNode implements the Node interface for boolean gates. Downstream
// edges branch on nodes.<id>.output.result.
type ConditionNode struct {
	id         string
	expression *expr.Expression
}

// NewConditionNode creates a new condition node. The expression is parsed at
// creation time so malformed config fails before execution starts.
func NewConditionNode(id string, config map[string]any) (*ConditionNode, error) {
	source, ok := config["expression"].(string)
	if !ok || source == "" {
		return nil, errors.New("missing required field 'expression'")
	}

	expression, err := expr.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expression: %w", err)
	}

	return &ConditionNode{
		id:         id,
		expression: expression,
	}, nil
}

// Execute evaluates the expression against the execution context document.
func (n *ConditionNode) Execute(_ context.Context, ectx *models.ExecutionContext, _ map[string]any) (*protocol.Result, error) {
	var document map[string]any
	if ectx != nil {
		document = ectx.Document()
	}

	result, err := n.expression.Evaluate(document)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	return &protocol.Result{
		Data: map[string]any{
			"result":     result,
			"expression": n.expression.String(),
		},
	}, nil
}
