// Package testutil provides test data builders for workflow definitions.
package testutil

import (
	"github.com/google/uuid"

	"github.com/dukex/cascade/pkg/models"
)

// Definition creates a valid workflow definition with default values that
// can be overridden. The default is a single trigger node, the smallest
// definition the validator accepts.
func Definition(overrides ...func(*models.WorkflowDefinition)) *models.WorkflowDefinition {
	definition := &models.WorkflowDefinition{
		ID:   uuid.New().String(),
		Name: "Test Workflow",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeTrigger},
		},
	}

	for _, override := range overrides {
		override(definition)
	}

	return definition
}

// WithID sets the workflow id.
func WithID(id string) func(*models.WorkflowDefinition) {
	return func(w *models.WorkflowDefinition) {
		w.ID = id
	}
}

// WithName sets the workflow name.
func WithName(name string) func(*models.WorkflowDefinition) {
	return func(w *models.WorkflowDefinition) {
		w.Name = name
	}
}

// WithNodes replaces the node list.
func WithNodes(nodes ...*models.Node) func(*models.WorkflowDefinition) {
	return func(w *models.WorkflowDefinition) {
		w.Nodes = nodes
	}
}

// WithEdges replaces the edge list.
func WithEdges(edges ...*models.Edge) func(*models.WorkflowDefinition) {
	return func(w *models.WorkflowDefinition) {
		w.Edges = edges
	}
}

// WithVariables sets the initial variable bag.
func WithVariables(variables map[string]any) func(*models.WorkflowDefinition) {
	return func(w *models.WorkflowDefinition) {
		w.Variables = variables
	}
}

// WithContinueOnFailure disables the stop-on-failure policy.
func WithContinueOnFailure() func(*models.WorkflowDefinition) {
	return func(w *models.WorkflowDefinition) {
		w.ContinueOnFailure = true
	}
}

// TriggerNode creates a trigger node.
func TriggerNode(id string) *models.Node {
	return &models.Node{ID: id, Type: models.NodeTypeTrigger}
}

// HTTPNode creates an http_call action node against the given URL.
func HTTPNode(id, url string) *models.Node {
	return &models.Node{
		ID:   id,
		Type: models.NodeTypeAction,
		Config: map[string]any{
			"action_type": "http_call",
			"url":         url,
		},
	}
}

// ConditionNode creates a condition node evaluating the given expression.
func ConditionNode(id, expression string) *models.Node {
	return &models.Node{
		ID:   id,
		Type: models.NodeTypeCondition,
		Config: map[string]any{
			"expression": expression,
		},
	}
}

// Edge connects two nodes unconditionally.
func Edge(source, target string) *models.Edge {
	return &models.Edge{ID: source + "-" + target, Source: source, Target: target}
}

// ConditionalEdge connects two nodes gated by the given expression.
func ConditionalEdge(source, target, condition string) *models.Edge {
	edge := Edge(source, target)
	edge.Condition = condition

	return edge
}

// LinearHTTPDefinition builds trigger -> http_call chained by unconditional
// edges, one action node per URL.
func LinearHTTPDefinition(id string, urls ...string) *models.WorkflowDefinition {
	nodes := []*models.Node{TriggerNode("start")}
	edges := make([]*models.Edge, 0, len(urls))
	previous := "start"

	for i, url := range urls {
		nodeID := "step-" + string(rune('a'+i))
		nodes = append(nodes, HTTPNode(nodeID, url))
		edges = append(edges, Edge(previous, nodeID))
		previous = nodeID
	}

	return Definition(WithID(id), WithNodes(nodes...), WithEdges(edges...))
}
