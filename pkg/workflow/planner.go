package workflow

import (
	"fmt"
	"slices"

	"github.com/dukex/cascade/pkg/models"
)

type visitMark int

const (
	unvisited visitMark = iota
	visiting
	visited
)

// Planner turns validated workflow definitions into execution plans.
type Planner struct{}

// NewPlanner creates an execution plan builder.
func NewPlanner() *Planner {
	return &Planner{}
}

// BuildPlan produces a deterministic topological order of plan nodes. Each
// node's dependencies are its inbound edge sources in edge declaration order,
// deduplicated. DFS roots iterate nodes in declaration order, so the same
// definition always yields the same plan. Trigger nodes are seeded with the
// run's trigger data, all other nodes with a snapshot of their config.
//
// Returns *CircularDependencyError and no plan when a dependency cycle exists.
func (p *Planner) BuildPlan(workflow *models.WorkflowDefinition, triggerData map[string]any) ([]*models.PlanNode, error) {
	dependencies := make(map[string][]string, len(workflow.Nodes))

	for _, edge := range workflow.Edges {
		if slices.Contains(dependencies[edge.Target], edge.Source) {
			continue
		}

		dependencies[edge.Target] = append(dependencies[edge.Target], edge.Source)
	}

	marks := make(map[string]visitMark, len(workflow.Nodes))
	order := make([]*models.PlanNode, 0, len(workflow.Nodes))
	waves := make(map[string]int, len(workflow.Nodes))

	var visit func(id string, path []string) error

	visit = func(id string, path []string) error {
		switch marks[id] {
		case visited:
			return nil
		case visiting:
			start := slices.Index(path, id)

			return &CircularDependencyError{NodeID: id, Cycle: append(path[start:], id)}
		case unvisited:
		}

		node := workflow.NodeByID(id)
		if node == nil {
			return fmt.Errorf("node '%s' referenced by an edge does not exist", id)
		}

		marks[id] = visiting

		for _, dep := range dependencies[id] {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}

		marks[id] = visited

		wave := 0
		for _, dep := range dependencies[id] {
			if waves[dep]+1 > wave {
				wave = waves[dep] + 1
			}
		}

		waves[id] = wave

		order = append(order, &models.PlanNode{
			ID:           node.ID,
			Type:         node.Type,
			Dependencies: dependencies[id],
			Status:       models.NodeStatusPending,
			Input:        seedInput(node, triggerData),
			Wave:         wave,
		})

		return nil
	}

	for _, node := range workflow.Nodes {
		if err := visit(node.ID, nil); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// seedInput snapshots what the node will receive as input when dispatched.
func seedInput(node *models.Node, triggerData map[string]any) map[string]any {
	var source map[string]any
	if node.Type == models.NodeTypeTrigger {
		source = triggerData
	} else {
		source = node.Config
	}

	input := make(map[string]any, len(source))
	for key, value := range source {
		input[key] = value
	}

	return input
}
