package workflow

import (
	"fmt"

	"github.com/dukex/cascade/pkg/expr"
	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/registry"
)

// Validation issue codes.
const (
	IssueEmptyWorkflowID  = "empty_workflow_id"
	IssueNoNodes          = "no_nodes"
	IssueEmptyNodeID      = "empty_node_id"
	IssueDuplicateNodeID  = "duplicate_node_id"
	IssueUnknownNodeType  = "unknown_node_type"
	IssueInvalidConfig    = "invalid_node_config"
	IssueUnknownAction    = "unknown_action_type"
	IssueUnknownSource    = "unknown_edge_source"
	IssueUnknownTarget    = "unknown_edge_target"
	IssueSelfLoop         = "self_loop_edge"
	IssueInvalidCondition = "invalid_edge_condition"
	IssueNoTriggerNode    = "no_trigger_node"
	IssueNoEntryNode      = "no_entry_node"
)

// Validator checks workflow definitions against structural rules and the
// registered node schemas.
type Validator struct {
	registry *registry.Registry
}

// NewValidator creates a definition validator backed by the given registry.
func NewValidator(reg *registry.Registry) *Validator {
	return &Validator{registry: reg}
}

// Validate collects every violation in the definition. It returns nil when
// the definition is valid and a *ValidationError carrying all issues
// otherwise. Identical input yields identical issues in identical order.
func (v *Validator) Validate(workflow *models.WorkflowDefinition) error {
	issues := v.Issues(workflow)
	if len(issues) == 0 {
		return nil
	}

	var workflowID string
	if workflow != nil {
		workflowID = workflow.ID
	}

	return &ValidationError{WorkflowID: workflowID, Issues: issues}
}

// Issues runs all checks and returns the violations found, never stopping at
// the first.
func (v *Validator) Issues(workflow *models.WorkflowDefinition) []ValidationIssue {
	var issues []ValidationIssue

	if workflow == nil {
		return []ValidationIssue{{Code: IssueNoNodes, Message: "workflow definition is nil"}}
	}

	if workflow.ID == "" {
		issues = append(issues, ValidationIssue{
			Code:    IssueEmptyWorkflowID,
			Message: "workflow id must not be empty",
		})
	}

	if len(workflow.Nodes) == 0 {
		issues = append(issues, ValidationIssue{
			Code:    IssueNoNodes,
			Message: "workflow has no nodes",
		})

		return issues
	}

	issues = append(issues, v.nodeIssues(workflow)...)
	issues = append(issues, v.edgeIssues(workflow)...)
	issues = append(issues, v.graphIssues(workflow)...)

	return issues
}

func (v *Validator) nodeIssues(workflow *models.WorkflowDefinition) []ValidationIssue {
	var issues []ValidationIssue

	seen := make(map[string]bool, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		if node.ID == "" {
			issues = append(issues, ValidationIssue{
				Code:    IssueEmptyNodeID,
				Message: "node id must not be empty",
			})
		} else if seen[node.ID] {
			issues = append(issues, ValidationIssue{
				Code:    IssueDuplicateNodeID,
				NodeID:  node.ID,
				Message: fmt.Sprintf("node id '%s' is declared more than once", node.ID),
			})
		}

		seen[node.ID] = true

		nodeType := string(node.Type)
		if !v.registry.HasNode(nodeType) {
			issues = append(issues, ValidationIssue{
				Code:    IssueUnknownNodeType,
				NodeID:  node.ID,
				Message: fmt.Sprintf("node type '%s' is not registered", nodeType),
			})

			continue
		}

		if err := v.registry.ValidateNodeConfig(nodeType, node.Config); err != nil {
			issues = append(issues, ValidationIssue{
				Code:    IssueInvalidConfig,
				NodeID:  node.ID,
				Message: fmt.Sprintf("config rejected: %v", err),
			})
		}

		if node.Type == models.NodeTypeAction {
			if actionType, ok := node.Config["action_type"].(string); ok && actionType != "" {
				if !v.registry.HasAction(actionType) {
					issues = append(issues, ValidationIssue{
						Code:    IssueUnknownAction,
						NodeID:  node.ID,
						Message: fmt.Sprintf("action type '%s' is not registered", actionType),
					})
				}
			}
		}
	}

	return issues
}

func (v *Validator) edgeIssues(workflow *models.WorkflowDefinition) []ValidationIssue {
	var issues []ValidationIssue

	nodeIDs := make(map[string]bool, len(workflow.Nodes))
	for _, node := range workflow.Nodes {
		nodeIDs[node.ID] = true
	}

	for _, edge := range workflow.Edges {
		if !nodeIDs[edge.Source] {
			issues = append(issues, ValidationIssue{
				Code:    IssueUnknownSource,
				EdgeID:  edge.ID,
				Message: fmt.Sprintf("edge source '%s' does not resolve to a node", edge.Source),
			})
		}

		if !nodeIDs[edge.Target] {
			issues = append(issues, ValidationIssue{
				Code:    IssueUnknownTarget,
				EdgeID:  edge.ID,
				Message: fmt.Sprintf("edge target '%s' does not resolve to a node", edge.Target),
			})
		}

		if edge.Source != "" && edge.Source == edge.Target {
			issues = append(issues, ValidationIssue{
				Code:    IssueSelfLoop,
				EdgeID:  edge.ID,
				Message: fmt.Sprintf("edge '%s' connects node '%s' to itself", edge.ID, edge.Source),
			})
		}

		if edge.Condition != "" {
			if _, err := expr.Parse(edge.Condition); err != nil {
				issues = append(issues, ValidationIssue{
					Code:    IssueInvalidCondition,
					EdgeID:  edge.ID,
					Message: fmt.Sprintf("condition does not parse: %v", err),
				})
			}
		}
	}

	return issues
}

func (v *Validator) graphIssues(workflow *models.WorkflowDefinition) []ValidationIssue {
	var issues []ValidationIssue

	hasTrigger := false

	for _, node := range workflow.Nodes {
		if node.Type == models.NodeTypeTrigger {
			hasTrigger = true

			break
		}
	}

	if !hasTrigger {
		issues = append(issues, ValidationIssue{
			Code:    IssueNoTriggerNode,
			Message: "workflow has no trigger node",
		})
	}

	if len(workflow.EntryNodes()) == 0 {
		issues = append(issues, ValidationIssue{
			Code:    IssueNoEntryNode,
			Message: "every node has an inbound edge, nothing can start",
		})
	}

	return issues
}
