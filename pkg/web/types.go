// Package web provides the HTTP layer of the workflow engine: definition
// authoring, validation, run requests, execution status and schedules.
package web

import (
	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/workflow"
)

// WorkflowRequest is the request body for creating or replacing a workflow
// definition. Nodes and edges are submitted whole; partial edits are an
// editor concern, not an engine one.
type WorkflowRequest struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"                          validate:"required,min=3"`
	Description       string         `json:"description"`
	Nodes             []*models.Node `json:"nodes"                         validate:"required,min=1,dive,required"`
	Edges             []*models.Edge `json:"edges"                         validate:"omitempty,dive,required"`
	Variables         map[string]any `json:"variables,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	ContinueOnFailure bool           `json:"continue_on_failure,omitempty"`
}

// Definition converts the request into the domain model.
func (r *WorkflowRequest) Definition() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:                r.ID,
		Name:              r.Name,
		Description:       r.Description,
		Nodes:             r.Nodes,
		Edges:             r.Edges,
		Variables:         r.Variables,
		Metadata:          r.Metadata,
		ContinueOnFailure: r.ContinueOnFailure,
	}
}

// ValidationResponse is the result of a standalone validation request.
type ValidationResponse struct {
	Valid  bool                       `json:"valid"`
	Errors []workflow.ValidationIssue `json:"errors"`
}

// RunResponse acknowledges an accepted run request. The execution itself
// proceeds asynchronously.
type RunResponse struct {
	ExecutionID string                 `json:"execution_id"`
	Status      models.ExecutionStatus `json:"status"`
}
