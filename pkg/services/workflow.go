package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
	"github.com/dukex/cascade/pkg/registry"
	"github.com/dukex/cascade/pkg/workflow"
)

// Workflow handles authoring operations on workflow definitions.
type Workflow struct {
	persistence persistence.Persistence
	validator   *workflow.Validator
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persist persistence.Persistence, reg *registry.Registry) *Workflow {
	return &Workflow{
		persistence: persist,
		validator:   workflow.NewValidator(reg),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := w.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create validates and stores a new workflow definition. An authored id is
// kept; otherwise one is assigned.
func (w *Workflow) Create(ctx context.Context, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if definition == nil {
		return nil, ErrWorkflowNil
	}

	if definition.ID == "" {
		definition.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	definition.CreatedAt = now
	definition.UpdatedAt = now

	if err := w.validator.Validate(definition); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return definition, nil
}

// Update replaces an existing definition, keeping its creation time.
func (w *Workflow) Update(ctx context.Context, workflowID string, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if definition == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	definition.ID = workflowID
	definition.CreatedAt = existing.CreatedAt
	definition.UpdatedAt = time.Now().UTC()

	if err := w.validator.Validate(definition); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return definition, nil
}

// FetchByID retrieves a workflow definition by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

// List retrieves all workflow definitions.
func (w *Workflow) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return w.persistence.WorkflowRepository().List(ctx)
}

// Delete removes a workflow definition by its ID.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	return w.persistence.WorkflowRepository().Delete(ctx, workflowID)
}

// Validate runs structural validation and returns every violation found,
// persisting nothing. A nil slice means the definition is valid.
func (w *Workflow) Validate(definition *models.WorkflowDefinition) []workflow.ValidationIssue {
	if definition == nil {
		return []workflow.ValidationIssue{{Code: "nil_workflow", Message: ErrWorkflowNil.Error()}}
	}

	err := w.validator.Validate(definition)
	if err == nil {
		return nil
	}

	var validationErr *workflow.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Issues
	}

	return []workflow.ValidationIssue{{Code: "invalid", Message: err.Error()}}
}
