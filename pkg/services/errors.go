// Package services implements the API-facing operations over workflows,
// executions and schedules.
package services

import (
	"errors"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
	"github.com/dukex/cascade/pkg/workflow"
)

// Client errors, grouped by the HTTP status the web layer maps them to.
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")
	ErrWorkflowNil    = errors.New("workflow cannot be nil")

	// Business logic conflicts (409 Conflict).
	ErrExecutionTerminal = errors.New("execution already reached a terminal status")

	// Not found (404), re-exported persistence sentinels.
	ErrWorkflowNotFound  = persistence.ErrWorkflowNotFound
	ErrExecutionNotFound = persistence.ErrExecutionNotFound
	ErrScheduleNotFound  = persistence.ErrScheduleNotFound
)

// IsValidationError checks if an error should surface as HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, models.ErrInvalidSchedule) ||
		workflow.IsValidation(err) ||
		workflow.IsCircularDependency(err)
}

// IsConflictError checks if an error should surface as HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrExecutionTerminal)
}

// IsNotFoundError checks if an error should surface as HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsWorkflowNotFound(err) ||
		persistence.IsExecutionNotFound(err) ||
		persistence.IsScheduleNotFound(err)
}
