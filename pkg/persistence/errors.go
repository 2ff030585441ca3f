// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrQueueEntryNotFound indicates a queue entry was not found by the given identifier.
	ErrQueueEntryNotFound = errors.New("queue entry not found")

	// ErrScheduleNotFound indicates a schedule was not found by the given identifier.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrWorkflowAlreadyExists indicates a workflow with the same identifier already exists.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")

	// ErrExecutionAlreadyExists indicates an execution with the same identifier already exists.
	ErrExecutionAlreadyExists = errors.New("execution already exists")
)

// ExecutionError wraps execution-related errors with additional context.
type ExecutionError struct {
	Op          string // Operation being performed (e.g., "GetByID", "Update")
	ExecutionID string // Execution ID if applicable
	Err         error  // Underlying error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for execution errors.
func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{
		Op:          op,
		ExecutionID: executionID,
		Err:         err,
	}
}

// QueueError wraps queue-related errors with additional context.
type QueueError struct {
	Op        string // Operation being performed
	QueueName string // Queue name if applicable
	EntryID   string // Entry ID if applicable
	Err       error  // Underlying error
}

func (e *QueueError) Error() string {
	if e.EntryID != "" {
		return fmt.Sprintf("%s operation failed for queue entry %s: %v", e.Op, e.EntryID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for queue %s: %v", e.Op, e.QueueName, e.Err)
}

func (e *QueueError) Unwrap() error {
	return e.Err
}

func (e *QueueError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewQueueError creates a new queue error with context.
func NewQueueError(op, queueName, entryID string, err error) *QueueError {
	return &QueueError{
		Op:        op,
		QueueName: queueName,
		EntryID:   entryID,
		Err:       err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsQueueEntryNotFound checks if an error indicates a queue entry was not found.
func IsQueueEntryNotFound(err error) bool {
	return errors.Is(err, ErrQueueEntryNotFound)
}

// IsScheduleNotFound checks if an error indicates a schedule was not found.
func IsScheduleNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound)
}
