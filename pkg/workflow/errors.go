// Package workflow implements validation, planning, dispatch and wave-based
// orchestration of workflow executions.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrExecutionCancelled signals that an execution was flagged cancelled while
// the orchestrator was driving it.
var ErrExecutionCancelled = errors.New("execution cancelled")

// CircularDependencyError reports a dependency cycle found while building the
// execution plan.
type CircularDependencyError struct {
	NodeID string
	Cycle  []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected at node '%s': %s", e.NodeID, strings.Join(e.Cycle, " -> "))
}

// IsCircularDependency checks if an error reports a dependency cycle.
func IsCircularDependency(err error) bool {
	var target *CircularDependencyError

	return errors.As(err, &target)
}

// DeadlockError reports that pending nodes remain but none can become ready
// or be skipped.
type DeadlockError struct {
	ExecutionID  string
	PendingNodes []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("deadlock in execution %s: nodes %s can never become ready", e.ExecutionID, strings.Join(e.PendingNodes, ", "))
}

// IsDeadlock checks if an error reports an orchestration deadlock.
func IsDeadlock(err error) bool {
	var target *DeadlockError

	return errors.As(err, &target)
}

// TimeoutError reports that a node exceeded its bounded wait.
type TimeoutError struct {
	NodeID string
	Limit  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node '%s' timed out after %s", e.NodeID, e.Limit)
}

// IsTimeout checks if an error reports a node timeout.
func IsTimeout(err error) bool {
	var target *TimeoutError

	return errors.As(err, &target)
}

// NodeExecutionError wraps any failure of a node strategy with the node id.
type NodeExecutionError struct {
	NodeID string
	Cause  error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node '%s' execution failed: %v", e.NodeID, e.Cause)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Cause
}

// ValidationIssue is a single violation found in a workflow definition.
type ValidationIssue struct {
	Code    string `json:"code"`
	NodeID  string `json:"node_id,omitempty"`
	EdgeID  string `json:"edge_id,omitempty"`
	Message string `json:"message"`
}

// ValidationError carries every violation found in one validation pass.
type ValidationError struct {
	WorkflowID string
	Issues     []ValidationIssue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow '%s' is invalid: %d issue(s), first: %s", e.WorkflowID, len(e.Issues), e.Issues[0].Message)
}

// IsValidation checks if an error reports definition violations.
func IsValidation(err error) bool {
	var target *ValidationError

	return errors.As(err, &target)
}
