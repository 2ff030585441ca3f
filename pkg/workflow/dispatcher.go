package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
	"github.com/dukex/cascade/pkg/registry"
)

const (
	// DefaultNodeTimeout bounds a single node execution unless the node
	// config overrides it with timeout_seconds.
	DefaultNodeTimeout = 30 * time.Second

	// DefaultAgentTimeout is the wider bound applied to agent nodes, which
	// wait on model inference.
	DefaultAgentTimeout = 60 * time.Second
)

// Dispatcher resolves definition nodes to their registered strategies and
// runs them under a bounded wait.
type Dispatcher struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func NewDispatcher(reg *registry.Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		logger:   logger.With("module", "dispatcher"),
	}
}

type dispatchOutcome struct {
	result *protocol.Result
	err    error
}

// Dispatch executes one node and normalizes every failure into a
// NodeExecutionError, so callers can always recover the node ID from the
// error chain. Exceeding the bounded wait surfaces as a wrapped
// TimeoutError.
func (d *Dispatcher) Dispatch(ctx context.Context, node *models.Node, input map[string]any, ectx *models.ExecutionContext) (*protocol.Result, error) {
	logger := d.logger.With(
		"execution_id", ectx.ExecutionID,
		"node_id", node.ID,
		"node_type", node.Type,
	)

	strategy, err := d.registry.CreateNode(ctx, string(node.Type), node.ID, node.Config)
	if err != nil {
		return nil, &NodeExecutionError{NodeID: node.ID, Cause: err}
	}

	timeout := timeoutFor(node)

	nodeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.DebugContext(ctx, "Dispatching node", "timeout", timeout)

	// Buffered so a strategy that ignores its context can still finish and
	// release its goroutine after we stop waiting.
	outcomes := make(chan dispatchOutcome, 1)

	go func() {
		result, execErr := strategy.Execute(nodeCtx, ectx, input)
		outcomes <- dispatchOutcome{result: result, err: execErr}
	}()

	select {
	case outcome := <-outcomes:
		if outcome.err != nil {
			return nil, d.wrapFailure(ctx, logger, node, timeout, outcome.err)
		}

		if outcome.result == nil {
			return &protocol.Result{Data: map[string]any{}}, nil
		}

		return outcome.result, nil
	case <-nodeCtx.Done():
		return nil, d.wrapFailure(ctx, logger, node, timeout, nodeCtx.Err())
	}
}

func (d *Dispatcher) wrapFailure(ctx context.Context, logger *slog.Logger, node *models.Node, timeout time.Duration, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) && ctx.Err() == nil {
		logger.WarnContext(ctx, "Node exceeded its bounded wait", "timeout", timeout)

		return &NodeExecutionError{
			NodeID: node.ID,
			Cause:  &TimeoutError{NodeID: node.ID, Limit: timeout},
		}
	}

	logger.ErrorContext(ctx, "Node execution failed", "error", cause)

	return &NodeExecutionError{NodeID: node.ID, Cause: cause}
}

// timeoutFor reads the node's bounded wait from its config, falling back to
// the per-type default.
func timeoutFor(node *models.Node) time.Duration {
	if raw, ok := node.Config["timeout_seconds"]; ok {
		switch seconds := raw.(type) {
		case float64:
			if seconds > 0 {
				return time.Duration(seconds * float64(time.Second))
			}
		case int:
			if seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	if node.Type == models.NodeTypeAgent {
		return DefaultAgentTimeout
	}

	return DefaultNodeTimeout
}
