// Package delay provides the timed wait action for workflow execution.
package delay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
)

// DelayAction waits for a fixed duration, cancellable through ctx.
type DelayAction struct {
	Duration time.Duration
}

// NewDelayAction creates a new delay action from rendered config.
func NewDelayAction(config map[string]any) (*DelayAction, error) {
	durationMs, ok := toMilliseconds(config["duration_ms"])
	if !ok {
		return nil, errors.New("missing required field 'duration_ms'")
	}

	if durationMs < 0 {
		return nil, errors.New("duration_ms must not be negative")
	}

	return &DelayAction{Duration: time.Duration(durationMs) * time.Millisecond}, nil
}

// Execute blocks until the timer fires or the context is cancelled.
func (a *DelayAction) Execute(ctx context.Context, _ *models.ExecutionContext, logger *slog.Logger) (*protocol.Result, error) {
	logger.InfoContext(ctx, "Delaying execution", "duration", a.Duration)

	timer := time.NewTimer(a.Duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return &protocol.Result{
		Data: map[string]any{
			"delayed_ms": a.Duration.Milliseconds(),
		},
	}, nil
}

// toMilliseconds accepts the numeric types a JSON or YAML decoder may produce.
func toMilliseconds(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}
