package scheduler

import (
	"errors"
	"fmt"
)

// QueueExhaustedError marks a queue entry whose retry budget is spent. The
// entry is parked as failed and never redelivered.
type QueueExhaustedError struct {
	ExecutionID string
	Attempts    int
}

func (e *QueueExhaustedError) Error() string {
	return fmt.Sprintf("execution '%s' exhausted its retry budget after %d attempts", e.ExecutionID, e.Attempts)
}

// IsQueueExhausted reports whether err is a QueueExhaustedError.
func IsQueueExhausted(err error) bool {
	var exhaustedErr *QueueExhaustedError

	return errors.As(err, &exhaustedErr)
}
