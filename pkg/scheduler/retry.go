package scheduler

import "time"

const (
	DefaultBaseDelay = 5 * time.Second
	DefaultMaxDelay  = 5 * time.Minute
)

// RetryPolicy computes how long a failed execution waits before it is
// redelivered.
type RetryPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay}
}

// NextDelay returns BaseDelay doubled once per consumed attempt, capped at
// MaxDelay.
func (p RetryPolicy) NextDelay(attempts int) time.Duration {
	delay := p.BaseDelay

	for range attempts {
		if delay >= p.MaxDelay {
			break
		}

		delay *= 2
	}

	if delay > p.MaxDelay {
		return p.MaxDelay
	}

	return delay
}
