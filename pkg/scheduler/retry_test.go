package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_NextDelay(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, 5*time.Second, policy.NextDelay(0))
	assert.Equal(t, 10*time.Second, policy.NextDelay(1))
	assert.Equal(t, 20*time.Second, policy.NextDelay(2))
	assert.Equal(t, 40*time.Second, policy.NextDelay(3))

	// The cap holds no matter how many attempts piled up.
	assert.Equal(t, 5*time.Minute, policy.NextDelay(10))
	assert.Equal(t, 5*time.Minute, policy.NextDelay(64))
}

func TestRetryPolicy_NextDelay_CapBetweenSteps(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}

	assert.Equal(t, time.Second, policy.NextDelay(0))
	assert.Equal(t, 2*time.Second, policy.NextDelay(1))
	assert.Equal(t, 3*time.Second, policy.NextDelay(2))
	assert.Equal(t, 3*time.Second, policy.NextDelay(3))
}
