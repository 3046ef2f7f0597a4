package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetry_Bounded(t *testing.T) {
	rm := NewRetryManager(3, time.Second)
	err := errors.New("temporary failure")

	retry, delay := rm.ShouldRetry(1, err)
	assert.True(t, retry)
	assert.Greater(t, delay, time.Duration(0))

	retry, _ = rm.ShouldRetry(2, err)
	assert.True(t, retry)

	// The bound is inclusive: after maxRetries attempts, stop.
	retry, delay = rm.ShouldRetry(3, err)
	assert.False(t, retry)
	assert.Equal(t, time.Duration(0), delay)

	retry, _ = rm.ShouldRetry(10, err)
	assert.False(t, retry)
}

func TestShouldRetry_PermanentError(t *testing.T) {
	rm := NewRetryManager(5, time.Second)

	retry, _ := rm.ShouldRetry(1, Permanent(errors.New("endpoint gone")))
	assert.False(t, retry)

	// Wrapping preserves the permanent marker.
	wrapped := Permanent(errors.New("inner"))
	retry, _ = rm.ShouldRetry(1, wrapped)
	assert.False(t, retry)
	assert.Equal(t, "inner", wrapped.Error())
}

func TestShouldRetry_NilError(t *testing.T) {
	rm := NewRetryManager(5, time.Second)
	retry, _ := rm.ShouldRetry(1, nil)
	assert.False(t, retry)

	assert.NoError(t, Permanent(nil))
}

func TestCalculateBackoff_GrowsAndCaps(t *testing.T) {
	base := 100 * time.Millisecond
	rm := NewRetryManager(10, base)

	// Jitter is ±25%, so bound checks use the widest window.
	for attempt := 1; attempt <= 8; attempt++ {
		delay := rm.calculateBackoff(attempt)
		expected := base * time.Duration(1<<(attempt-1))
		if expected > rm.maxDelay {
			expected = rm.maxDelay
		}
		assert.LessOrEqual(t, delay, rm.maxDelay+rm.maxDelay/2,
			"attempt %d exceeded the delay cap", attempt)
		assert.GreaterOrEqual(t, delay, expected/2,
			"attempt %d fell below half the expected backoff", attempt)
	}
}
