package warehouse

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithRetry_SucceedsWithoutRetryingOnNilError(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, Backoff: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}}
	err := withRetry(context.Background(), nil, policy, func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RetriesOnlyTransportErrors(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, Backoff: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}}
	err := withRetry(context.Background(), nil, policy, func() error {
		calls++
		return &transportError{cause: &net.OpError{Op: "dial"}}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsImmediatelyOnNonTransportError(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, Backoff: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}}
	sentinel := errors.New("warehouse rejected request")
	err := withRetry(context.Background(), nil, policy, func() error {
		calls++
		return sentinel
	})
	assert.Equal(t, sentinel, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_SucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, Backoff: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}}
	err := withRetry(context.Background(), nil, policy, func() error {
		calls++
		if calls < 2 {
			return &transportError{cause: errors.New("reset")}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}
