package warehouse

import (
	"context"
	"errors"
	"net"
	"time"

	"ontoforge.dev/common"
)

// transportError marks an error as a connection-level failure eligible for
// retry, as opposed to a warehouse-reported verification/deploy failure
// which is never retried.
type transportError struct{ cause error }

func (e *transportError) Error() string { return e.cause.Error() }
func (e *transportError) Unwrap() error { return e.cause }

func asTransportError(err error) bool {
	if err == nil {
		return false
	}
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// withRetry runs fn up to policy.MaxAttempts times, backing off between
// attempts per policy.Backoff, retrying only on transport-level errors.
// A warehouse-reported failure (ok=false with structured errors, or a
// non-transport error) returns immediately on the first attempt.
func withRetry(ctx context.Context, logger *common.ContextLogger, policy RetryPolicy, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !asTransportError(lastErr) {
			return lastErr
		}
		if logger != nil {
			logger.WithError(lastErr).WithField("attempt", attempt+1).Warn("warehouse call failed, retrying")
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}
		delay := policy.Backoff[attempt]
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func defaultLogger() *common.ContextLogger {
	return common.NewContextLogger(common.Logger, map[string]interface{}{"component": "warehouse"})
}
