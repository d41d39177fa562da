// Package retry implements the shared retry policy for transient store
// conflicts: exponential backoff with jitter, capped attempts.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
)

// Policy parameterizes the backoff schedule.
type Policy struct {
	InitialInterval time.Duration // base delay before the first retry
	MaxInterval     time.Duration // delay cap
	MaxJitter       time.Duration // additive jitter, uniform in [0, MaxJitter)
	MaxAttempts     int           // total attempts including the first
}

// DefaultPolicy matches the service-wide defaults: 50ms base, factor 2,
// 5s cap, 0-100ms jitter, 10 attempts.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxJitter:       100 * time.Millisecond,
		MaxAttempts:     10,
	}
}

// Do runs op, retrying while it fails with a retryable error (per
// domainErrors.IsRetryable). Non-retryable errors and context cancellation
// stop immediately. The error of the last attempt is returned.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // bounded by attempts, not wall time
	bo.Reset()

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !domainErrors.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := bo.NextBackOff()
		if p.MaxJitter > 0 {
			delay += time.Duration(rand.Int63n(int64(p.MaxJitter)))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
