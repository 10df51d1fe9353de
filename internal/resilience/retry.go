// Package resilience retries store operations that fail on transient
// connection errors.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry attempts with exponential backoff and jitter.
// The zero Policy makes a single attempt.
type Policy struct {
	// Attempts is the total number of tries including the first.
	Attempts int
	// Backoff is the delay before the first retry. It doubles per attempt.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Jitter is the random spread as a fraction of the delay (0.2 = ±20%).
	Jitter float64
	// Retryable overrides IsTransient.
	Retryable func(err error) bool
}

// DefaultPolicy is used for Postgres operations.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Backoff:    200 * time.Millisecond,
		MaxBackoff: 5 * time.Second,
		Jitter:     0.2,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(err) || attempt == attempts-1 {
			return err
		}

		zap.L().Warn("resilience: retrying operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.Backoff) * math.Pow(2, float64(attempt))
	if p.MaxBackoff > 0 {
		d = math.Min(d, float64(p.MaxBackoff))
	}
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(math.Max(d, 0))
}
