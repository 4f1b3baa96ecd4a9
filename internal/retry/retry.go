// Package retry runs an operation again, with exponential backoff, while its
// error is classified as transient.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config bounds the retry loop. MaxRetries is the total number of calls.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	// MaxBackoff caps a single wait. Zero leaves it uncapped.
	MaxBackoff time.Duration
	// Jitter in [0,1] stretches later waits more than earlier ones.
	Jitter float64
}

// ShouldRetryFunc classifies an error. Nil retries everything.
type ShouldRetryFunc func(error) bool

// Do calls fn until it succeeds, returns an error shouldRetry rejects, the
// attempts run out or ctx is done. Exhaustion wraps the last error.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	var last error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, cfg.Backoff(attempt)); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		last = err
	}
	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, last)
}

// Backoff is the wait before retry number attempt (1-based):
// InitialBackoff doubled per attempt, capped, plus attempt-scaled jitter.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := time.Duration(math.Pow(2, float64(attempt-1)) * float64(c.InitialBackoff))
	if c.MaxBackoff > 0 && d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	if c.Jitter > 0 && c.MaxRetries > 0 {
		d += time.Duration(float64(d) * c.Jitter * float64(attempt) / float64(c.MaxRetries))
	}
	return d
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
