package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig tunes [Retry]'s exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Default: 100ms.
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay regardless of attempt count.
	// Default: 5s.
	MaxDelay time.Duration
}

// withDefaults fills zero-value fields with the package defaults used by the
// vector index client (§4.5) and embedding generator (§4.4).
func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	return c
}

// Retry runs fn, retrying on error up to cfg.MaxAttempts times with
// exponential backoff (factor 2) and 0.8-1.2 jitter, capped at cfg.MaxDelay.
// It returns immediately if ctx is canceled, either between attempts or while
// sleeping. isRetryable, when non-nil, is consulted after each failure; a
// false result stops retrying and returns that error immediately.
func Retry(ctx context.Context, cfg RetryConfig, isRetryable func(error) bool, fn func() error) error {
	cfg = cfg.withDefaults()

	var err error
	delay := cfg.BaseDelay
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		jittered := time.Duration(float64(delay) * (0.8 + 0.4*rand.Float64()))
		if jittered > cfg.MaxDelay {
			jittered = cfg.MaxDelay
		}

		timer := time.NewTimer(jittered)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return err
}
