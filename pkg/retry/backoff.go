// Package retry provides exponential backoff with jitter for transient
// failures, plus a generic retry loop for callers that do not need
// per-attempt bookkeeping.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// BackoffConfig controls the delay sequence between retry attempts.
type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          bool
	MaxRetries      int // 0 means retry until the context is done
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 1 * time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
		MaxRetries:      3,
	}
}

// ExponentialBackoff produces the delay sequence for one retry loop. It is
// not safe for concurrent use; each loop owns its own instance.
type ExponentialBackoff struct {
	config  BackoffConfig
	attempt int
}

func NewExponentialBackoff(config BackoffConfig) *ExponentialBackoff {
	if config.InitialInterval <= 0 {
		config.InitialInterval = 1 * time.Second
	}

	if config.MaxInterval <= 0 {
		config.MaxInterval = 10 * time.Second
	}

	if config.Multiplier < 1 {
		config.Multiplier = 2.0
	}

	return &ExponentialBackoff{config: config}
}

// NextDelay returns the delay before the next attempt and advances the
// attempt counter. The base delay grows by the multiplier each attempt.
// Jitter adds up to 10% of the base, derived from the sub-second phase of
// the wall clock so callers retrying in lockstep spread out. The cap
// applies after jitter, so the returned delay never exceeds MaxInterval.
func (eb *ExponentialBackoff) NextDelay() time.Duration {
	base := float64(eb.config.InitialInterval) * math.Pow(eb.config.Multiplier, float64(eb.attempt))
	eb.attempt++

	delay := base
	if eb.config.Jitter {
		phase := float64(time.Now().Nanosecond()) / 1e9
		delay += base * 0.1 * phase
	}

	if max := float64(eb.config.MaxInterval); delay > max {
		delay = max
	}

	return time.Duration(delay)
}

// Reset rewinds the sequence to the first delay.
func (eb *ExponentialBackoff) Reset() {
	eb.attempt = 0
}

// Attempt returns how many delays have been produced so far.
func (eb *ExponentialBackoff) Attempt() int {
	return eb.attempt
}

// Sleep waits for the given duration or until the context is done,
// whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StopError wraps an error that must not be retried.
type StopError struct {
	Err error
}

func (e *StopError) Error() string {
	return e.Err.Error()
}

func (e *StopError) Unwrap() error {
	return e.Err
}

// Stop marks err as permanent so WithRetry returns it immediately.
func Stop(err error) *StopError {
	return &StopError{Err: err}
}

func IsStopError(err error) bool {
	var stopErr *StopError
	return errors.As(err, &stopErr)
}

// WithRetry runs operation until it succeeds, returns a StopError, the
// retry budget is exhausted, or the context is done. The error wrapped by
// a StopError is returned unwrapped.
func WithRetry(ctx context.Context, config BackoffConfig, operation func() error) error {
	backoff := NewExponentialBackoff(config)

	var lastErr error
	for attempt := 0; config.MaxRetries == 0 || attempt < config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		var stopErr *StopError
		if errors.As(lastErr, &stopErr) {
			return stopErr.Err
		}

		if config.MaxRetries > 0 && attempt == config.MaxRetries-1 {
			break
		}

		if err := Sleep(ctx, backoff.NextDelay()); err != nil {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", backoff.Attempt()+1, lastErr)
}
