// Package retry implements bounded retry loops with exponential backoff
// and full jitter, plus the dead letter publishing that catches what the
// loops give up on.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

var (
	// ErrMaxRetriesExceeded is wrapped into Result.Err once the attempt
	// budget is spent
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	// ErrContextCanceled is wrapped into Result.Err when the context ends
	// the loop early
	ErrContextCanceled = errors.New("context canceled during retry")
)

// Config bounds a retry loop. Zero-valued fields fall back to defaults.
type Config struct {
	// MaxRetries is the number of retries after the first attempt
	// (0 = single attempt)
	MaxRetries int
	// InitialInterval seeds the backoff ceiling (default: 1s)
	InitialInterval time.Duration
	// MaxInterval caps the backoff ceiling (default: 30s)
	MaxInterval time.Duration
	// Multiplier grows the ceiling after each attempt (default: 2.0)
	Multiplier float64
}

// DefaultConfig returns default retry configuration
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      5,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

func (c *Config) withDefaults() Config {
	if c == nil {
		return *DefaultConfig()
	}

	out := *c
	if out.InitialInterval <= 0 {
		out.InitialInterval = 1 * time.Second
	}
	if out.MaxInterval <= 0 {
		out.MaxInterval = 30 * time.Second
	}
	if out.Multiplier <= 0 {
		out.Multiplier = 2.0
	}
	return out
}

// Operation is retried until it returns nil, a permanent error, or the
// budget runs out
type Operation func(ctx context.Context) error

// PermanentError stops the loop immediately; the wrapped error is handed
// back unretried
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent marks an error as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Result reports how a retry loop ended
type Result struct {
	// Err is nil on success. At exhaustion it wraps both
	// ErrMaxRetriesExceeded and the last attempt's error, so callers can
	// match either with errors.Is.
	Err error
	// Attempts counts the attempts actually started, the first included
	Attempts int
	// LastError is the error from the final attempt
	LastError error
}

func (r *Result) fail(sentinel, lastErr error) *Result {
	r.LastError = lastErr
	if lastErr == nil {
		r.Err = sentinel
	} else {
		r.Err = fmt.Errorf("%w: %w", sentinel, lastErr)
	}
	return r
}

// Do runs op until it succeeds, returns a permanent error, exhausts the
// retry budget, or the context is canceled. A nil config uses defaults.
func Do(ctx context.Context, config *Config, op Operation) *Result {
	cfg := config.withDefaults()
	result := &Result{}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return result.fail(ErrContextCanceled, lastErr)
		}

		result.Attempts = attempt + 1
		err := op(ctx)
		if err == nil {
			return result
		}
		lastErr = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			result.Err = perm.Err
			result.LastError = perm.Err
			return result
		}

		if attempt >= cfg.MaxRetries {
			return result.fail(ErrMaxRetriesExceeded, lastErr)
		}

		select {
		case <-ctx.Done():
			return result.fail(ErrContextCanceled, lastErr)
		case <-time.After(backoff(cfg, attempt)):
		}
	}
}

// backoff draws a full-jitter interval: uniform in
// [0, min(max, initial*multiplier^attempt)). The spread keeps concurrent
// retries from colliding again in lockstep.
func backoff(cfg Config, attempt int) time.Duration {
	ceiling := float64(cfg.InitialInterval) * math.Pow(cfg.Multiplier, float64(attempt))
	if limit := float64(cfg.MaxInterval); ceiling > limit {
		ceiling = limit
	}
	return time.Duration(rand.Float64() * ceiling)
}
