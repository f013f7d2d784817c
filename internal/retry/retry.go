// Package retry wraps fallible operations with exponential backoff and
// jitter. It knows nothing about jobs or conversations; every component that
// calls the external text-generation capability composes with it.
package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Options configures a retry loop.
type Options struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64

	// RetryablePatterns is the allowlist of error substrings worth retrying.
	// Anything not matching is treated as fatal and propagated immediately.
	RetryablePatterns []string

	// OnRetry, when set, is invoked before each backoff sleep with the
	// just-failed attempt number and its error.
	OnRetry func(attempt int, err error)
}

// DefaultRetryablePatterns covers the transient failure modes of rate-limited
// remote text-generation APIs.
var DefaultRetryablePatterns = []string{
	"rate limit",
	"rate_limit",
	"too many requests",
	"429",
	"timeout",
	"deadline exceeded",
	"connection reset",
	"econnreset",
	"connection refused",
	"overloaded",
	"unavailable",
	"500",
	"502",
	"503",
	"504",
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:       3,
		InitialDelay:      2 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		RetryablePatterns: DefaultRetryablePatterns,
	}
}

func (o Options) normalized() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 2 * time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.BackoffMultiplier <= 1 {
		o.BackoffMultiplier = 2
	}
	if len(o.RetryablePatterns) == 0 {
		o.RetryablePatterns = DefaultRetryablePatterns
	}
	return o
}

// Retryable classifies an error by substring match against the allowlist.
func Retryable(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Delay computes the backoff before retry number `attempt` (1-based), before
// jitter: min(maxDelay, initial * multiplier^(attempt-1)).
func Delay(attempt int, o Options) time.Duration {
	o = o.normalized()
	d := time.Duration(float64(o.InitialDelay) * math.Pow(o.BackoffMultiplier, float64(attempt-1)))
	if d > o.MaxDelay || d <= 0 {
		d = o.MaxDelay
	}
	return d
}

// jitter applies a uniformly distributed ±25% multiplicative factor so
// concurrent workers do not retry in lockstep.
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.75 + rand.Float64()*0.5))
}

// Do runs op up to MaxAttempts times. Non-retryable errors propagate
// immediately with no delay; a retryable error sleeps the jittered backoff
// (honoring ctx cancellation) before the next attempt.
func Do[T any](ctx context.Context, o Options, op func(ctx context.Context) (T, error)) (T, error) {
	o = o.normalized()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= o.MaxAttempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !Retryable(err, o.RetryablePatterns) || attempt == o.MaxAttempts {
			return zero, err
		}
		if o.OnRetry != nil {
			o.OnRetry(attempt, err)
		}

		timer := time.NewTimer(jitter(Delay(attempt, o)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, lastErr
}
