// Package backoff computes how long background loops wait before retrying a
// store operation that failed, and paces batched maintenance work.
// Strategies are stateless and safe for concurrent use; the caller owns the
// attempt counter.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	Delay(attempt int) time.Duration
}

// Constant always returns the same delay.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter returns a random delay in
// [0, min(Initial * 2^(attempt-1), Max)]. Processes that lost the same
// database at the same moment spread their retries.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(attempt-1), Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Capped
// ──────────────────────────────────────────────────

// Capped limits another strategy to an upper bound. The fetch loop caps its
// retry delay at the queue poll interval.
type Capped struct {
	Strategy Strategy
	Max      time.Duration
}

// Cap wraps s so no delay exceeds maxDelay.
func Cap(s Strategy, maxDelay time.Duration) *Capped {
	return &Capped{Strategy: s, Max: maxDelay}
}

// Delay returns the wrapped delay, never more than Max.
func (c *Capped) Delay(attempt int) time.Duration {
	d := c.Strategy.Delay(attempt)
	if c.Max > 0 && d > c.Max {
		return c.Max
	}
	return d
}

// DefaultStrategy returns the retry backoff used for failed store calls:
// ExponentialWithJitter with 100ms initial and 30s max.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(100*time.Millisecond, 30*time.Second)
}
