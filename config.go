package jobrow

import (
	"fmt"
	"time"
)

// MinInvisibilityTimeout is the smallest accepted InvisibilityTimeout. It
// keeps the renewal period above zero.
const MinInvisibilityTimeout = 5 * time.Millisecond

// Config holds configuration for the storage engine and its background
// processes.
type Config struct {
	// QueuePollInterval is how long an idle fetch waits before querying the
	// queue table again when no wake signal arrives.
	QueuePollInterval time.Duration

	// InvisibilityTimeout is how long a lease stays valid without renewal.
	// Leases are renewed every InvisibilityTimeout/5.
	InvisibilityTimeout time.Duration

	// JobExpirationCheckInterval is the period of the expiration sweep.
	JobExpirationCheckInterval time.Duration

	// CountersAggregateInterval is the period of the counter aggregation sweep.
	CountersAggregateInterval time.Duration

	// DashboardJobListLimit caps monitoring counts and lists. Zero disables
	// the cap.
	DashboardJobListLimit int

	// FetchLockTimeout bounds the wait for the in-process fetch lock.
	FetchLockTimeout time.Duration

	// ExpirationBatchSize is the maximum number of rows deleted per batch.
	ExpirationBatchSize int

	// ExpirationBatchDelay is the pause between two expiration batches.
	ExpirationBatchDelay time.Duration

	// CounterBatchSize is the maximum number of raw counters folded per pass.
	CounterBatchSize int

	// CounterPassDelay is the pause between two aggregation passes that
	// folded rows.
	CounterPassDelay time.Duration

	// ShutdownTimeout is the maximum time to wait for background processes
	// to finish on Stop.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueuePollInterval:          15 * time.Second,
		InvisibilityTimeout:        10 * time.Second,
		JobExpirationCheckInterval: time.Hour,
		CountersAggregateInterval:  5 * time.Minute,
		FetchLockTimeout:           30 * time.Second,
		ExpirationBatchSize:        1000,
		ExpirationBatchDelay:       time.Second,
		CounterBatchSize:           10000,
		CounterPassDelay:           500 * time.Millisecond,
		ShutdownTimeout:            30 * time.Second,
	}
}

// KeepAliveInterval is the period at which active leases are renewed.
func (c Config) KeepAliveInterval() time.Duration {
	return c.InvisibilityTimeout / 5
}

// Validate reports the first invalid setting. The returned error wraps
// ErrInvalidConfig.
func (c Config) Validate() error {
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"queue poll interval", c.QueuePollInterval},
		{"invisibility timeout", c.InvisibilityTimeout},
		{"job expiration check interval", c.JobExpirationCheckInterval},
		{"counters aggregate interval", c.CountersAggregateInterval},
		{"fetch lock timeout", c.FetchLockTimeout},
		{"shutdown timeout", c.ShutdownTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, p.name, p.d)
		}
	}

	switch {
	case c.InvisibilityTimeout < MinInvisibilityTimeout:
		return fmt.Errorf("%w: invisibility timeout must be at least %s, got %s", ErrInvalidConfig, MinInvisibilityTimeout, c.InvisibilityTimeout)
	case c.ExpirationBatchSize <= 0:
		return fmt.Errorf("%w: expiration batch size must be positive, got %d", ErrInvalidConfig, c.ExpirationBatchSize)
	case c.CounterBatchSize <= 0:
		return fmt.Errorf("%w: counter batch size must be positive, got %d", ErrInvalidConfig, c.CounterBatchSize)
	case c.DashboardJobListLimit < 0:
		return fmt.Errorf("%w: dashboard job list limit must not be negative, got %d", ErrInvalidConfig, c.DashboardJobListLimit)
	case c.ExpirationBatchDelay < 0:
		return fmt.Errorf("%w: expiration batch delay must not be negative", ErrInvalidConfig)
	case c.CounterPassDelay < 0:
		return fmt.Errorf("%w: counter pass delay must not be negative", ErrInvalidConfig)
	}

	return nil
}
