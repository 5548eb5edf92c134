package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/backoff"
	"github.com/xraph/jobrow/ext"
	"github.com/xraph/jobrow/lock"
)

// maxClaimRaces bounds how many times one fetch attempt re-reads the queue
// after losing a claim to another process before it falls back to waiting.
const maxClaimRaces = 8

// Manager hands out leases on queue rows.
type Manager struct {
	store  Store
	locks  *lock.Table
	signal Signal
	exts   *ext.Registry
	logger *slog.Logger
	retry  backoff.Strategy
	now    func() time.Time

	pollInterval time.Duration
	invisibility time.Duration
	keepAlive    time.Duration
	lockTimeout  time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithSignal sets the wake source. Without one, idle fetches wake only on
// the poll interval.
func WithSignal(s Signal) Option {
	return func(m *Manager) { m.signal = s }
}

// WithExtensions sets the registry notified of lease events.
func WithExtensions(r *ext.Registry) Option {
	return func(m *Manager) { m.exts = r }
}

// WithBackoff sets the retry delay after a failed store call. Delays are
// capped at the poll interval.
func WithBackoff(s backoff.Strategy) Option {
	return func(m *Manager) { m.retry = s }
}

// WithClock replaces time.Now for lease stamps and visibility thresholds.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager over store. The lock table is shared with the
// rest of the storage instance. cfg must be valid.
func NewManager(store Store, locks *lock.Table, cfg jobrow.Config, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, jobrow.ErrNoStore
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		store:        store,
		locks:        locks,
		logger:       slog.Default(),
		retry:        backoff.DefaultStrategy(),
		now:          time.Now,
		pollInterval: cfg.QueuePollInterval,
		invisibility: cfg.InvisibilityTimeout,
		keepAlive:    cfg.KeepAliveInterval(),
		lockTimeout:  cfg.FetchLockTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.locks == nil {
		m.locks = lock.NewTable()
	}
	m.retry = backoff.Cap(m.retry, m.pollInterval)

	return m, nil
}

// FetchNext blocks until a row in one of queues can be leased or ctx ends.
// Store failures are logged and retried. After the argument check it returns
// only the context error, or jobrow.ErrLockTableClosed once the lock table
// was closed.
func (m *Manager) FetchNext(ctx context.Context, queues []string) (*Lease, error) {
	if len(queues) == 0 {
		return nil, jobrow.ErrEmptyQueueList
	}

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		l, err := m.TryFetch(ctx, queues)
		if l != nil {
			return l, nil
		}

		wait := m.pollInterval
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, jobrow.ErrLockTableClosed) {
				return nil, err
			}
			failures++
			wait = m.retry.Delay(failures)
			m.logger.Warn("queue fetch failed, retrying",
				slog.Any("queues", queues),
				slog.Int("attempt", failures),
				slog.Duration("retry_in", wait),
				slog.String("error", err.Error()),
			)
		} else {
			failures = 0
		}

		if err := m.wait(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// TryFetch makes one fetch attempt. It returns a nil lease and nil error
// when no row is claimable right now.
func (m *Manager) TryFetch(ctx context.Context, queues []string) (*Lease, error) {
	if len(queues) == 0 {
		return nil, jobrow.ErrEmptyQueueList
	}

	h, err := m.locks.Acquire(ctx, lock.ResourceFetch, m.lockTimeout)
	if err != nil {
		if !errors.Is(err, jobrow.ErrLockTimeout) {
			return nil, err
		}
		m.logger.Warn("fetch lock not acquired, fetching without exclusion",
			slog.Duration("timeout", m.lockTimeout),
		)
	}
	defer h.Release()

	for range maxClaimRaces {
		now := m.now()
		e, err := m.store.NextVisible(ctx, queues, now.Add(-m.invisibility))
		if err != nil {
			return nil, fmt.Errorf("next visible entry: %w", err)
		}
		if e == nil {
			return nil, nil
		}

		stamp := Stamp(now)
		ok, err := m.store.StampEntry(ctx, e.ID, e.FetchedAt, stamp)
		if err != nil {
			return nil, fmt.Errorf("claim entry %s: %w", e.ID, err)
		}
		if !ok {
			m.logger.Debug("queue entry claimed elsewhere",
				slog.String("entry_id", e.ID.String()),
				slog.String("queue", e.Queue),
			)
			continue
		}

		e.FetchedAt = &stamp
		l := newLease(m, e)
		m.exts.EmitLeaseAcquired(ctx, e.Queue, e.JobID)
		m.logger.Debug("queue entry leased",
			slog.String("job_id", e.JobID.String()),
			slog.String("queue", e.Queue),
		)
		return l, nil
	}

	return nil, nil
}

// wait sleeps for d, until the signal fires, or until ctx ends.
func (m *Manager) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var wake <-chan struct{}
	if m.signal != nil {
		wake = m.signal.Wait()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	case <-wake:
	}
	return nil
}
