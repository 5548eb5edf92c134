package expire

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

// Sweeper deletes expired rows of every registered kind.
type Sweeper struct {
	registry    *Registry
	locks       *lock.Table
	exts        *ext.Registry
	logger      *slog.Logger
	now         func() time.Time
	batchSize   int
	batchDelay  time.Duration
	lockTimeout time.Duration
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// WithExtensions sets the registry notified after each batch.
func WithExtensions(r *ext.Registry) Option {
	return func(s *Sweeper) { s.exts = r }
}

// WithBatchSize sets the maximum number of rows deleted per batch.
func WithBatchSize(n int) Option {
	return func(s *Sweeper) { s.batchSize = n }
}

// WithBatchDelay sets the pause between two batches.
func WithBatchDelay(d time.Duration) Option {
	return func(s *Sweeper) { s.batchDelay = d }
}

// WithLockTimeout bounds the wait for the expiration lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Sweeper) { s.lockTimeout = d }
}

// WithClock replaces time.Now for the expiration cutoff.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// NewSweeper creates a Sweeper deleting 1000 rows per batch with a one
// second pause between batches.
func NewSweeper(registry *Registry, locks *lock.Table, opts ...Option) *Sweeper {
	s := &Sweeper{
		registry:    registry,
		locks:       locks,
		logger:      slog.Default(),
		now:         time.Now,
		batchSize:   1000,
		batchDelay:  time.Second,
		lockTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = lock.NewTable()
	}
	if s.batchSize <= 0 {
		s.batchSize = 1000
	}
	return s
}

// Name implements process.Process.
func (s *Sweeper) Name() string { return "expiration-manager" }

// Execute runs one full pass over every kind.
func (s *Sweeper) Execute(ctx context.Context) error {
	_, err := s.RunPass(ctx)
	return err
}

// RunPass sweeps every kind once, in registry order, and returns the number
// of rows removed per kind. A kind that fails is logged and the pass moves
// on; the first such error is returned at the end.
func (s *Sweeper) RunPass(ctx context.Context) (map[Kind]int, error) {
	cutoff := s.now().UTC()
	removed := make(map[Kind]int)

	var firstErr error
	for _, reg := range s.registry.Entries() {
		n, err := s.sweepKind(ctx, reg, cutoff)
		removed[reg.Kind] = n
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return removed, ctxErr
		}
		s.logger.Error("expiration sweep failed",
			slog.String("kind", string(reg.Kind)),
			slog.String("error", err.Error()),
		)
		if firstErr == nil {
			firstErr = err
		}
	}
	return removed, firstErr
}

// Batches sweeps a single kind and returns the size of every batch issued.
func (s *Sweeper) Batches(ctx context.Context, kind Kind) ([]int, error) {
	purge, err := s.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	var sizes []int
	_, err = s.sweep(ctx, Registration{Kind: kind, Purge: purge}, s.now().UTC(), func(n int) {
		sizes = append(sizes, n)
	})
	return sizes, err
}

func (s *Sweeper) sweepKind(ctx context.Context, reg Registration, cutoff time.Time) (int, error) {
	s.logger.Debug("removing outdated records", slog.String("kind", string(reg.Kind)))
	return s.sweep(ctx, reg, cutoff, nil)
}

func (s *Sweeper) sweep(ctx context.Context, reg Registration, cutoff time.Time, observe func(int)) (int, error) {
	pacer := backoff.NewPacer(s.batchDelay)

	total := 0
	for {
		if err := pacer.Wait(ctx); err != nil {
			return total, err
		}

		n, err := s.batch(ctx, reg, cutoff)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", reg.Kind, err)
		}
		if observe != nil {
			observe(n)
		}
		total += n
		if n > 0 {
			s.exts.EmitRecordsExpired(ctx, string(reg.Kind), n)
			s.logger.Debug("removed outdated records",
				slog.String("kind", string(reg.Kind)),
				slog.Int("removed", n),
			)
		}
		if n < s.batchSize {
			return total, nil
		}
	}
}

func (s *Sweeper) batch(ctx context.Context, reg Registration, cutoff time.Time) (int, error) {
	h, err := s.locks.Acquire(ctx, lock.ResourceExpiration, s.lockTimeout)
	if err != nil {
		if !errors.Is(err, jobrow.ErrLockTimeout) {
			return 0, err
		}
		s.logger.Warn("expiration lock not acquired, purging without exclusion",
			slog.String("kind", string(reg.Kind)),
		)
	}
	defer h.Release()

	return reg.Purge(ctx, cutoff, s.batchSize)
}
