package counter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/backoff"
	"github.com/xraph/jobrow/ext"
)

// Aggregator folds raw counters into aggregates.
type Aggregator struct {
	store     Store
	exts      *ext.Registry
	logger    *slog.Logger
	batchSize int
	passDelay time.Duration
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = l }
}

// WithExtensions sets the registry notified after each pass.
func WithExtensions(r *ext.Registry) AggregatorOption {
	return func(a *Aggregator) { a.exts = r }
}

// WithBatchSize sets how many raw rows one pass reads.
func WithBatchSize(n int) AggregatorOption {
	return func(a *Aggregator) { a.batchSize = n }
}

// WithPassDelay sets the pause between consecutive passes that folded rows.
func WithPassDelay(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.passDelay = d }
}

// NewAggregator creates an Aggregator with a batch of 10000 rows and a
// 500ms pause between passes.
func NewAggregator(store Store, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		store:     store,
		logger:    slog.Default(),
		batchSize: 10000,
		passDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.batchSize <= 0 {
		a.batchSize = 10000
	}
	return a
}

// Name implements process.Process.
func (a *Aggregator) Name() string { return "counter-aggregator" }

// RunPass folds one batch and returns the number of raw rows consumed.
// It returns jobrow.ErrCountersStale when another aggregator folded part of
// the batch first; nothing was applied and the rows should be read again.
func (a *Aggregator) RunPass(ctx context.Context) (int, error) {
	rows, err := a.store.ListCounters(ctx, a.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list counters: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	folds, consumed := Group(rows)
	if err := a.store.FoldCounters(ctx, folds, consumed); err != nil {
		return 0, fmt.Errorf("fold counters: %w", err)
	}

	a.exts.EmitCountersFolded(ctx, len(consumed), len(folds))
	a.logger.Debug("counters folded",
		slog.Int("rows", len(consumed)),
		slog.Int("keys", len(folds)),
	)
	return len(consumed), nil
}

// Execute runs passes until one folds nothing, pausing between passes that
// did fold rows.
func (a *Aggregator) Execute(ctx context.Context) error {
	_, err := a.Drain(ctx)
	return err
}

// Drain is Execute that also reports the number of rows folded.
func (a *Aggregator) Drain(ctx context.Context) (int, error) {
	pacer := backoff.NewPacer(a.passDelay)

	total := 0
	for {
		if err := pacer.Wait(ctx); err != nil {
			return total, err
		}

		n, err := a.RunPass(ctx)
		if errors.Is(err, jobrow.ErrCountersStale) {
			a.logger.Debug("counter batch folded elsewhere, rereading")
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 {
			break
		}
	}

	if total > 0 {
		a.logger.Info("counter aggregation finished", slog.Int("rows", total))
	}
	return total, nil
}
