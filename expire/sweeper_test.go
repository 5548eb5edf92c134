package expire_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/expire"
	"github.com/xraph/jobrow/ext"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/lock"
	"github.com/xraph/jobrow/store/memory"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// rows is an in-memory table of expirable rows for one kind.
type rows struct {
	mu      sync.Mutex
	expired int
	live    int
	calls   int
}

func (r *rows) purge(_ context.Context, _ time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	n := min(limit, r.expired)
	r.expired -= n
	return n, nil
}

func TestSweepBatchesUntilShort(t *testing.T) {
	t.Parallel()
	r := &rows{expired: 2500, live: 10}
	reg, err := expire.NewRegistry(expire.Registration{Kind: expire.KindJob, Purge: r.purge})
	if err != nil {
		t.Fatal(err)
	}

	s := expire.NewSweeper(reg, nil, expire.WithBatchDelay(0))
	sizes, err := s.Batches(context.Background(), expire.KindJob)
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	if want := []int{1000, 1000, 500}; !slices.Equal(sizes, want) {
		t.Fatalf("batches = %v, want %v", sizes, want)
	}
	if r.expired != 0 || r.live != 10 {
		t.Fatalf("left expired=%d live=%d", r.expired, r.live)
	}
}

func TestSweepExactMultipleIssuesEmptyBatch(t *testing.T) {
	t.Parallel()
	r := &rows{expired: 2000}
	reg, _ := expire.NewRegistry(expire.Registration{Kind: expire.KindSet, Purge: r.purge})

	s := expire.NewSweeper(reg, nil, expire.WithBatchDelay(0))
	sizes, err := s.Batches(context.Background(), expire.KindSet)
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	if want := []int{1000, 1000, 0}; !slices.Equal(sizes, want) {
		t.Fatalf("batches = %v, want %v", sizes, want)
	}
}

func TestRunPassOrderAndCounts(t *testing.T) {
	t.Parallel()
	var order []expire.Kind
	mk := func(k expire.Kind, n int) expire.Registration {
		left := n
		return expire.Registration{Kind: k, Purge: func(_ context.Context, _ time.Time, limit int) (int, error) {
			order = append(order, k)
			d := min(limit, left)
			left -= d
			return d, nil
		}}
	}
	reg, err := expire.NewRegistry(
		mk(expire.KindAggregatedCounter, 3),
		mk(expire.KindJob, 0),
		mk(expire.KindList, 1),
	)
	if err != nil {
		t.Fatal(err)
	}

	s := expire.NewSweeper(reg, nil, expire.WithBatchDelay(0), expire.WithBatchSize(10))
	removed, err := s.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if removed[expire.KindAggregatedCounter] != 3 || removed[expire.KindList] != 1 || removed[expire.KindJob] != 0 {
		t.Fatalf("removed = %v", removed)
	}
	want := []expire.Kind{expire.KindAggregatedCounter, expire.KindJob, expire.KindList}
	if !slices.Equal(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestRunPassContinuesPastFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	var swept []expire.Kind
	reg, _ := expire.NewRegistry(
		expire.Registration{Kind: expire.KindJob, Purge: func(context.Context, time.Time, int) (int, error) {
			return 0, boom
		}},
		expire.Registration{Kind: expire.KindHash, Purge: func(context.Context, time.Time, int) (int, error) {
			swept = append(swept, expire.KindHash)
			return 0, nil
		}},
	)

	s := expire.NewSweeper(reg, nil, expire.WithBatchDelay(0))
	_, err := s.RunPass(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(swept) != 1 {
		t.Fatal("later kind not swept after failure")
	}
}

func TestRegistryValidation(t *testing.T) {
	t.Parallel()
	noop := func(context.Context, time.Time, int) (int, error) { return 0, nil }

	if _, err := expire.NewRegistry(
		expire.Registration{Kind: expire.KindJob, Purge: noop},
		expire.Registration{Kind: expire.KindJob, Purge: noop},
	); err == nil {
		t.Fatal("duplicate kind accepted")
	}
	if _, err := expire.NewRegistry(expire.Registration{Kind: expire.KindJob}); err == nil {
		t.Fatal("registration without purge accepted")
	}

	reg := expire.StoreRegistry(memory.New())
	kinds := make([]expire.Kind, 0)
	for _, e := range reg.Entries() {
		kinds = append(kinds, e.Kind)
	}
	if !slices.Equal(kinds, expire.Kinds) {
		t.Fatalf("store registry order = %v, want %v", kinds, expire.Kinds)
	}
	if _, err := reg.Lookup("Nope"); !errors.Is(err, jobrow.ErrUnknownKind) {
		t.Fatalf("Lookup err = %v", err)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()
	for _, k := range expire.Kinds {
		got, err := expire.ParseKind(string(k))
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := expire.ParseKind("Widget"); !errors.Is(err, jobrow.ErrUnknownKind) {
		t.Fatalf("ParseKind(Widget) err = %v", err)
	}
}

func TestSweeperAgainstStore(t *testing.T) {
	t.Parallel()
	s := memory.New()
	ctx := context.Background()

	past := now.Add(-time.Second)
	future := now.Add(time.Hour)
	for i := range 2500 {
		exp := past
		if i%2 == 0 {
			exp = past.Add(-time.Duration(i) * time.Millisecond)
		}
		if err := s.CreateJob(ctx, &job.Job{ID: id.NewJobID(), ExpireAt: &exp}, nil); err != nil {
			t.Fatal(err)
		}
	}
	keep := &job.Job{ID: id.NewJobID(), ExpireAt: &future}
	if err := s.CreateJob(ctx, keep, nil); err != nil {
		t.Fatal(err)
	}

	sw := expire.NewSweeper(expire.StoreRegistry(s), lock.NewTable(),
		expire.WithBatchDelay(0),
		expire.WithClock(func() time.Time { return now }),
	)
	sizes, err := sw.Batches(ctx, expire.KindJob)
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	if want := []int{1000, 1000, 500}; !slices.Equal(sizes, want) {
		t.Fatalf("batches = %v, want %v", sizes, want)
	}
	if _, err := s.GetJob(ctx, keep.ID); err != nil {
		t.Fatalf("future job removed: %v", err)
	}
}

func TestSweeperToleratesHeldLock(t *testing.T) {
	t.Parallel()
	locks := lock.NewTable()
	held, _ := locks.TryAcquire(lock.ResourceExpiration)
	defer held.Release()

	r := &rows{expired: 5}
	reg, _ := expire.NewRegistry(expire.Registration{Kind: expire.KindHash, Purge: r.purge})
	s := expire.NewSweeper(reg, locks, expire.WithBatchDelay(0), expire.WithLockTimeout(10*time.Millisecond))

	removed, err := s.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if removed[expire.KindHash] != 5 {
		t.Fatalf("removed = %v", removed)
	}
}

func TestSweeperHonorsContext(t *testing.T) {
	t.Parallel()
	r := &rows{expired: 5000}
	reg, _ := expire.NewRegistry(expire.Registration{Kind: expire.KindJob, Purge: r.purge})
	s := expire.NewSweeper(reg, nil, expire.WithBatchDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.RunPass(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if r.calls != 1 {
		t.Fatalf("purge called %d times, want 1", r.calls)
	}
}

type expiredRecorder struct {
	mu    sync.Mutex
	kinds map[string]int
}

func (r *expiredRecorder) Name() string { return "expired-recorder" }

func (r *expiredRecorder) OnRecordsExpired(_ context.Context, kind string, removed int) error {
	r.mu.Lock()
	r.kinds[kind] += removed
	r.mu.Unlock()
	return nil
}

func TestSweeperEmitsExpired(t *testing.T) {
	t.Parallel()
	rec := &expiredRecorder{kinds: make(map[string]int)}
	exts := ext.NewRegistry(nil)
	exts.Register(rec)

	r := &rows{expired: 7}
	reg, _ := expire.NewRegistry(expire.Registration{Kind: expire.KindList, Purge: r.purge})
	s := expire.NewSweeper(reg, nil, expire.WithBatchDelay(0), expire.WithExtensions(exts))
	if err := s.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rec.kinds["List"] != 7 {
		t.Fatalf("recorded %v", rec.kinds)
	}
}
