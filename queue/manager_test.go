package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/backoff"
	"github.com/xraph/jobrow/ext"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/lock"
	"github.com/xraph/jobrow/queue"
	"github.com/xraph/jobrow/store/memory"
	"github.com/xraph/jobrow/txn"
)

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testConfig() jobrow.Config {
	cfg := jobrow.DefaultConfig()
	cfg.QueuePollInterval = time.Hour
	cfg.InvisibilityTimeout = 10 * time.Second
	cfg.FetchLockTimeout = time.Second
	return cfg
}

func newManager(t *testing.T, s queue.Store, locks *lock.Table, opts ...queue.Option) *queue.Manager {
	t.Helper()
	m, err := queue.NewManager(s, locks, testConfig(), opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

// enqueue inserts a job and a queue row added at addedAt.
func enqueue(t *testing.T, s *memory.Store, queueName string, addedAt time.Time) id.JobID {
	t.Helper()
	ctx := context.Background()
	j := &job.Job{ID: id.NewJobID(), CreatedAt: addedAt}
	if err := s.CreateJob(ctx, j, nil); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	e := &queue.Entry{ID: id.NewEntryID(), JobID: j.ID, Queue: queueName, AddedAt: addedAt}
	if err := s.CommitTransaction(ctx, []txn.Op{txn.AddToQueue{Entry: e}}); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
	return j.ID
}

func mustFetch(t *testing.T, m *queue.Manager, queues ...string) *queue.Lease {
	t.Helper()
	l, err := m.TryFetch(context.Background(), queues)
	if err != nil {
		t.Fatalf("TryFetch: %v", err)
	}
	if l == nil {
		t.Fatal("TryFetch returned no lease")
	}
	t.Cleanup(func() { l.Close() }) //nolint:errcheck
	return l
}

func expectEmpty(t *testing.T, m *queue.Manager, queues ...string) {
	t.Helper()
	l, err := m.TryFetch(context.Background(), queues)
	if err != nil {
		t.Fatalf("TryFetch: %v", err)
	}
	if l != nil {
		l.Close() //nolint:errcheck
		t.Fatalf("TryFetch leased job %s, want none", l.JobID())
	}
}

// ──────────────────────────────────────────────────
// Fetch
// ──────────────────────────────────────────────────

func TestNewManagerValidates(t *testing.T) {
	if _, err := queue.NewManager(nil, nil, testConfig()); !errors.Is(err, jobrow.ErrNoStore) {
		t.Fatalf("nil store err = %v", err)
	}
	cfg := testConfig()
	for _, d := range []time.Duration{0, 4 * time.Nanosecond} {
		cfg.InvisibilityTimeout = d
		if _, err := queue.NewManager(memory.New(), nil, cfg); !errors.Is(err, jobrow.ErrInvalidConfig) {
			t.Fatalf("invisibility timeout %s: err = %v", d, err)
		}
	}
}

func TestFetchIsLIFO(t *testing.T) {
	s := memory.New()
	c := newClock()
	m := newManager(t, s, nil, queue.WithClock(c.Now))

	older := enqueue(t, s, "default", c.Now().Add(-2*time.Second))
	newer := enqueue(t, s, "default", c.Now().Add(-time.Second))

	if got := mustFetch(t, m, "default").JobID(); got != newer {
		t.Fatalf("first fetch = %s, want newest %s", got, newer)
	}
	if got := mustFetch(t, m, "default").JobID(); got != older {
		t.Fatalf("second fetch = %s, want %s", got, older)
	}
	expectEmpty(t, m, "default")
}

func TestFetchOnlyNamedQueues(t *testing.T) {
	s := memory.New()
	m := newManager(t, s, nil)
	enqueue(t, s, "critical", time.Now())

	expectEmpty(t, m, "default")
	l := mustFetch(t, m, "default", "critical")
	if l.Queue() != "critical" {
		t.Fatalf("Queue = %q", l.Queue())
	}
}

func TestFetchEmptyQueueList(t *testing.T) {
	m := newManager(t, memory.New(), nil)
	if _, err := m.FetchNext(context.Background(), nil); !errors.Is(err, jobrow.ErrEmptyQueueList) {
		t.Fatalf("FetchNext err = %v", err)
	}
	if _, err := m.TryFetch(context.Background(), []string{}); !errors.Is(err, jobrow.ErrEmptyQueueList) {
		t.Fatalf("TryFetch err = %v", err)
	}
}

func TestLeaseIsExclusiveAcrossManagers(t *testing.T) {
	s := memory.New()
	c := newClock()
	// Separate lock tables model separate processes.
	a := newManager(t, s, lock.NewTable(), queue.WithClock(c.Now))
	b := newManager(t, s, lock.NewTable(), queue.WithClock(c.Now))
	enqueue(t, s, "default", c.Now())

	mustFetch(t, a, "default")
	expectEmpty(t, b, "default")

	c.Advance(9 * time.Second)
	expectEmpty(t, b, "default")
}

func TestConcurrentFetchOneWinner(t *testing.T) {
	s := memory.New()
	m := newManager(t, s, lock.NewTable())
	jobID := enqueue(t, s, "default", time.Now())

	const callers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		leases []*queue.Lease
		missed int
	)
	start := make(chan struct{})
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			<-start

			l, err := m.FetchNext(ctx, []string{"default"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				leases = append(leases, l)
			case errors.Is(err, context.DeadlineExceeded):
				missed++
			default:
				t.Errorf("FetchNext: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(leases) != 1 {
		t.Fatalf("%d callers got a lease, want exactly 1", len(leases))
	}
	if missed != callers-1 {
		t.Fatalf("%d callers timed out, want %d", missed, callers-1)
	}
	if leases[0].JobID() != jobID {
		t.Fatalf("JobID = %s, want %s", leases[0].JobID(), jobID)
	}
	if err := leases[0].Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestVisibilityTimeoutTakeover(t *testing.T) {
	s := memory.New()
	c := newClock()
	a := newManager(t, s, nil, queue.WithClock(c.Now))
	b := newManager(t, s, nil, queue.WithClock(c.Now))
	jobID := enqueue(t, s, "default", c.Now())

	stale := mustFetch(t, a, "default")
	c.Advance(11 * time.Second)

	fresh := mustFetch(t, b, "default")
	if fresh.JobID() != jobID {
		t.Fatalf("takeover leased %s, want %s", fresh.JobID(), jobID)
	}

	// The stale holder no longer matches the row; its release is a no-op.
	if err := stale.Release(context.Background()); err != nil {
		t.Fatalf("stale Release: %v", err)
	}
	_, fetched, _ := s.CountEntries(context.Background(), "default")
	if fetched != 1 {
		t.Fatalf("fetched rows = %d, stale release removed the new lease", fetched)
	}

	if err := fresh.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	enq, fetched, _ := s.CountEntries(context.Background(), "default")
	if enq+fetched != 0 {
		t.Fatalf("row survived release")
	}
}

// ──────────────────────────────────────────────────
// Lease lifecycle
// ──────────────────────────────────────────────────

func TestRenewExtendsVisibility(t *testing.T) {
	s := memory.New()
	c := newClock()
	a := newManager(t, s, nil, queue.WithClock(c.Now))
	b := newManager(t, s, nil, queue.WithClock(c.Now))
	enqueue(t, s, "default", c.Now())

	l := mustFetch(t, a, "default")
	first := l.FetchedAt()

	c.Advance(5 * time.Second)
	ok, err := l.Renew(context.Background())
	if err != nil || !ok {
		t.Fatalf("Renew = %v, %v", ok, err)
	}
	if !l.FetchedAt().After(first) {
		t.Fatalf("stamp not advanced: %v", l.FetchedAt())
	}

	// 11s after the claim but 6s after the renewal.
	c.Advance(6 * time.Second)
	expectEmpty(t, b, "default")

	// Release after renewal must match the renewed stamp.
	if err := l.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if enq, fet, _ := s.CountEntries(context.Background(), "default"); enq+fet != 0 {
		t.Fatal("release after renew left the row behind")
	}
}

func TestRenewWithFrozenClock(t *testing.T) {
	s := memory.New()
	c := newClock()
	m := newManager(t, s, nil, queue.WithClock(c.Now))
	enqueue(t, s, "default", c.Now())

	l := mustFetch(t, m, "default")
	for range 3 {
		if ok, err := l.Renew(context.Background()); err != nil || !ok {
			t.Fatalf("Renew = %v, %v", ok, err)
		}
	}
	if err := l.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestRenewAfterLoss(t *testing.T) {
	s := memory.New()
	c := newClock()
	a := newManager(t, s, nil, queue.WithClock(c.Now))
	b := newManager(t, s, nil, queue.WithClock(c.Now))
	enqueue(t, s, "default", c.Now())

	stale := mustFetch(t, a, "default")
	c.Advance(11 * time.Second)
	mustFetch(t, b, "default")

	ok, err := stale.Renew(context.Background())
	if err != nil || ok {
		t.Fatalf("Renew of lost lease = %v, %v; want false, nil", ok, err)
	}
	ok, _ = stale.Renew(context.Background())
	if ok {
		t.Fatal("lost lease renewed later")
	}
}

func TestRequeue(t *testing.T) {
	s := memory.New()
	c := newClock()
	m := newManager(t, s, nil, queue.WithClock(c.Now))
	jobID := enqueue(t, s, "default", c.Now())

	l := mustFetch(t, m, "default")
	if err := l.Requeue(context.Background()); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if l.State() != queue.Requeued {
		t.Fatalf("State = %s", l.State())
	}
	if err := l.Release(context.Background()); !errors.Is(err, jobrow.ErrLeaseClosed) {
		t.Fatalf("Release after requeue err = %v", err)
	}
	if _, err := l.Renew(context.Background()); !errors.Is(err, jobrow.ErrLeaseClosed) {
		t.Fatalf("Renew after requeue err = %v", err)
	}

	// Visible again without waiting for the timeout.
	if got := mustFetch(t, m, "default").JobID(); got != jobID {
		t.Fatalf("refetch = %s, want %s", got, jobID)
	}
}

func TestCloseRequeuesOpenLease(t *testing.T) {
	s := memory.New()
	m := newManager(t, s, nil)
	enqueue(t, s, "default", time.Now())

	l := mustFetch(t, m, "default")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l.State() != queue.Requeued {
		t.Fatalf("State = %s, want requeued", l.State())
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	mustFetch(t, m, "default")
}

func TestCloseAfterReleaseKeepsRowDeleted(t *testing.T) {
	s := memory.New()
	m := newManager(t, s, nil)
	enqueue(t, s, "default", time.Now())

	l := mustFetch(t, m, "default")
	if err := l.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l.State() != queue.Released {
		t.Fatalf("State = %s", l.State())
	}
	expectEmpty(t, m, "default")
}

func TestKeepAliveRenewsInBackground(t *testing.T) {
	s := memory.New()
	cfg := testConfig()
	cfg.InvisibilityTimeout = 100 * time.Millisecond
	m, err := queue.NewManager(s, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	enqueue(t, s, "default", time.Now())

	l := mustFetch(t, m, "default")
	first := l.FetchedAt()

	deadline := time.Now().Add(2 * time.Second)
	for !l.FetchedAt().After(first) {
		if time.Now().After(deadline) {
			t.Fatal("keep-alive never renewed the lease")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ──────────────────────────────────────────────────
// Blocking fetch
// ──────────────────────────────────────────────────

func TestFetchNextWakesOnSignal(t *testing.T) {
	s := memory.New()
	sig := queue.NewLocalSignal()
	m := newManager(t, s, nil, queue.WithSignal(sig))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan *queue.Lease, 1)
	go func() {
		l, err := m.FetchNext(ctx, []string{"default"})
		if err != nil {
			t.Error(err)
		}
		done <- l
	}()

	time.Sleep(20 * time.Millisecond)
	jobID := enqueue(t, s, "default", time.Now())
	sig.Set()

	select {
	case l := <-done:
		if l == nil || l.JobID() != jobID {
			t.Fatalf("FetchNext returned %v", l)
		}
		l.Close() //nolint:errcheck
	case <-time.After(3 * time.Second):
		t.Fatal("FetchNext did not wake on signal")
	}
}

func TestFetchNextHonorsContext(t *testing.T) {
	m := newManager(t, memory.New(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := m.FetchNext(ctx, []string{"default"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

// flakyStore fails NextVisible a fixed number of times.
type flakyStore struct {
	*memory.Store
	failures atomic.Int32
}

func (f *flakyStore) NextVisible(ctx context.Context, queues []string, threshold time.Time) (*queue.Entry, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, errors.New("connection reset")
	}
	return f.Store.NextVisible(ctx, queues, threshold)
}

func TestFetchNextRetriesStoreErrors(t *testing.T) {
	mem := memory.New()
	s := &flakyStore{Store: mem}
	s.failures.Store(3)
	m := newManager(t, s, nil, queue.WithBackoff(backoff.NewConstant(time.Millisecond)))
	jobID := enqueue(t, mem, "default", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	l, err := m.FetchNext(ctx, []string{"default"})
	if err != nil {
		t.Fatalf("FetchNext: %v", err)
	}
	defer l.Close() //nolint:errcheck
	if l.JobID() != jobID {
		t.Fatalf("JobID = %s, want %s", l.JobID(), jobID)
	}
}

func TestFetchNextStopsOnClosedLockTable(t *testing.T) {
	s := memory.New()
	locks := lock.NewTable()
	m := newManager(t, s, locks, queue.WithBackoff(backoff.NewConstant(time.Millisecond)))
	enqueue(t, s, "default", time.Now())
	locks.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := m.FetchNext(ctx, []string{"default"})
	if !errors.Is(err, jobrow.ErrLockTableClosed) {
		t.Fatalf("err = %v, want ErrLockTableClosed", err)
	}
}

func TestFetchToleratesLockTimeout(t *testing.T) {
	s := memory.New()
	locks := lock.NewTable()
	cfg := testConfig()
	cfg.FetchLockTimeout = 10 * time.Millisecond
	m, err := queue.NewManager(s, locks, cfg)
	if err != nil {
		t.Fatal(err)
	}
	enqueue(t, s, "default", time.Now())

	held, ok := locks.TryAcquire(lock.ResourceFetch)
	if !ok {
		t.Fatal("could not take fetch lock")
	}
	defer held.Release()

	mustFetch(t, m, "default")
}

// ──────────────────────────────────────────────────
// Extensions
// ──────────────────────────────────────────────────

type leaseRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *leaseRecorder) Name() string { return "lease-recorder" }

func (r *leaseRecorder) record(e string) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *leaseRecorder) OnLeaseAcquired(context.Context, string, id.JobID) error {
	return r.record("acquired")
}

func (r *leaseRecorder) OnLeaseReleased(context.Context, string, id.JobID) error {
	return r.record("released")
}

func (r *leaseRecorder) OnLeaseRequeued(context.Context, string, id.JobID) error {
	return r.record("requeued")
}

func TestLeaseEventsEmitted(t *testing.T) {
	s := memory.New()
	rec := &leaseRecorder{}
	reg := ext.NewRegistry(nil)
	reg.Register(rec)
	m := newManager(t, s, nil, queue.WithExtensions(reg))
	enqueue(t, s, "default", time.Now())
	enqueue(t, s, "default", time.Now())

	ctx := context.Background()
	mustFetch(t, m, "default").Release(ctx) //nolint:errcheck
	mustFetch(t, m, "default").Requeue(ctx) //nolint:errcheck

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []string{"acquired", "released", "acquired", "requeued"}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Fatalf("events = %v, want %v", rec.events, want)
		}
	}
}
