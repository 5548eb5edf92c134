package storetest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/queue"
	"github.com/xraph/jobrow/store"
	"github.com/xraph/jobrow/txn"
)

// Factory returns an empty, migrated store. It is called once per subtest
// and is responsible for registering its own cleanup.
type Factory func(t *testing.T) store.Store

// Run executes the full conformance suite against the backend built by f.
func Run(t *testing.T, f Factory) {
	t.Helper()

	suites := []struct {
		name string
		fn   func(*testing.T, Factory)
	}{
		{"Lifecycle", testLifecycle},
		{"Jobs", testJobs},
		{"Parameters", testParameters},
		{"States", testStates},
		{"Queue", testQueue},
		{"Counters", testCounters},
		{"Hashes", testHashes},
		{"Sets", testSets},
		{"Lists", testLists},
		{"Servers", testServers},
		{"Expiration", testExpiration},
		{"Transactions", testTransactions},
	}
	for _, s := range suites {
		t.Run(s.name, func(t *testing.T) { s.fn(t, f) })
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// base is a fixed instant with millisecond precision so every backend
// round-trips it exactly.
var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func commit(t *testing.T, s store.Store, ops ...txn.Op) {
	t.Helper()
	if err := s.CommitTransaction(context.Background(), ops); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
}

func createJob(t *testing.T, s store.Store, createdAt time.Time, expireAt *time.Time) *job.Job {
	t.Helper()
	j := &job.Job{
		ID:             id.NewJobID(),
		InvocationData: []byte(`{"type":"Mailer","method":"Send"}`),
		Arguments:      []byte(`["a@example.com"]`),
		CreatedAt:      createdAt,
		ExpireAt:       expireAt,
	}
	if err := s.CreateJob(context.Background(), j, nil); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return j
}

func enqueue(t *testing.T, s store.Store, queueName string, addedAt time.Time) *queue.Entry {
	t.Helper()
	j := createJob(t, s, addedAt, nil)
	e := &queue.Entry{ID: id.NewEntryID(), JobID: j.ID, Queue: queueName, AddedAt: addedAt}
	commit(t, s, txn.AddToQueue{Entry: e})
	return e
}

func state(jobID id.JobID, name string, at time.Time) *job.State {
	return &job.State{
		ID:        id.NewStateID(),
		JobID:     jobID,
		Name:      name,
		Reason:    "test",
		CreatedAt: at,
		Data:      map[string]string{"at": at.Format(time.RFC3339)},
	}
}

func equalStrings(t *testing.T, what string, got, want []string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Fatalf("%s = %v, want %v", what, got, want)
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func testLifecycle(t *testing.T, f Factory) {
	s := f(t)
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Jobs
// ──────────────────────────────────────────────────

func testJobs(t *testing.T, f Factory) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		s := f(t)
		j := createJob(t, s, base, ptr(base.Add(time.Hour)))

		got, err := s.GetJob(ctx, j.ID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.ID != j.ID {
			t.Errorf("ID = %s, want %s", got.ID, j.ID)
		}
		if string(got.InvocationData) != string(j.InvocationData) {
			t.Errorf("InvocationData = %s", got.InvocationData)
		}
		if string(got.Arguments) != string(j.Arguments) {
			t.Errorf("Arguments = %s", got.Arguments)
		}
		if !got.CreatedAt.Equal(base) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
		}
		if got.ExpireAt == nil || !got.ExpireAt.Equal(base.Add(time.Hour)) {
			t.Errorf("ExpireAt = %v", got.ExpireAt)
		}
		if got.StateName != "" {
			t.Errorf("StateName = %q, want empty", got.StateName)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := f(t)
		_, err := s.GetJob(ctx, id.NewJobID())
		if !errors.Is(err, jobrow.ErrJobNotFound) {
			t.Fatalf("err = %v, want ErrJobNotFound", err)
		}
	})

	t.Run("ByState", func(t *testing.T) {
		s := f(t)
		var failed []*job.Job
		for i := range 3 {
			j := createJob(t, s, base.Add(time.Duration(i)*time.Second), nil)
			failed = append(failed, j)
			commit(t, s, txn.SetJobState{State: state(j.ID, job.StateFailed, base.Add(time.Duration(i)*time.Second))})
		}
		other := createJob(t, s, base, nil)
		commit(t, s, txn.SetJobState{State: state(other.ID, job.StateSucceeded, base)})

		n, err := s.CountJobsByState(ctx, job.StateFailed)
		if err != nil || n != 3 {
			t.Fatalf("CountJobsByState = %d, %v; want 3", n, err)
		}
		jobs, err := s.ListJobsByState(ctx, job.StateFailed, job.ListOpts{Limit: 2})
		if err != nil {
			t.Fatalf("ListJobsByState: %v", err)
		}
		if len(jobs) != 2 || jobs[0].ID != failed[2].ID || jobs[1].ID != failed[1].ID {
			t.Fatalf("ListJobsByState returned wrong page")
		}
		jobs, err = s.ListJobsByState(ctx, job.StateFailed, job.ListOpts{Limit: 2, Offset: 2})
		if err != nil || len(jobs) != 1 || jobs[0].ID != failed[0].ID {
			t.Fatalf("second page = %d jobs, %v", len(jobs), err)
		}
	})
}

func testParameters(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f(t)

	j := &job.Job{ID: id.NewJobID(), InvocationData: []byte(`{}`), CreatedAt: base}
	params := []*job.Parameter{
		{ID: id.NewParameterID(), Name: "RetryCount", Value: "0"},
		{ID: id.NewParameterID(), Name: "CurrentCulture", Value: "en-US"},
	}
	if err := s.CreateJob(ctx, j, params); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := s.SetParameter(ctx, j.ID, "RetryCount", "1"); err != nil {
		t.Fatalf("SetParameter replace: %v", err)
	}
	if err := s.SetParameter(ctx, j.ID, "Culture", "fr"); err != nil {
		t.Fatalf("SetParameter insert: %v", err)
	}

	v, err := s.GetParameter(ctx, j.ID, "RetryCount")
	if err != nil || v != "1" {
		t.Fatalf("GetParameter = %q, %v; want 1", v, err)
	}
	if _, err := s.GetParameter(ctx, j.ID, "Missing"); !errors.Is(err, jobrow.ErrParameterNotFound) {
		t.Fatalf("missing parameter err = %v", err)
	}
	if err := s.SetParameter(ctx, id.NewJobID(), "x", "y"); !errors.Is(err, jobrow.ErrJobNotFound) {
		t.Fatalf("SetParameter on missing job err = %v", err)
	}

	list, err := s.ListParameters(ctx, j.ID)
	if err != nil {
		t.Fatalf("ListParameters: %v", err)
	}
	names := make([]string, len(list))
	for i, p := range list {
		names[i] = p.Name
		if p.JobID != j.ID {
			t.Errorf("parameter %s has JobID %s", p.Name, p.JobID)
		}
	}
	equalStrings(t, "parameter names", names, []string{"Culture", "CurrentCulture", "RetryCount"})
}

func testStates(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f(t)
	j := createJob(t, s, base, nil)

	enq := state(j.ID, job.StateEnqueued, base)
	proc := state(j.ID, job.StateProcessing, base.Add(time.Second))
	note := state(j.ID, "Note", base.Add(2*time.Second))
	commit(t, s, txn.SetJobState{State: enq})
	commit(t, s, txn.SetJobState{State: proc}, txn.AddJobState{State: note})

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.StateID != proc.ID || got.StateName != job.StateProcessing {
		t.Fatalf("current state = %s/%s, want %s/Processing", got.StateID, got.StateName, proc.ID)
	}

	st, err := s.GetState(ctx, proc.ID)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if st.Name != job.StateProcessing || st.Reason != "test" || st.Data["at"] == "" {
		t.Fatalf("GetState = %+v", st)
	}
	if _, err := s.GetState(ctx, id.NewStateID()); !errors.Is(err, jobrow.ErrStateNotFound) {
		t.Fatalf("missing state err = %v", err)
	}

	history, err := s.ListStates(ctx, j.ID)
	if err != nil {
		t.Fatalf("ListStates: %v", err)
	}
	names := make([]string, len(history))
	for i, h := range history {
		names[i] = h.Name
	}
	equalStrings(t, "history", names, []string{"Note", job.StateProcessing, job.StateEnqueued})
}

// ──────────────────────────────────────────────────
// Queue
// ──────────────────────────────────────────────────

func testQueue(t *testing.T, f Factory) {
	ctx := context.Background()

	t.Run("NextVisibleIsLIFO", func(t *testing.T) {
		s := f(t)
		enqueue(t, s, "default", base)
		newest := enqueue(t, s, "default", base.Add(time.Second))
		enqueue(t, s, "other", base.Add(2*time.Second))

		e, err := s.NextVisible(ctx, []string{"default"}, base)
		if err != nil {
			t.Fatalf("NextVisible: %v", err)
		}
		if e == nil || e.ID != newest.ID {
			t.Fatalf("NextVisible = %v, want newest entry %s", e, newest.ID)
		}
	})

	t.Run("NextVisibleEmpty", func(t *testing.T) {
		s := f(t)
		e, err := s.NextVisible(ctx, []string{"default"}, base)
		if err != nil || e != nil {
			t.Fatalf("NextVisible = %v, %v; want nil, nil", e, err)
		}
	})

	t.Run("ConcurrentClaimsOneWinner", func(t *testing.T) {
		s := f(t)
		enqueue(t, s, "default", base)

		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				e, err := s.NextVisible(ctx, []string{"default"}, base)
				if err != nil {
					t.Errorf("NextVisible: %v", err)
					return
				}
				if e == nil {
					return
				}
				ok, err := s.StampEntry(ctx, e.ID, e.FetchedAt, base.Add(time.Duration(i+1)*time.Second))
				if err != nil {
					t.Errorf("StampEntry: %v", err)
					return
				}
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		if n := wins.Load(); n != 1 {
			t.Fatalf("%d claims succeeded, want 1", n)
		}
	})

	t.Run("ClaimIsExclusive", func(t *testing.T) {
		s := f(t)
		e := enqueue(t, s, "default", base)
		stamp := base.Add(time.Minute)

		ok, err := s.StampEntry(ctx, e.ID, nil, stamp)
		if err != nil || !ok {
			t.Fatalf("first claim = %v, %v", ok, err)
		}
		ok, err = s.StampEntry(ctx, e.ID, nil, stamp.Add(time.Second))
		if err != nil || ok {
			t.Fatalf("second claim = %v, %v; want false", ok, err)
		}

		// Leased rows are invisible until the threshold passes the stamp.
		got, err := s.NextVisible(ctx, []string{"default"}, stamp)
		if err != nil || got != nil {
			t.Fatalf("leased row visible: %v, %v", got, err)
		}
		got, err = s.NextVisible(ctx, []string{"default"}, stamp.Add(time.Millisecond))
		if err != nil || got == nil || !queue.SameStamp(got.FetchedAt, stamp) {
			t.Fatalf("timed out row not visible: %v, %v", got, err)
		}
	})

	t.Run("RenewMatchesStamp", func(t *testing.T) {
		s := f(t)
		e := enqueue(t, s, "default", base)
		first := base.Add(time.Minute)
		second := first.Add(2 * time.Second)

		if ok, _ := s.StampEntry(ctx, e.ID, nil, first); !ok {
			t.Fatal("claim failed")
		}
		if ok, err := s.StampEntry(ctx, e.ID, ptr(base), second); err != nil || ok {
			t.Fatalf("renew with stale stamp = %v, %v; want false", ok, err)
		}
		if ok, err := s.StampEntry(ctx, e.ID, ptr(first), second); err != nil || !ok {
			t.Fatalf("renew = %v, %v", ok, err)
		}
		if ok, _ := s.DeleteEntry(ctx, e.ID, "default", first); ok {
			t.Fatal("delete with pre-renewal stamp succeeded")
		}
		if ok, err := s.DeleteEntry(ctx, e.ID, "default", second); err != nil || !ok {
			t.Fatalf("delete with current stamp = %v, %v", ok, err)
		}
	})

	t.Run("DeleteChecksQueue", func(t *testing.T) {
		s := f(t)
		e := enqueue(t, s, "default", base)
		stamp := base.Add(time.Minute)
		s.StampEntry(ctx, e.ID, nil, stamp) //nolint:errcheck

		if ok, _ := s.DeleteEntry(ctx, e.ID, "critical", stamp); ok {
			t.Fatal("delete in wrong queue succeeded")
		}
		if ok, _ := s.DeleteEntry(ctx, e.ID, "default", stamp); !ok {
			t.Fatal("delete failed")
		}
		if ok, err := s.DeleteEntry(ctx, e.ID, "default", stamp); err != nil || ok {
			t.Fatalf("second delete = %v, %v; want false, nil", ok, err)
		}
	})

	t.Run("Requeue", func(t *testing.T) {
		s := f(t)
		e := enqueue(t, s, "default", base)
		stamp := base.Add(time.Minute)
		s.StampEntry(ctx, e.ID, nil, stamp) //nolint:errcheck

		if ok, _ := s.RequeueEntry(ctx, e.ID, stamp.Add(time.Second)); ok {
			t.Fatal("requeue with wrong stamp succeeded")
		}
		if ok, err := s.RequeueEntry(ctx, e.ID, stamp); err != nil || !ok {
			t.Fatalf("requeue = %v, %v", ok, err)
		}
		got, err := s.NextVisible(ctx, []string{"default"}, base)
		if err != nil || got == nil || got.FetchedAt != nil {
			t.Fatalf("requeued row = %v, %v", got, err)
		}
		if ok, _ := s.RequeueEntry(ctx, e.ID, stamp); ok {
			t.Fatal("second requeue succeeded")
		}
	})

	t.Run("Listing", func(t *testing.T) {
		s := f(t)
		a := enqueue(t, s, "default", base)
		b := enqueue(t, s, "default", base.Add(time.Second))
		enqueue(t, s, "critical", base)
		s.StampEntry(ctx, b.ID, nil, base.Add(time.Minute)) //nolint:errcheck

		names, err := s.ListQueues(ctx)
		if err != nil {
			t.Fatalf("ListQueues: %v", err)
		}
		equalStrings(t, "queues", names, []string{"critical", "default"})

		waiting, err := s.ListEntries(ctx, "default", false, queue.ListOpts{})
		if err != nil || len(waiting) != 1 || waiting[0].ID != a.ID {
			t.Fatalf("waiting = %v, %v", waiting, err)
		}
		fetched, err := s.ListEntries(ctx, "default", true, queue.ListOpts{})
		if err != nil || len(fetched) != 1 || fetched[0].ID != b.ID {
			t.Fatalf("fetched = %v, %v", fetched, err)
		}

		enq, fet, err := s.CountEntries(ctx, "default")
		if err != nil || enq != 1 || fet != 1 {
			t.Fatalf("CountEntries = %d, %d, %v; want 1, 1", enq, fet, err)
		}
	})
}

// ──────────────────────────────────────────────────
// Counters
// ──────────────────────────────────────────────────

func incr(key string, value int64, expireAt *time.Time) txn.Op {
	return txn.IncrementCounter{Counter: &counter.Counter{
		ID: id.NewCounterID(), Key: key, Value: value, ExpireAt: expireAt,
	}}
}

func testCounters(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f(t)

	commit(t, s,
		incr("stats:succeeded", 1, nil),
		incr("stats:succeeded", 1, ptr(base.Add(time.Hour))),
		incr("stats:succeeded", 1, ptr(base.Add(2*time.Hour))),
		incr("stats:deleted", -1, nil),
	)

	rows, err := s.ListCounters(ctx, 10)
	if err != nil || len(rows) != 4 {
		t.Fatalf("ListCounters = %d rows, %v", len(rows), err)
	}
	if limited, _ := s.ListCounters(ctx, 2); len(limited) != 2 {
		t.Fatalf("ListCounters(2) = %d rows", len(limited))
	}

	if v, err := s.CounterValue(ctx, "stats:succeeded"); err != nil || v != 3 {
		t.Fatalf("CounterValue before fold = %d, %v", v, err)
	}
	if _, err := s.GetAggregate(ctx, "stats:succeeded"); !errors.Is(err, jobrow.ErrCounterNotFound) {
		t.Fatalf("GetAggregate before fold err = %v", err)
	}

	folds, consumed := counter.Group(rows)
	if err := s.FoldCounters(ctx, folds, consumed); err != nil {
		t.Fatalf("FoldCounters: %v", err)
	}
	if rest, _ := s.ListCounters(ctx, 10); len(rest) != 0 {
		t.Fatalf("%d counters left after fold", len(rest))
	}

	agg, err := s.GetAggregate(ctx, "stats:succeeded")
	if err != nil {
		t.Fatalf("GetAggregate: %v", err)
	}
	if agg.Value != 3 {
		t.Errorf("aggregate value = %d, want 3", agg.Value)
	}
	if agg.ExpireAt == nil || !agg.ExpireAt.Equal(base.Add(2*time.Hour)) {
		t.Errorf("aggregate ExpireAt = %v, want latest", agg.ExpireAt)
	}

	// Folding a batch that was already folded changes nothing.
	if err := s.FoldCounters(ctx, folds, consumed); !errors.Is(err, jobrow.ErrCountersStale) {
		t.Fatalf("refold err = %v, want ErrCountersStale", err)
	}
	if v, err := s.CounterValue(ctx, "stats:succeeded"); err != nil || v != 3 {
		t.Fatalf("CounterValue after refold = %d, %v; want 3", v, err)
	}

	// A batch with one row already gone is rejected whole.
	commit(t, s, incr("stats:retried", 2, nil))
	fresh, _ := s.ListCounters(ctx, 10)
	freshFolds, freshIDs := counter.Group(fresh)
	mixed := append(append([]id.CounterID{}, freshIDs...), consumed[0])
	if err := s.FoldCounters(ctx, freshFolds, mixed); !errors.Is(err, jobrow.ErrCountersStale) {
		t.Fatalf("partial refold err = %v, want ErrCountersStale", err)
	}
	if rest, _ := s.ListCounters(ctx, 10); len(rest) != 1 {
		t.Fatalf("%d raw rows after rejected fold, want 1", len(rest))
	}
	if _, err := s.GetAggregate(ctx, "stats:retried"); !errors.Is(err, jobrow.ErrCounterNotFound) {
		t.Fatalf("rejected fold created an aggregate: %v", err)
	}
	if err := s.FoldCounters(ctx, freshFolds, freshIDs); err != nil {
		t.Fatalf("FoldCounters fresh: %v", err)
	}
	if v, err := s.CounterValue(ctx, "stats:retried"); err != nil || v != 2 {
		t.Fatalf("CounterValue stats:retried = %d, %v; want 2", v, err)
	}

	// A second fold adds to the existing aggregate.
	commit(t, s, incr("stats:succeeded", 5, nil))
	rows, _ = s.ListCounters(ctx, 10)
	folds, consumed = counter.Group(rows)
	if err := s.FoldCounters(ctx, folds, consumed); err != nil {
		t.Fatalf("second FoldCounters: %v", err)
	}
	if v, err := s.CounterValue(ctx, "stats:succeeded"); err != nil || v != 8 {
		t.Fatalf("CounterValue after folds = %d, %v; want 8", v, err)
	}
	if v, err := s.CounterValue(ctx, "stats:deleted"); err != nil || v != -1 {
		t.Fatalf("negative counter = %d, %v", v, err)
	}
	if v, err := s.CounterValue(ctx, "unknown"); err != nil || v != 0 {
		t.Fatalf("unknown counter = %d, %v", v, err)
	}
}

// ──────────────────────────────────────────────────
// Collections
// ──────────────────────────────────────────────────

func hashOp(key string, fields ...string) txn.Op {
	op := txn.SetRangeInHash{Key: key}
	for i := 0; i+1 < len(fields); i += 2 {
		op.Fields = append(op.Fields, &collection.HashField{
			ID: id.NewHashID(), Key: key, Field: fields[i], Value: fields[i+1],
		})
	}
	return op
}

func testHashes(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f(t)

	commit(t, s, hashOp("recurring:a", "Cron", "* * * * *", "Queue", "default"))
	commit(t, s, hashOp("recurring:a", "Queue", "critical"), hashOp("recurring:b", "Cron", "@daily"))

	h, err := s.GetHash(ctx, "recurring:a")
	if err != nil {
		t.Fatalf("GetHash: %v", err)
	}
	if len(h) != 2 || h["Queue"] != "critical" || h["Cron"] != "* * * * *" {
		t.Fatalf("GetHash = %v", h)
	}
	if empty, err := s.GetHash(ctx, "missing"); err != nil || len(empty) != 0 {
		t.Fatalf("GetHash(missing) = %v, %v", empty, err)
	}
	if v, err := s.GetHashValue(ctx, "recurring:b", "Cron"); err != nil || v != "@daily" {
		t.Fatalf("GetHashValue = %q, %v", v, err)
	}
	if _, err := s.GetHashValue(ctx, "recurring:b", "Nope"); !errors.Is(err, jobrow.ErrHashFieldNotFound) {
		t.Fatalf("missing field err = %v", err)
	}
	if n, _ := s.CountHash(ctx, "recurring:a"); n != 2 {
		t.Fatalf("CountHash = %d", n)
	}

	if ttl, _ := s.HashTTL(ctx, "recurring:a"); ttl != collection.NoTTL {
		t.Fatalf("HashTTL without expiry = %v", ttl)
	}
	far := time.Now().UTC().Add(time.Hour)
	commit(t, s, txn.ExpireCollection{Kind: collection.KindHash, Key: "recurring:a", ExpireAt: &far})
	if ttl, _ := s.HashTTL(ctx, "recurring:a"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("HashTTL = %v", ttl)
	}
	if ttl, _ := s.HashTTL(ctx, "recurring:b"); ttl != collection.NoTTL {
		t.Fatalf("HashTTL leaked across keys: %v", ttl)
	}
	commit(t, s, txn.ExpireCollection{Kind: collection.KindHash, Key: "recurring:a"})
	if ttl, _ := s.HashTTL(ctx, "recurring:a"); ttl != collection.NoTTL {
		t.Fatalf("HashTTL after persist = %v", ttl)
	}

	commit(t, s, txn.RemoveHash{Key: "recurring:a"})
	if n, _ := s.CountHash(ctx, "recurring:a"); n != 0 {
		t.Fatalf("CountHash after remove = %d", n)
	}
}

func addSet(key, value string, score float64) txn.Op {
	return txn.AddToSet{Member: &collection.SetMember{ID: id.NewSetID(), Key: key, Value: value, Score: score}}
}

func testSets(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f(t)

	commit(t, s,
		addSet("schedule", "c", 30),
		addSet("schedule", "a", 10),
		addSet("schedule", "b", 20),
		addSet("schedule", "d", 20),
		addSet("other", "x", 0),
	)
	// Re-adding updates the score.
	commit(t, s, addSet("schedule", "c", 5))

	all, err := s.ListSet(ctx, "schedule")
	if err != nil {
		t.Fatalf("ListSet: %v", err)
	}
	equalStrings(t, "set", all, []string{"c", "a", "b", "d"})

	if n, _ := s.CountSet(ctx, "schedule"); n != 4 {
		t.Fatalf("CountSet = %d", n)
	}

	tests := []struct {
		start, end int
		want       []string
	}{
		{0, 1, []string{"c", "a"}},
		{1, 2, []string{"a", "b"}},
		{2, 10, []string{"b", "d"}},
		{3, 1, []string{}},
	}
	for _, tt := range tests {
		got, err := s.SetRange(ctx, "schedule", tt.start, tt.end)
		if err != nil {
			t.Fatalf("SetRange(%d,%d): %v", tt.start, tt.end, err)
		}
		equalStrings(t, "SetRange", got, tt.want)
	}

	v, err := s.FirstByLowestScore(ctx, "schedule", 6, 25)
	if err != nil || v != "a" {
		t.Fatalf("FirstByLowestScore = %q, %v; want a", v, err)
	}
	if _, err := s.FirstByLowestScore(ctx, "schedule", 100, 200); !errors.Is(err, jobrow.ErrSetEmpty) {
		t.Fatalf("empty score range err = %v", err)
	}

	commit(t, s, txn.RemoveFromSet{Key: "schedule", Value: "a"})
	all, _ = s.ListSet(ctx, "schedule")
	equalStrings(t, "set after remove", all, []string{"c", "b", "d"})

	far := time.Now().UTC().Add(time.Hour)
	commit(t, s, txn.ExpireCollection{Kind: collection.KindSet, Key: "schedule", ExpireAt: &far})
	if ttl, _ := s.SetTTL(ctx, "schedule"); ttl <= 0 {
		t.Fatalf("SetTTL = %v", ttl)
	}
	if ttl, _ := s.SetTTL(ctx, "other"); ttl != collection.NoTTL {
		t.Fatalf("SetTTL leaked across keys: %v", ttl)
	}
}

var listSeq int64

func pushList(key, value string) txn.Op {
	listSeq++
	return txn.InsertToList{Item: &collection.ListItem{
		ID: id.NewListID(), Key: key, Seq: base.UnixNano() + listSeq, Value: value,
	}}
}

func testLists(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f(t)

	commit(t, s,
		pushList("log", "a"),
		pushList("log", "b"),
		pushList("log", "c"),
		pushList("log", "b"),
		pushList("log", "d"),
		pushList("other", "z"),
	)

	items, err := s.ListItems(ctx, "log")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	equalStrings(t, "list", items, []string{"a", "b", "c", "b", "d"})

	if r, _ := s.ListRange(ctx, "log", 1, 3); !slices.Equal(r, []string{"b", "c", "b"}) {
		t.Fatalf("ListRange(1,3) = %v", r)
	}

	commit(t, s, txn.RemoveFromList{Key: "log", Value: "b"})
	items, _ = s.ListItems(ctx, "log")
	equalStrings(t, "list after remove", items, []string{"a", "c", "d"})

	commit(t, s, txn.TrimList{Key: "log", Start: 1, End: 5})
	items, _ = s.ListItems(ctx, "log")
	equalStrings(t, "list after trim", items, []string{"c", "d"})
	if n, _ := s.CountList(ctx, "log"); n != 2 {
		t.Fatalf("CountList = %d", n)
	}

	if ttl, _ := s.ListTTL(ctx, "log"); ttl != collection.NoTTL {
		t.Fatalf("ListTTL = %v", ttl)
	}
	far := time.Now().UTC().Add(time.Hour)
	commit(t, s, txn.ExpireCollection{Kind: collection.KindList, Key: "log", ExpireAt: &far})
	if ttl, _ := s.ListTTL(ctx, "log"); ttl <= 0 {
		t.Fatalf("ListTTL after expire = %v", ttl)
	}

	commit(t, s, txn.TrimList{Key: "other", Start: 1, End: 0})
	if n, _ := s.CountList(ctx, "other"); n != 0 {
		t.Fatalf("inverted trim kept %d items", n)
	}
}
