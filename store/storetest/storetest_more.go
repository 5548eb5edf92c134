package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/cluster"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/expire"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/queue"
	"github.com/xraph/jobrow/txn"
)

// ──────────────────────────────────────────────────
// Servers
// ──────────────────────────────────────────────────

func testServers(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f(t)

	announce := func(serverID string, hb time.Time) {
		t.Helper()
		err := s.AnnounceServer(ctx, &cluster.Server{
			ID:            serverID,
			Data:          cluster.Data{WorkerCount: 4, Queues: []string{"default", "critical"}, StartedAt: base},
			LastHeartbeat: hb,
		})
		if err != nil {
			t.Fatalf("AnnounceServer: %v", err)
		}
	}
	announce("web-1:a", base)
	announce("web-2:b", base.Add(-time.Hour))
	announce("web-1:a", base.Add(time.Second))

	servers, err := s.ListServers(ctx)
	if err != nil || len(servers) != 2 {
		t.Fatalf("ListServers = %d, %v", len(servers), err)
	}
	if servers[0].ID != "web-1:a" || servers[0].Data.WorkerCount != 4 || len(servers[0].Data.Queues) != 2 {
		t.Fatalf("server = %+v", servers[0])
	}

	if err := s.HeartbeatServer(ctx, "web-2:b", base.Add(time.Minute)); err != nil {
		t.Fatalf("HeartbeatServer: %v", err)
	}
	if err := s.HeartbeatServer(ctx, "ghost", base); !errors.Is(err, jobrow.ErrServerNotFound) {
		t.Fatalf("heartbeat of unknown server err = %v", err)
	}

	n, err := s.RemoveTimedOutServers(ctx, base.Add(30*time.Second))
	if err != nil || n != 1 {
		t.Fatalf("RemoveTimedOutServers = %d, %v; want 1", n, err)
	}
	servers, _ = s.ListServers(ctx)
	if len(servers) != 1 || servers[0].ID != "web-2:b" {
		t.Fatalf("remaining servers = %v", servers)
	}

	if err := s.RemoveServer(ctx, "web-2:b"); err != nil {
		t.Fatalf("RemoveServer: %v", err)
	}
	if err := s.RemoveServer(ctx, "web-2:b"); err != nil {
		t.Fatalf("RemoveServer of unknown server: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Expiration
// ──────────────────────────────────────────────────

func testExpiration(t *testing.T, f Factory) {
	ctx := context.Background()
	now := base.Add(24 * time.Hour)
	past := ptr(now.Add(-time.Minute))
	future := ptr(now.Add(time.Minute))

	t.Run("Jobs", func(t *testing.T) {
		s := f(t)
		old := createJob(t, s, base, past)
		keep := createJob(t, s, base, future)
		forever := createJob(t, s, base, nil)

		e := &queue.Entry{ID: id.NewEntryID(), JobID: old.ID, Queue: "default", AddedAt: base}
		commit(t, s,
			txn.SetJobState{State: state(old.ID, job.StateSucceeded, base)},
			txn.AddToQueue{Entry: e},
		)
		if err := s.SetParameter(ctx, old.ID, "RetryCount", "2"); err != nil {
			t.Fatalf("SetParameter: %v", err)
		}

		n, err := s.PurgeExpired(ctx, expire.KindJob, now, 100)
		if err != nil || n != 1 {
			t.Fatalf("PurgeExpired(Job) = %d, %v; want 1", n, err)
		}
		if _, err := s.GetJob(ctx, old.ID); !errors.Is(err, jobrow.ErrJobNotFound) {
			t.Fatalf("expired job still present: %v", err)
		}
		if states, _ := s.ListStates(ctx, old.ID); len(states) != 0 {
			t.Fatalf("%d states survived the job", len(states))
		}
		if params, _ := s.ListParameters(ctx, old.ID); len(params) != 0 {
			t.Fatalf("%d parameters survived the job", len(params))
		}
		if enq, fet, _ := s.CountEntries(ctx, "default"); enq+fet != 0 {
			t.Fatalf("queue rows survived the job")
		}
		for _, j := range []*job.Job{keep, forever} {
			if _, err := s.GetJob(ctx, j.ID); err != nil {
				t.Fatalf("unexpired job removed: %v", err)
			}
		}
	})

	t.Run("Limit", func(t *testing.T) {
		s := f(t)
		for i := range 5 {
			createJob(t, s, base, ptr(now.Add(-time.Duration(i+1)*time.Minute)))
		}
		n, err := s.PurgeExpired(ctx, expire.KindJob, now, 3)
		if err != nil || n != 3 {
			t.Fatalf("first batch = %d, %v; want 3", n, err)
		}
		n, err = s.PurgeExpired(ctx, expire.KindJob, now, 3)
		if err != nil || n != 2 {
			t.Fatalf("second batch = %d, %v; want 2", n, err)
		}
		n, _ = s.PurgeExpired(ctx, expire.KindJob, now, 3)
		if n != 0 {
			t.Fatalf("third batch = %d, want 0", n)
		}
	})

	t.Run("Collections", func(t *testing.T) {
		s := f(t)
		commit(t, s,
			hashOp("h:old", "f", "v"),
			hashOp("h:new", "f", "v"),
			addSet("s:old", "m", 1),
			addSet("s:new", "m", 1),
			pushList("l:old", "x"),
			pushList("l:new", "x"),
			txn.ExpireCollection{Kind: collection.KindHash, Key: "h:old", ExpireAt: past},
			txn.ExpireCollection{Kind: collection.KindHash, Key: "h:new", ExpireAt: future},
			txn.ExpireCollection{Kind: collection.KindSet, Key: "s:old", ExpireAt: past},
			txn.ExpireCollection{Kind: collection.KindList, Key: "l:old", ExpireAt: past},
		)

		for _, kind := range []expire.Kind{expire.KindHash, expire.KindSet, expire.KindList} {
			n, err := s.PurgeExpired(ctx, kind, now, 100)
			if err != nil || n != 1 {
				t.Fatalf("PurgeExpired(%s) = %d, %v; want 1", kind, n, err)
			}
		}
		if n, _ := s.CountHash(ctx, "h:old"); n != 0 {
			t.Fatal("expired hash survived")
		}
		if n, _ := s.CountHash(ctx, "h:new"); n != 1 {
			t.Fatal("future hash removed")
		}
		if n, _ := s.CountSet(ctx, "s:new"); n != 1 {
			t.Fatal("persistent set removed")
		}
		if n, _ := s.CountList(ctx, "l:new"); n != 1 {
			t.Fatal("persistent list removed")
		}
	})

	t.Run("Aggregates", func(t *testing.T) {
		s := f(t)
		folds := []counter.Fold{
			{Key: "old", Delta: 1, ExpireAt: past},
			{Key: "new", Delta: 1, ExpireAt: future},
			{Key: "forever", Delta: 1},
		}
		if err := s.FoldCounters(ctx, folds, nil); err != nil {
			t.Fatalf("FoldCounters: %v", err)
		}
		n, err := s.PurgeExpired(ctx, expire.KindAggregatedCounter, now, 100)
		if err != nil || n != 1 {
			t.Fatalf("PurgeExpired(AggregatedCounter) = %d, %v", n, err)
		}
		if _, err := s.GetAggregate(ctx, "old"); !errors.Is(err, jobrow.ErrCounterNotFound) {
			t.Fatalf("expired aggregate survived: %v", err)
		}
	})

	t.Run("UnknownKind", func(t *testing.T) {
		s := f(t)
		if _, err := s.PurgeExpired(ctx, expire.Kind("Bogus"), now, 1); !errors.Is(err, jobrow.ErrUnknownKind) {
			t.Fatalf("err = %v, want ErrUnknownKind", err)
		}
	})
}

// ──────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────

func testTransactions(t *testing.T, f Factory) {
	ctx := context.Background()

	t.Run("AllOrNothing", func(t *testing.T) {
		s := f(t)
		j := createJob(t, s, base, nil)
		e := &queue.Entry{ID: id.NewEntryID(), JobID: j.ID, Queue: "default", AddedAt: base}

		err := s.CommitTransaction(ctx, []txn.Op{
			txn.AddToQueue{Entry: e},
			incr("stats:enqueued", 1, nil),
			txn.SetJobState{State: state(id.NewJobID(), job.StateEnqueued, base)},
		})
		if !errors.Is(err, jobrow.ErrJobNotFound) {
			t.Fatalf("err = %v, want ErrJobNotFound", err)
		}
		if enq, _, _ := s.CountEntries(ctx, "default"); enq != 0 {
			t.Fatal("queue row written by failed transaction")
		}
		if v, _ := s.CounterValue(ctx, "stats:enqueued"); v != 0 {
			t.Fatal("counter written by failed transaction")
		}
	})

	t.Run("ExpireAndPersistJob", func(t *testing.T) {
		s := f(t)
		j := createJob(t, s, base, nil)
		at := base.Add(time.Hour)

		commit(t, s, txn.ExpireJob{JobID: j.ID, ExpireAt: at}, txn.ExpireJob{JobID: id.NewJobID(), ExpireAt: at})
		got, _ := s.GetJob(ctx, j.ID)
		if got.ExpireAt == nil || !got.ExpireAt.Equal(at) {
			t.Fatalf("ExpireAt = %v, want %v", got.ExpireAt, at)
		}
		commit(t, s, txn.PersistJob{JobID: j.ID})
		got, _ = s.GetJob(ctx, j.ID)
		if got.ExpireAt != nil {
			t.Fatalf("ExpireAt after persist = %v", got.ExpireAt)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		s := f(t)
		if err := s.CommitTransaction(ctx, nil); err != nil {
			t.Fatalf("empty commit: %v", err)
		}
	})
}
