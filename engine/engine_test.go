package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/cluster"
	"github.com/xraph/jobrow/engine"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/lock"
	"github.com/xraph/jobrow/process"
	"github.com/xraph/jobrow/store/memory"
)

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

type clock struct {
	mu sync.Mutex
	t  time.Time
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
	cfg.FetchLockTimeout = time.Second
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func newEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	opts = append([]engine.Option{engine.WithConfig(testConfig())}, opts...)
	eng, err := engine.New(s, opts...)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng, s
}

func createJob(t *testing.T, eng *engine.Engine) id.JobID {
	t.Helper()
	jobID, err := eng.CreateExpiredJob(context.Background(),
		&job.Invocation{Type: "Mailer", Method: "Send", Arguments: []byte(`["bob@example.com"]`)},
		map[string]string{"RetryCount": "0"},
		time.Now(), time.Hour,
	)
	if err != nil {
		t.Fatalf("CreateExpiredJob: %v", err)
	}
	return jobID
}

// ──────────────────────────────────────────────────
// Construction
// ──────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	if _, err := engine.New(nil); !errors.Is(err, jobrow.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}

	cfg := jobrow.DefaultConfig()
	cfg.InvisibilityTimeout = 0
	if _, err := engine.New(memory.New(), engine.WithConfig(cfg)); !errors.Is(err, jobrow.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Jobs
// ──────────────────────────────────────────────────

func TestCreateExpiredJob_RoundTrip(t *testing.T) {
	ctx := context.Background()
	eng, s := newEngine(t)
	jobID := createJob(t, eng)

	data, err := eng.GetJobData(ctx, jobID)
	if err != nil {
		t.Fatalf("GetJobData: %v", err)
	}
	if data.LoadErr != nil {
		t.Fatalf("unexpected LoadErr: %v", data.LoadErr)
	}
	if data.Job.Type != "Mailer" || data.Job.Method != "Send" || string(data.Job.Arguments) != `["bob@example.com"]` {
		t.Errorf("unexpected invocation %+v", data.Job)
	}

	j, err := s.GetJob(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if j.ExpireAt == nil || j.ExpireAt.Sub(j.CreatedAt) != time.Hour {
		t.Errorf("expected a one hour expiration, got %v", j.ExpireAt)
	}

	v, err := eng.GetJobParameter(ctx, jobID, "RetryCount")
	if err != nil || v != "0" {
		t.Fatalf("GetJobParameter = %q, %v", v, err)
	}
	if err := eng.SetJobParameter(ctx, jobID, "RetryCount", "1"); err != nil {
		t.Fatal(err)
	}
	if v, _ := eng.GetJobParameter(ctx, jobID, "RetryCount"); v != "1" {
		t.Errorf("RetryCount = %q, want 1", v)
	}
}

func TestCreateExpiredJob_InvalidInvocation(t *testing.T) {
	eng, _ := newEngine(t)
	_, err := eng.CreateExpiredJob(context.Background(), &job.Invocation{Type: "Mailer"}, nil, time.Now(), time.Hour)
	if !errors.Is(err, jobrow.ErrInvalidInvocation) {
		t.Fatalf("expected ErrInvalidInvocation, got %v", err)
	}
}

func TestGetJobData_LoadErr(t *testing.T) {
	ctx := context.Background()
	eng, s := newEngine(t)

	j := &job.Job{ID: id.NewJobID(), InvocationData: []byte(`{broken`), CreatedAt: time.Now()}
	if err := s.CreateJob(ctx, j, nil); err != nil {
		t.Fatal(err)
	}

	data, err := eng.GetJobData(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJobData: %v", err)
	}
	if !errors.Is(data.LoadErr, jobrow.ErrInvalidInvocation) || data.Job != nil {
		t.Fatalf("expected LoadErr, got %+v", data)
	}
}

func TestGetJobData_NotFound(t *testing.T) {
	eng, _ := newEngine(t)
	if _, err := eng.GetJobData(context.Background(), id.NewJobID()); !errors.Is(err, jobrow.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestGetStateData(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)
	jobID := createJob(t, eng)

	if _, err := eng.GetStateData(ctx, jobID); !errors.Is(err, jobrow.ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}

	tx := eng.NewTransaction()
	tx.SetJobState(jobID, job.StateEnqueued, "triggered", map[string]string{"Queue": "default"})
	tx.PersistJob(jobID)
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	st, err := eng.GetStateData(ctx, jobID)
	if err != nil {
		t.Fatalf("GetStateData: %v", err)
	}
	if st.Name != job.StateEnqueued || st.Reason != "triggered" || st.Data["Queue"] != "default" {
		t.Errorf("unexpected state %+v", st)
	}
}

// ──────────────────────────────────────────────────
// Queue
// ──────────────────────────────────────────────────

func TestFetchNextJob_EndToEnd(t *testing.T) {
	ctx := context.Background()
	eng, s := newEngine(t)
	jobID := createJob(t, eng)

	tx := eng.NewTransaction()
	tx.AddToQueue("default", jobID)
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	lease, err := eng.FetchNextJob(ctx, []string{"default"})
	if err != nil {
		t.Fatalf("FetchNextJob: %v", err)
	}
	defer lease.Close()
	if lease.JobID() != jobID {
		t.Fatalf("leased %s, want %s", lease.JobID(), jobID)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if enq, fetched, _ := s.CountEntries(ctx, "default"); enq != 0 || fetched != 0 {
		t.Fatalf("queue not empty after release: %d waiting, %d leased", enq, fetched)
	}
}

func TestFetchNextJob_WakesOnCommit(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)
	jobID := createJob(t, eng)

	got := make(chan id.JobID, 1)
	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		lease, err := eng.FetchNextJob(fetchCtx, []string{"default"})
		if err != nil {
			close(got)
			return
		}
		got <- lease.JobID()
		_ = lease.Release(ctx)
	}()

	// The poll interval is an hour; only the commit signal can wake the fetch.
	time.Sleep(50 * time.Millisecond)
	tx := eng.NewTransaction()
	tx.AddToQueue("default", jobID)
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	select {
	case leased, ok := <-got:
		if !ok || leased != jobID {
			t.Fatalf("fetch returned %v, %v", leased, ok)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("fetch not woken by commit")
	}
}

func TestAcquireLock(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)

	h, err := eng.AcquireLock(ctx, "locks:custom", time.Second)
	if err != nil || !h.Held() {
		t.Fatalf("AcquireLock: %v", err)
	}

	h2, err := eng.AcquireLock(ctx, "locks:custom", 20*time.Millisecond)
	if !errors.Is(err, jobrow.ErrLockTimeout) || h2.Held() {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	h.Release()
	h2.Release()

	if err := eng.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AcquireLock(ctx, lock.ResourceFetch, time.Second); !errors.Is(err, jobrow.ErrLockTableClosed) {
		t.Fatalf("expected ErrLockTableClosed after Stop, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Counters and collections
// ──────────────────────────────────────────────────

func TestGetCounter_BeforeAndAfterAggregation(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)

	tx := eng.NewTransaction()
	for range 5 {
		tx.IncrementCounter("stats:succeeded", 0)
	}
	tx.DecrementCounter("stats:succeeded", 0)
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	if v, err := eng.GetCounter(ctx, "stats:succeeded"); err != nil || v != 4 {
		t.Fatalf("GetCounter = %d, %v; want 4", v, err)
	}
	if _, err := eng.Aggregator().Drain(ctx); err != nil {
		t.Fatal(err)
	}
	if v, err := eng.GetCounter(ctx, "stats:succeeded"); err != nil || v != 4 {
		t.Fatalf("GetCounter after fold = %d, %v; want 4", v, err)
	}
}

func TestCollectionReads(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)

	tx := eng.NewTransaction()
	tx.SetRangeInHash("recurring-job:nightly", map[string]string{"Cron": "0 0 * * *", "Queue": "default"})
	tx.AddToSet("schedule", "job-b", 20)
	tx.AddToSet("schedule", "job-a", 10)
	tx.AddToSet("schedule", "job-c", 30)
	tx.InsertToList("succeeded", "1")
	tx.InsertToList("succeeded", "2")
	tx.InsertToList("succeeded", "3")
	tx.ExpireList("succeeded", time.Hour)
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	if h, _ := eng.GetAllEntriesFromHash(ctx, "recurring-job:nightly"); len(h) != 2 {
		t.Errorf("hash = %v", h)
	}
	if v, _ := eng.GetValueFromHash(ctx, "recurring-job:nightly", "Queue"); v != "default" {
		t.Errorf("hash field = %q", v)
	}
	if n, _ := eng.HashCount(ctx, "recurring-job:nightly"); n != 2 {
		t.Errorf("HashCount = %d", n)
	}
	if ttl, _ := eng.HashTTL(ctx, "recurring-job:nightly"); ttl >= 0 {
		t.Errorf("HashTTL = %v, want negative", ttl)
	}

	if m, _ := eng.FirstByLowestScore(ctx, "schedule", 15, 100); m != "job-b" {
		t.Errorf("FirstByLowestScore = %q, want job-b", m)
	}
	if _, err := eng.FirstByLowestScore(ctx, "schedule", 100, 200); !errors.Is(err, jobrow.ErrSetEmpty) {
		t.Errorf("expected ErrSetEmpty, got %v", err)
	}
	if r, _ := eng.SetRange(ctx, "schedule", 0, 1); len(r) != 2 || r[0] != "job-a" || r[1] != "job-b" {
		t.Errorf("SetRange = %v", r)
	}
	if n, _ := eng.SetCount(ctx, "schedule"); n != 3 {
		t.Errorf("SetCount = %d", n)
	}
	if all, _ := eng.GetAllItemsFromSet(ctx, "schedule"); len(all) != 3 {
		t.Errorf("GetAllItemsFromSet = %v", all)
	}

	if items, _ := eng.GetAllItemsFromList(ctx, "succeeded"); len(items) != 3 {
		t.Errorf("list = %v", items)
	}
	if r, _ := eng.ListRange(ctx, "succeeded", 1, 2); len(r) != 2 {
		t.Errorf("ListRange = %v", r)
	}
	if n, _ := eng.ListCount(ctx, "succeeded"); n != 3 {
		t.Errorf("ListCount = %d", n)
	}
	if ttl, _ := eng.ListTTL(ctx, "succeeded"); ttl <= 0 || ttl > time.Hour {
		t.Errorf("ListTTL = %v", ttl)
	}
	if ttl, _ := eng.SetTTL(ctx, "schedule"); ttl >= 0 {
		t.Errorf("SetTTL = %v, want negative", ttl)
	}
}

// ──────────────────────────────────────────────────
// Servers
// ──────────────────────────────────────────────────

func TestServers(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)}
	eng, _ := newEngine(t, engine.WithClock(clk.Now))

	if err := eng.AnnounceServer(ctx, "", cluster.Data{}); !errors.Is(err, jobrow.ErrServerIDRequired) {
		t.Fatalf("expected ErrServerIDRequired, got %v", err)
	}
	for _, sid := range []string{"host-a:1", "host-b:1"} {
		if err := eng.AnnounceServer(ctx, sid, cluster.Data{WorkerCount: 4, Queues: []string{"default"}}); err != nil {
			t.Fatal(err)
		}
	}

	clk.Advance(10 * time.Minute)
	if err := eng.Heartbeat(ctx, "host-b:1"); err != nil {
		t.Fatal(err)
	}
	if err := eng.Heartbeat(ctx, "missing:1"); !errors.Is(err, jobrow.ErrServerNotFound) {
		t.Fatalf("expected ErrServerNotFound, got %v", err)
	}

	removed, err := eng.RemoveTimedOutServers(ctx, 5*time.Minute)
	if err != nil || removed != 1 {
		t.Fatalf("RemoveTimedOutServers = %d, %v; want 1", removed, err)
	}
	if _, err := eng.RemoveTimedOutServers(ctx, -time.Second); !errors.Is(err, jobrow.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	servers, err := eng.Servers(ctx)
	if err != nil || len(servers) != 1 || servers[0].ID != "host-b:1" {
		t.Fatalf("Servers = %v, %v", servers, err)
	}
	if err := eng.RemoveServer(ctx, "host-b:1"); err != nil {
		t.Fatal(err)
	}
}

// ──────────────────────────────────────────────────
// Background processes
// ──────────────────────────────────────────────────

func TestStart_RunsMaintenance(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.CountersAggregateInterval = 10 * time.Millisecond
	cfg.JobExpirationCheckInterval = 10 * time.Millisecond
	cfg.ExpirationBatchDelay = 0
	cfg.CounterPassDelay = 0

	s := memory.New()
	eng, err := engine.New(s, engine.WithConfig(cfg))
	if err != nil {
		t.Fatal(err)
	}

	expired, err := eng.CreateExpiredJob(ctx, &job.Invocation{Type: "T", Method: "M"}, nil,
		time.Now().Add(-2*time.Hour), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	tx := eng.NewTransaction()
	tx.IncrementCounter("stats:deleted", 0)
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	var extra int
	var mu sync.Mutex
	eng.AddProcess(process.Func("extra", func(context.Context) error {
		mu.Lock()
		extra++
		mu.Unlock()
		return nil
	}), 10*time.Millisecond)

	if err := eng.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer eng.Stop(ctx) //nolint:errcheck

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_, jobErr := s.GetJob(ctx, expired)
		raw, _ := s.ListCounters(ctx, 10)
		mu.Lock()
		ran := extra
		mu.Unlock()
		if errors.Is(jobErr, jobrow.ErrJobNotFound) && len(raw) == 0 && ran > 0 {
			if v, _ := eng.GetCounter(ctx, "stats:deleted"); v != 1 {
				t.Fatalf("stats:deleted = %d, want 1", v)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("maintenance processes did not run")
}

func TestMeterProvider_RecordsLeases(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	eng, _ := newEngine(t, engine.WithMeterProvider(mp))

	jobID := createJob(t, eng)
	tx := eng.NewTransaction()
	tx.AddToQueue("default", jobID)
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	lease, err := eng.FetchNextJob(ctx, []string{"default"})
	if err != nil {
		t.Fatal(err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatal(err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	found := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					found[m.Name] += dp.Value
				}
			}
		}
	}
	if found["jobrow.lease.acquired"] != 1 || found["jobrow.lease.released"] != 1 {
		t.Fatalf("lease metrics = %v", found)
	}
}
