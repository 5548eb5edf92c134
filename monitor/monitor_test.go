package monitor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/cluster"
	"github.com/xraph/jobrow/expire"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/monitor"
	"github.com/xraph/jobrow/queue"
	"github.com/xraph/jobrow/store/memory"
	"github.com/xraph/jobrow/txn"
)

var base = time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)

func newJob(t *testing.T, s *memory.Store, stateName string) *job.Job {
	t.Helper()
	ctx := context.Background()
	inv := &job.Invocation{Type: "Mailer", Method: "Send"}
	data, args, err := inv.Encode()
	if err != nil {
		t.Fatal(err)
	}
	j := &job.Job{ID: id.NewJobID(), InvocationData: data, Arguments: args, CreatedAt: base}
	if err := s.CreateJob(ctx, j, []*job.Parameter{
		{ID: id.NewParameterID(), JobID: j.ID, Name: "CurrentCulture", Value: "en-US"},
	}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if stateName != "" {
		tx := txn.New(s)
		tx.SetJobState(j.ID, stateName, "test", map[string]string{"k": "v"})
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}
	return j
}

func enqueue(t *testing.T, s *memory.Store, queueName string, at time.Time, fetched bool) *job.Job {
	t.Helper()
	j := newJob(t, s, job.StateEnqueued)
	e := &queue.Entry{ID: id.NewEntryID(), JobID: j.ID, Queue: queueName, AddedAt: at}
	if fetched {
		stamp := queue.Stamp(at)
		e.FetchedAt = &stamp
	}
	if err := s.CommitTransaction(context.Background(), []txn.Op{txn.AddToQueue{Entry: e}}); err != nil {
		t.Fatalf("AddToQueue: %v", err)
	}
	return j
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	newJob(t, s, job.StateFailed)
	newJob(t, s, job.StateFailed)
	newJob(t, s, job.StateProcessing)
	newJob(t, s, job.StateScheduled)
	enqueue(t, s, "default", base, false)
	enqueue(t, s, "critical", base, false)

	tx := txn.New(s)
	tx.IncrementCounter(monitor.SucceededCounter, 0)
	tx.IncrementCounter(monitor.SucceededCounter, 0)
	tx.IncrementCounter(monitor.SucceededCounter, 0)
	tx.IncrementCounter(monitor.DeletedCounter, 0)
	tx.AddToSet(monitor.RecurringSet, "nightly-report", 0)
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.AnnounceServer(ctx, &cluster.Server{ID: "host-a:1"}); err != nil {
		t.Fatal(err)
	}

	st, err := monitor.New(s).Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	want := monitor.Statistics{
		Servers: 1, Queues: 2, Enqueued: 2, Failed: 2, Processing: 1,
		Scheduled: 1, Succeeded: 3, Deleted: 1, Recurring: 1,
	}
	if *st != want {
		t.Fatalf("Statistics = %+v, want %+v", *st, want)
	}
}

func TestJobListLimitCapsCounts(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	for range 5 {
		newJob(t, s, job.StateFailed)
	}

	tests := []struct {
		limit int
		want  int64
	}{
		{0, 5},
		{3, 3},
		{10, 5},
	}
	for _, tt := range tests {
		got, err := monitor.New(s, monitor.WithJobListLimit(tt.limit)).CountByState(ctx, job.StateFailed)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("limit %d: count = %d, want %d", tt.limit, got, tt.want)
		}
	}
}

func TestJobsByStateWindow(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	for range 6 {
		newJob(t, s, job.StateSucceeded)
	}

	tests := []struct {
		name        string
		limit       int
		from, count int
		want        int
	}{
		{"unlimited", 0, 0, 10, 6},
		{"page", 0, 2, 3, 3},
		{"limit trims page", 4, 2, 10, 2},
		{"past limit", 4, 4, 10, 0},
		{"zero count", 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := monitor.New(s, monitor.WithJobListLimit(tt.limit))
			got, err := m.JobsByState(ctx, job.StateSucceeded, tt.from, tt.count)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d jobs, want %d", len(got), tt.want)
			}
			for _, js := range got {
				if js.State == nil || js.State.Name != job.StateSucceeded || js.State.Data["k"] != "v" {
					t.Errorf("unexpected state %+v", js.State)
				}
				if js.Job.LoadErr != nil || js.Job.Job.Method != "Send" {
					t.Errorf("unexpected job data %+v", js.Job)
				}
			}
		})
	}
}

func TestQueues(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	var waiting []id.JobID
	for i := range 7 {
		j := enqueue(t, s, "default", base.Add(time.Duration(i)*time.Second), false)
		waiting = append(waiting, j.ID)
	}
	enqueue(t, s, "default", base, true)

	queues, err := monitor.New(s).Queues(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(queues) != 1 {
		t.Fatalf("got %d queues, want 1", len(queues))
	}
	q := queues[0]
	if q.Name != "default" || q.Length != 7 || q.Fetched != 1 {
		t.Fatalf("unexpected summary %+v", q)
	}
	if len(q.FirstJobs) != 5 {
		t.Fatalf("got %d first jobs, want 5", len(q.FirstJobs))
	}
	for i, js := range q.FirstJobs {
		if js.ID != waiting[i] {
			t.Errorf("first job %d = %s, want %s", i, js.ID, waiting[i])
		}
	}
}

func TestFetchedJobs(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	enqueue(t, s, "default", base, false)
	leased := enqueue(t, s, "default", base.Add(time.Second), true)

	got, err := monitor.New(s).FetchedJobs(ctx, "default", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != leased.ID || got[0].FetchedAt == nil {
		t.Fatalf("unexpected fetched jobs %+v", got)
	}
}

func TestEnqueuedJobsAfterPurge(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	j := enqueue(t, s, "default", base, false)
	enqueue(t, s, "default", base.Add(time.Second), false)

	// Expire and purge the first job; its queue row goes with it.
	if err := s.CommitTransaction(ctx, []txn.Op{txn.ExpireJob{JobID: j.ID, ExpireAt: base}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PurgeExpired(ctx, expire.KindJob, base.Add(time.Minute), 0); err != nil {
		t.Fatal(err)
	}

	got, err := monitor.New(s).EnqueuedJobs(ctx, "default", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID == j.ID {
		t.Fatalf("unexpected enqueued jobs %+v", got)
	}
}

func TestJobDetails(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	j := newJob(t, s, job.StateEnqueued)

	tx := txn.New(s)
	tx.SetJobState(j.ID, job.StateProcessing, "picked up", nil)
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	d, err := monitor.New(s).JobDetails(ctx, j.ID)
	if err != nil {
		t.Fatalf("JobDetails: %v", err)
	}
	if d.Properties["CurrentCulture"] != "en-US" {
		t.Errorf("properties = %v", d.Properties)
	}
	if len(d.History) != 2 || d.History[0].Name != job.StateProcessing {
		t.Errorf("history = %+v", d.History)
	}
	if d.Job.Job == nil || d.Job.Job.Type != "Mailer" {
		t.Errorf("job data = %+v", d.Job)
	}

	if _, err := monitor.New(s).JobDetails(ctx, id.NewJobID()); !errors.Is(err, jobrow.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestTimelines(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	now := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)

	tx := txn.New(s)
	tx.IncrementCounter("stats:succeeded:2026-03-14", 0)
	tx.IncrementCounter("stats:succeeded:2026-03-14", 0)
	tx.IncrementCounter("stats:succeeded:2026-03-07", 0)
	tx.IncrementCounter("stats:failed:2026-03-14-11", 0)
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	m := monitor.New(s, monitor.WithClock(func() time.Time { return now }))

	daily, err := m.Daily(ctx, monitor.SeriesSucceeded)
	if err != nil {
		t.Fatal(err)
	}
	if len(daily) != 8 {
		t.Fatalf("got %d daily points, want 8", len(daily))
	}
	if daily[0].Value != 2 || daily[7].Value != 1 || daily[1].Value != 0 {
		t.Errorf("daily = %+v", daily)
	}

	hourly, err := m.Hourly(ctx, monitor.SeriesFailed)
	if err != nil {
		t.Fatal(err)
	}
	if len(hourly) != 24 {
		t.Fatalf("got %d hourly points, want 24", len(hourly))
	}
	if hourly[0].Value != 0 || hourly[1].Value != 1 {
		t.Errorf("hourly = %+v", hourly[:2])
	}
}
