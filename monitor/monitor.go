package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/cluster"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/queue"
)

// Well-known counter and set keys written by the job framework.
const (
	SucceededCounter = "stats:succeeded"
	DeletedCounter   = "stats:deleted"
	RecurringSet     = "recurring-jobs"
)

// firstJobs is the number of waiting jobs shown per queue in Queues.
const firstJobs = 5

// Source is the subset of the store the monitor reads.
type Source interface {
	job.Store
	queue.Store
	counter.Store
	collection.Store
	cluster.Store
}

// Monitor answers dashboard queries.
type Monitor struct {
	store Source
	limit int
	now   func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithJobListLimit caps counts and listings. Zero disables the cap.
func WithJobListLimit(n int) Option {
	return func(m *Monitor) { m.limit = n }
}

// WithClock sets the time source used for timelines.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates a Monitor over s.
func New(s Source, opts ...Option) *Monitor {
	m := &Monitor{store: s, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Statistics is the dashboard summary.
type Statistics struct {
	Servers    int64 `json:"servers"`
	Queues     int64 `json:"queues"`
	Enqueued   int64 `json:"enqueued"`
	Failed     int64 `json:"failed"`
	Processing int64 `json:"processing"`
	Scheduled  int64 `json:"scheduled"`
	Succeeded  int64 `json:"succeeded"`
	Deleted    int64 `json:"deleted"`
	Recurring  int64 `json:"recurring"`
}

// JobSummary is one row of a job listing.
type JobSummary struct {
	Job   *job.Data      `json:"job"`
	ID    id.JobID       `json:"id"`
	State *job.StateData `json:"state,omitempty"`
	// FetchedAt is set for rows listed by FetchedJobs.
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

// QueueSummary describes one queue.
type QueueSummary struct {
	Name      string        `json:"name"`
	Length    int64         `json:"length"`
	Fetched   int64         `json:"fetched"`
	FirstJobs []*JobSummary `json:"first_jobs"`
}

// JobDetails is the full view of one job.
type JobDetails struct {
	ID         id.JobID          `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	ExpireAt   *time.Time        `json:"expire_at,omitempty"`
	Job        *job.Data         `json:"job"`
	Properties map[string]string `json:"properties"`
	History    []*job.State      `json:"history"`
}

// Statistics returns the dashboard summary.
func (m *Monitor) Statistics(ctx context.Context) (*Statistics, error) {
	var (
		st  Statistics
		err error
	)
	for _, c := range []struct {
		state string
		dst   *int64
	}{
		{job.StateEnqueued, &st.Enqueued},
		{job.StateFailed, &st.Failed},
		{job.StateProcessing, &st.Processing},
		{job.StateScheduled, &st.Scheduled},
	} {
		if *c.dst, err = m.CountByState(ctx, c.state); err != nil {
			return nil, err
		}
	}

	if st.Succeeded, err = m.store.CounterValue(ctx, SucceededCounter); err != nil {
		return nil, fmt.Errorf("monitor: succeeded counter: %w", err)
	}
	if st.Deleted, err = m.store.CounterValue(ctx, DeletedCounter); err != nil {
		return nil, fmt.Errorf("monitor: deleted counter: %w", err)
	}
	if st.Recurring, err = m.store.CountSet(ctx, RecurringSet); err != nil {
		return nil, fmt.Errorf("monitor: recurring set: %w", err)
	}

	servers, err := m.store.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitor: list servers: %w", err)
	}
	st.Servers = int64(len(servers))

	queues, err := m.store.ListQueues(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitor: list queues: %w", err)
	}
	st.Queues = int64(len(queues))

	return &st, nil
}

// CountByState returns the number of jobs in state, capped by the job list
// limit.
func (m *Monitor) CountByState(ctx context.Context, state string) (int64, error) {
	n, err := m.store.CountJobsByState(ctx, state)
	if err != nil {
		return 0, fmt.Errorf("monitor: count %s: %w", state, err)
	}
	return m.capCount(n), nil
}

// Queues describes every queue with its first waiting jobs.
func (m *Monitor) Queues(ctx context.Context) ([]*QueueSummary, error) {
	names, err := m.store.ListQueues(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitor: list queues: %w", err)
	}

	out := make([]*QueueSummary, 0, len(names))
	for _, name := range names {
		enqueued, fetched, err := m.store.CountEntries(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("monitor: count queue %s: %w", name, err)
		}
		first, err := m.EnqueuedJobs(ctx, name, 0, firstJobs)
		if err != nil {
			return nil, err
		}
		out = append(out, &QueueSummary{
			Name:      name,
			Length:    m.capCount(enqueued),
			Fetched:   m.capCount(fetched),
			FirstJobs: first,
		})
	}
	return out, nil
}

// EnqueuedJobs lists waiting jobs of queue, oldest first.
func (m *Monitor) EnqueuedJobs(ctx context.Context, queueName string, from, count int) ([]*JobSummary, error) {
	return m.queueJobs(ctx, queueName, false, from, count)
}

// FetchedJobs lists leased jobs of queue, oldest first.
func (m *Monitor) FetchedJobs(ctx context.Context, queueName string, from, count int) ([]*JobSummary, error) {
	return m.queueJobs(ctx, queueName, true, from, count)
}

func (m *Monitor) queueJobs(ctx context.Context, queueName string, fetched bool, from, count int) ([]*JobSummary, error) {
	count, ok := m.capWindow(from, count)
	if !ok {
		return []*JobSummary{}, nil
	}
	entries, err := m.store.ListEntries(ctx, queueName, fetched, queue.ListOpts{Offset: from, Limit: count})
	if err != nil {
		return nil, fmt.Errorf("monitor: list queue %s: %w", queueName, err)
	}

	out := make([]*JobSummary, 0, len(entries))
	for _, e := range entries {
		j, err := m.store.GetJob(ctx, e.JobID)
		if errors.Is(err, jobrow.ErrJobNotFound) {
			// Deleted between the two reads.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("monitor: get job %s: %w", e.JobID, err)
		}
		s, err := m.summarize(ctx, j)
		if err != nil {
			return nil, err
		}
		s.FetchedAt = e.FetchedAt
		out = append(out, s)
	}
	return out, nil
}

// JobsByState lists jobs whose current state is state, newest first.
func (m *Monitor) JobsByState(ctx context.Context, state string, from, count int) ([]*JobSummary, error) {
	count, ok := m.capWindow(from, count)
	if !ok {
		return []*JobSummary{}, nil
	}
	jobs, err := m.store.ListJobsByState(ctx, state, job.ListOpts{Offset: from, Limit: count})
	if err != nil {
		return nil, fmt.Errorf("monitor: list %s jobs: %w", state, err)
	}

	out := make([]*JobSummary, 0, len(jobs))
	for _, j := range jobs {
		s, err := m.summarize(ctx, j)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Servers returns the registered servers ordered by ID.
func (m *Monitor) Servers(ctx context.Context) ([]*cluster.Server, error) {
	servers, err := m.store.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitor: list servers: %w", err)
	}
	return servers, nil
}

// JobDetails returns the job with its parameters and state history, newest
// state first. It returns ErrJobNotFound for unknown IDs.
func (m *Monitor) JobDetails(ctx context.Context, jobID id.JobID) (*JobDetails, error) {
	j, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	params, err := m.store.ListParameters(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("monitor: list parameters: %w", err)
	}
	history, err := m.store.ListStates(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("monitor: list states: %w", err)
	}

	props := make(map[string]string, len(params))
	for _, p := range params {
		props[p.Name] = p.Value
	}
	return &JobDetails{
		ID:         j.ID,
		CreatedAt:  j.CreatedAt,
		ExpireAt:   j.ExpireAt,
		Job:        job.NewData(j),
		Properties: props,
		History:    history,
	}, nil
}

func (m *Monitor) summarize(ctx context.Context, j *job.Job) (*JobSummary, error) {
	s := &JobSummary{ID: j.ID, Job: job.NewData(j)}
	if j.StateID.IsNil() {
		return s, nil
	}
	st, err := m.store.GetState(ctx, j.StateID)
	if errors.Is(err, jobrow.ErrStateNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("monitor: get state %s: %w", j.StateID, err)
	}
	s.State = job.NewStateData(st)
	return s, nil
}

func (m *Monitor) capCount(n int64) int64 {
	if m.limit > 0 && n > int64(m.limit) {
		return int64(m.limit)
	}
	return n
}

// capWindow trims a listing window to the job list limit. It reports false
// when the window starts past the limit.
func (m *Monitor) capWindow(from, count int) (int, bool) {
	if count <= 0 {
		return 0, false
	}
	if m.limit <= 0 {
		return count, true
	}
	if from >= m.limit {
		return 0, false
	}
	return min(count, m.limit-from), true
}
