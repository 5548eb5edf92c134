package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/jobrow/cluster"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/queue"
)

// ── Job models ────────────────────────────────────────────────────

type jobModel struct {
	ID             string     `bson:"_id"`
	InvocationData []byte     `bson:"invocation_data"`
	Arguments      []byte     `bson:"arguments"`
	CreatedAt      time.Time  `bson:"created_at"`
	ExpireAt       *time.Time `bson:"expire_at"`
	StateID        string     `bson:"state_id,omitempty"`
	StateName      string     `bson:"state_name,omitempty"`
}

func toJobModel(j *job.Job) *jobModel {
	m := &jobModel{
		ID:             j.ID.String(),
		InvocationData: j.InvocationData,
		Arguments:      j.Arguments,
		CreatedAt:      j.CreatedAt.UTC(),
		ExpireAt:       utc(j.ExpireAt),
		StateName:      j.StateName,
	}
	if !j.StateID.IsNil() {
		m.StateID = j.StateID.String()
	}
	return m
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	jobID, err := parseID(m.ID, id.PrefixJob)
	if err != nil {
		return nil, err
	}
	j := &job.Job{
		ID:             jobID,
		InvocationData: m.InvocationData,
		Arguments:      m.Arguments,
		CreatedAt:      m.CreatedAt.UTC(),
		ExpireAt:       utc(m.ExpireAt),
		StateName:      m.StateName,
	}
	if m.StateID != "" {
		if j.StateID, err = parseID(m.StateID, id.PrefixState); err != nil {
			return nil, err
		}
	}
	return j, nil
}

type parameterModel struct {
	ID    string `bson:"_id"`
	JobID string `bson:"job_id"`
	Name  string `bson:"name"`
	Value string `bson:"value"`
}

func fromParameterModel(m *parameterModel) (*job.Parameter, error) {
	pid, err := parseID(m.ID, id.PrefixParameter)
	if err != nil {
		return nil, err
	}
	jobID, err := parseID(m.JobID, id.PrefixJob)
	if err != nil {
		return nil, err
	}
	return &job.Parameter{ID: pid, JobID: jobID, Name: m.Name, Value: m.Value}, nil
}

type stateModel struct {
	ID        string            `bson:"_id"`
	JobID     string            `bson:"job_id"`
	Name      string            `bson:"name"`
	Reason    string            `bson:"reason"`
	CreatedAt time.Time         `bson:"created_at"`
	Data      map[string]string `bson:"data,omitempty"`
}

func toStateModel(st *job.State) *stateModel {
	stateID := st.ID
	if stateID.IsNil() {
		stateID = id.NewStateID()
	}
	return &stateModel{
		ID:        stateID.String(),
		JobID:     st.JobID.String(),
		Name:      st.Name,
		Reason:    st.Reason,
		CreatedAt: st.CreatedAt.UTC(),
		Data:      st.Data,
	}
}

func fromStateModel(m *stateModel) (*job.State, error) {
	stateID, err := parseID(m.ID, id.PrefixState)
	if err != nil {
		return nil, err
	}
	jobID, err := parseID(m.JobID, id.PrefixJob)
	if err != nil {
		return nil, err
	}
	return &job.State{
		ID:        stateID,
		JobID:     jobID,
		Name:      m.Name,
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt.UTC(),
		Data:      m.Data,
	}, nil
}

// ── Queue model ───────────────────────────────────────────────────

// entryModel keeps fetched_at as an explicit null while unleased so the
// fetch index covers waiting rows.
type entryModel struct {
	ID        string     `bson:"_id"`
	JobID     string     `bson:"job_id"`
	Queue     string     `bson:"queue"`
	AddedAt   time.Time  `bson:"added_at"`
	FetchedAt *time.Time `bson:"fetched_at"`
}

func toEntryModel(e *queue.Entry) *entryModel {
	return &entryModel{
		ID:        e.ID.String(),
		JobID:     e.JobID.String(),
		Queue:     e.Queue,
		AddedAt:   e.AddedAt.UTC(),
		FetchedAt: stamp(e.FetchedAt),
	}
}

func fromEntryModel(m *entryModel) (*queue.Entry, error) {
	entryID, err := parseID(m.ID, id.PrefixQueueEntry)
	if err != nil {
		return nil, err
	}
	jobID, err := parseID(m.JobID, id.PrefixJob)
	if err != nil {
		return nil, err
	}
	return &queue.Entry{
		ID:        entryID,
		JobID:     jobID,
		Queue:     m.Queue,
		AddedAt:   m.AddedAt.UTC(),
		FetchedAt: utc(m.FetchedAt),
	}, nil
}

// ── Counter models ────────────────────────────────────────────────

type counterModel struct {
	ID       string     `bson:"_id"`
	Key      string     `bson:"key"`
	Value    int64      `bson:"value"`
	ExpireAt *time.Time `bson:"expire_at"`
}

func toCounterModel(c *counter.Counter) *counterModel {
	return &counterModel{ID: c.ID.String(), Key: c.Key, Value: c.Value, ExpireAt: utc(c.ExpireAt)}
}

func fromCounterModel(m *counterModel) (*counter.Counter, error) {
	cid, err := parseID(m.ID, id.PrefixCounter)
	if err != nil {
		return nil, err
	}
	return &counter.Counter{ID: cid, Key: m.Key, Value: m.Value, ExpireAt: utc(m.ExpireAt)}, nil
}

type aggregateModel struct {
	ID       string     `bson:"_id"`
	Key      string     `bson:"key"`
	Value    int64      `bson:"value"`
	ExpireAt *time.Time `bson:"expire_at"`
}

func fromAggregateModel(m *aggregateModel) (*counter.Aggregate, error) {
	aid, err := parseID(m.ID, id.PrefixAggregate)
	if err != nil {
		return nil, err
	}
	return &counter.Aggregate{ID: aid, Key: m.Key, Value: m.Value, ExpireAt: utc(m.ExpireAt)}, nil
}

// ── Collection models ─────────────────────────────────────────────

type hashModel struct {
	ID       string     `bson:"_id"`
	Key      string     `bson:"key"`
	Field    string     `bson:"field"`
	Value    string     `bson:"value"`
	ExpireAt *time.Time `bson:"expire_at"`
}

type listModel struct {
	ID       string     `bson:"_id"`
	Key      string     `bson:"key"`
	Seq      int64      `bson:"seq"`
	Value    string     `bson:"value"`
	ExpireAt *time.Time `bson:"expire_at"`
}

func toListModel(it *collection.ListItem) *listModel {
	return &listModel{ID: it.ID.String(), Key: it.Key, Seq: it.Seq, Value: it.Value, ExpireAt: utc(it.ExpireAt)}
}

type setModel struct {
	ID       string     `bson:"_id"`
	Key      string     `bson:"key"`
	Value    string     `bson:"value"`
	Score    float64    `bson:"score"`
	ExpireAt *time.Time `bson:"expire_at"`
}

// valueModel decodes only the value field of a hash, list or set document.
type valueModel struct {
	Value string `bson:"value"`
}

// expiryModel decodes only the expiration of a document.
type expiryModel struct {
	ID       string     `bson:"_id"`
	ExpireAt *time.Time `bson:"expire_at"`
}

// ── Server model ──────────────────────────────────────────────────

type serverDataModel struct {
	WorkerCount int       `bson:"worker_count"`
	Queues      []string  `bson:"queues"`
	StartedAt   time.Time `bson:"started_at"`
}

type serverModel struct {
	ID            string          `bson:"_id"`
	Data          serverDataModel `bson:"data"`
	LastHeartbeat time.Time       `bson:"last_heartbeat"`
}

func toServerDataModel(d cluster.Data) serverDataModel {
	return serverDataModel{WorkerCount: d.WorkerCount, Queues: d.Queues, StartedAt: d.StartedAt.UTC()}
}

func fromServerModel(m *serverModel) *cluster.Server {
	return &cluster.Server{
		ID: m.ID,
		Data: cluster.Data{
			WorkerCount: m.Data.WorkerCount,
			Queues:      m.Data.Queues,
			StartedAt:   m.Data.StartedAt.UTC(),
		},
		LastHeartbeat: m.LastHeartbeat.UTC(),
	}
}

// ── conversions ───────────────────────────────────────────────────

// parseID parses a stored ID and checks its prefix.
func parseID(s string, prefix id.Prefix) (id.ID, error) {
	parsed, err := id.ParseWithPrefix(s, prefix)
	if err != nil {
		return id.Nil, fmt.Errorf("jobrow/mongo: parse id %q: %w", s, err)
	}
	return parsed, nil
}

// utc normalizes an optional timestamp.
func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// stamp normalizes an optional lease timestamp to the millisecond
// precision BSON dates carry.
func stamp(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	s := queue.Stamp(*t)
	return &s
}
