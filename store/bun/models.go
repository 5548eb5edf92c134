package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrow/cluster"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/queue"
)

// ── Job models ────────────────────────────────────────────────────

type jobModel struct {
	bun.BaseModel `bun:"table:jobrow_jobs,alias:j"`

	ID             string     `bun:"id,pk"`
	InvocationData []byte     `bun:"invocation_data,notnull"`
	Arguments      []byte     `bun:"arguments"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
	ExpireAt       *time.Time `bun:"expire_at"`
	StateID        string     `bun:"state_id,nullzero"`
	StateName      string     `bun:"state_name,nullzero"`
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
	bun.BaseModel `bun:"table:jobrow_job_parameters,alias:jp"`

	ID    string `bun:"id,pk"`
	JobID string `bun:"job_id,notnull,unique:jobrow_job_parameters_job_name"`
	Name  string `bun:"name,notnull,unique:jobrow_job_parameters_job_name"`
	Value string `bun:"value,notnull"`
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
	bun.BaseModel `bun:"table:jobrow_states,alias:js"`

	ID        string    `bun:"id,pk"`
	JobID     string    `bun:"job_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Reason    string    `bun:"reason,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	Data      string    `bun:"data,nullzero"`
}

func toStateModel(st *job.State) (*stateModel, error) {
	stateID := st.ID
	if stateID.IsNil() {
		stateID = id.NewStateID()
	}
	m := &stateModel{
		ID:        stateID.String(),
		JobID:     st.JobID.String(),
		Name:      st.Name,
		Reason:    st.Reason,
		CreatedAt: st.CreatedAt.UTC(),
	}
	if len(st.Data) > 0 {
		raw, err := json.Marshal(st.Data)
		if err != nil {
			return nil, fmt.Errorf("jobrow/bun: encode state data: %w", err)
		}
		m.Data = string(raw)
	}
	return m, nil
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
	st := &job.State{
		ID:        stateID,
		JobID:     jobID,
		Name:      m.Name,
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.Data != "" {
		if err := json.Unmarshal([]byte(m.Data), &st.Data); err != nil {
			return nil, fmt.Errorf("jobrow/bun: decode state data: %w", err)
		}
	}
	return st, nil
}

// ── Queue model ───────────────────────────────────────────────────

type entryModel struct {
	bun.BaseModel `bun:"table:jobrow_job_queue,alias:jq"`

	ID        string     `bun:"id,pk"`
	JobID     string     `bun:"job_id,notnull"`
	Queue     string     `bun:"queue,notnull"`
	AddedAt   time.Time  `bun:"added_at,notnull"`
	FetchedAt *time.Time `bun:"fetched_at"`
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
	bun.BaseModel `bun:"table:jobrow_counters,alias:c"`

	ID       string     `bun:"id,pk"`
	Key      string     `bun:"key,notnull"`
	Value    int64      `bun:"value,notnull"`
	ExpireAt *time.Time `bun:"expire_at"`
}

func fromCounterModel(m *counterModel) (*counter.Counter, error) {
	cid, err := parseID(m.ID, id.PrefixCounter)
	if err != nil {
		return nil, err
	}
	return &counter.Counter{ID: cid, Key: m.Key, Value: m.Value, ExpireAt: utc(m.ExpireAt)}, nil
}

type aggregateModel struct {
	bun.BaseModel `bun:"table:jobrow_aggregated_counters,alias:ac"`

	ID       string     `bun:"id,pk"`
	Key      string     `bun:"key,notnull,unique"`
	Value    int64      `bun:"value,notnull"`
	ExpireAt *time.Time `bun:"expire_at"`
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
	bun.BaseModel `bun:"table:jobrow_hashes,alias:h"`

	ID       string     `bun:"id,pk"`
	Key      string     `bun:"key,notnull,unique:jobrow_hashes_key_field"`
	Field    string     `bun:"field,notnull,unique:jobrow_hashes_key_field"`
	Value    string     `bun:"value,notnull"`
	ExpireAt *time.Time `bun:"expire_at"`
}

func toHashModel(key string, f *collection.HashField) *hashModel {
	hid := f.ID
	if hid.IsNil() {
		hid = id.NewHashID()
	}
	return &hashModel{ID: hid.String(), Key: key, Field: f.Field, Value: f.Value, ExpireAt: utc(f.ExpireAt)}
}

type listModel struct {
	bun.BaseModel `bun:"table:jobrow_lists,alias:l"`

	ID       string     `bun:"id,pk"`
	Key      string     `bun:"key,notnull"`
	Seq      int64      `bun:"seq,notnull"`
	Value    string     `bun:"value,notnull"`
	ExpireAt *time.Time `bun:"expire_at"`
}

func toListModel(it *collection.ListItem) *listModel {
	return &listModel{ID: it.ID.String(), Key: it.Key, Seq: it.Seq, Value: it.Value, ExpireAt: utc(it.ExpireAt)}
}

type setModel struct {
	bun.BaseModel `bun:"table:jobrow_sets,alias:s"`

	ID       string     `bun:"id,pk"`
	Key      string     `bun:"key,notnull,unique:jobrow_sets_key_value"`
	Value    string     `bun:"value,notnull,unique:jobrow_sets_key_value"`
	Score    float64    `bun:"score,notnull"`
	ExpireAt *time.Time `bun:"expire_at"`
}

func toSetModel(m *collection.SetMember) *setModel {
	return &setModel{ID: m.ID.String(), Key: m.Key, Value: m.Value, Score: m.Score, ExpireAt: utc(m.ExpireAt)}
}

// ── Server model ──────────────────────────────────────────────────

type serverModel struct {
	bun.BaseModel `bun:"table:jobrow_servers,alias:srv"`

	ID            string    `bun:"id,pk"`
	Data          string    `bun:"data,notnull"`
	LastHeartbeat time.Time `bun:"last_heartbeat,notnull"`
}

func toServerModel(srv *cluster.Server) (*serverModel, error) {
	raw, err := json.Marshal(srv.Data)
	if err != nil {
		return nil, fmt.Errorf("jobrow/bun: encode server data: %w", err)
	}
	return &serverModel{ID: srv.ID, Data: string(raw), LastHeartbeat: srv.LastHeartbeat.UTC()}, nil
}

func fromServerModel(m *serverModel) (*cluster.Server, error) {
	srv := &cluster.Server{ID: m.ID, LastHeartbeat: m.LastHeartbeat.UTC()}
	if err := json.Unmarshal([]byte(m.Data), &srv.Data); err != nil {
		return nil, fmt.Errorf("jobrow/bun: decode server data: %w", err)
	}
	return srv, nil
}

// ── Migration model ───────────────────────────────────────────────

type migrationModel struct {
	bun.BaseModel `bun:"table:jobrow_migrations,alias:m"`

	Name      string    `bun:"name,pk"`
	AppliedAt time.Time `bun:"applied_at,notnull"`
}
