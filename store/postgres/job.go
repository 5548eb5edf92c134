package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
)

const jobColumns = `id, invocation_data, arguments, created_at, expire_at, state_id, state_name`

// CreateJob inserts a job and its initial parameters in one transaction.
func (s *Store) CreateJob(ctx context.Context, j *job.Job, params []*job.Parameter) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO jobrow_jobs (`+jobColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			j.ID.String(), j.InvocationData, j.Arguments, j.CreatedAt.UTC(),
			j.ExpireAt, nullID(j.StateID), nullText(j.StateName),
		)
		if err != nil {
			return err
		}
		for _, p := range params {
			pid := p.ID
			if pid.IsNil() {
				pid = id.NewParameterID()
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO jobrow_job_parameters (id, job_id, name, value)
				VALUES ($1, $2, $3, $4)`,
				pid.String(), j.ID.String(), p.Name, p.Value,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("jobrow/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobrow_jobs WHERE id = $1`, jobID.String())
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrow.ErrJobNotFound
		}
		return nil, fmt.Errorf("jobrow/postgres: get job: %w", err)
	}
	return j, nil
}

// SetParameter inserts or replaces the named parameter of a job.
func (s *Store) SetParameter(ctx context.Context, jobID id.JobID, name, value string) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO jobrow_job_parameters (id, job_id, name, value)
		SELECT $1, id, $3, $4 FROM jobrow_jobs WHERE id = $2
		ON CONFLICT (job_id, name) DO UPDATE SET value = EXCLUDED.value`,
		id.NewParameterID().String(), jobID.String(), name, value,
	)
	if err != nil {
		return fmt.Errorf("jobrow/postgres: set parameter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return jobrow.ErrJobNotFound
	}
	return nil
}

// GetParameter returns the named parameter value of a job.
func (s *Store) GetParameter(ctx context.Context, jobID id.JobID, name string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM jobrow_job_parameters WHERE job_id = $1 AND name = $2`,
		jobID.String(), name,
	).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", jobrow.ErrParameterNotFound
		}
		return "", fmt.Errorf("jobrow/postgres: get parameter: %w", err)
	}
	return value, nil
}

// ListParameters returns every parameter of a job ordered by name.
func (s *Store) ListParameters(ctx context.Context, jobID id.JobID) ([]*job.Parameter, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, name, value FROM jobrow_job_parameters
		WHERE job_id = $1 ORDER BY name`,
		jobID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: list parameters: %w", err)
	}
	defer rows.Close()

	result := make([]*job.Parameter, 0)
	for rows.Next() {
		var (
			p             job.Parameter
			pidStr, jobID string
		)
		if err := rows.Scan(&pidStr, &jobID, &p.Name, &p.Value); err != nil {
			return nil, fmt.Errorf("jobrow/postgres: scan parameter: %w", err)
		}
		if p.ID, err = parseID(pidStr, id.PrefixParameter); err != nil {
			return nil, err
		}
		if p.JobID, err = parseID(jobID, id.PrefixJob); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

// GetState retrieves one state history row.
func (s *Store) GetState(ctx context.Context, stateID id.StateID) (*job.State, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, job_id, name, reason, created_at, data
		FROM jobrow_states WHERE id = $1`,
		stateID.String(),
	)
	st, err := scanState(row)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrow.ErrStateNotFound
		}
		return nil, fmt.Errorf("jobrow/postgres: get state: %w", err)
	}
	return st, nil
}

// ListStates returns the state history of a job, newest first.
func (s *Store) ListStates(ctx context.Context, jobID id.JobID) ([]*job.State, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, name, reason, created_at, data
		FROM jobrow_states WHERE job_id = $1
		ORDER BY created_at DESC, id DESC`,
		jobID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: list states: %w", err)
	}
	defer rows.Close()

	result := make([]*job.State, 0)
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("jobrow/postgres: scan state: %w", err)
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

// ListJobsByState returns jobs in the given state, newest first.
func (s *Store) ListJobsByState(ctx context.Context, state string, opts job.ListOpts) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobrow_jobs
		WHERE state_name = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		state, limitArg(opts.Limit), opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: list jobs by state: %w", err)
	}
	defer rows.Close()

	result := make([]*job.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("jobrow/postgres: scan job: %w", err)
		}
		result = append(result, j)
	}
	return result, rows.Err()
}

// CountJobsByState returns the number of jobs in the given state.
func (s *Store) CountJobsByState(ctx context.Context, state string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobrow_jobs WHERE state_name = $1`, state).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("jobrow/postgres: count jobs: %w", err)
	}
	return n, nil
}

func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j         job.Job
		idStr     string
		stateID   *string
		stateName *string
	)
	err := row.Scan(&idStr, &j.InvocationData, &j.Arguments, &j.CreatedAt, &j.ExpireAt, &stateID, &stateName)
	if err != nil {
		return nil, err
	}
	if j.ID, err = parseID(idStr, id.PrefixJob); err != nil {
		return nil, err
	}
	if stateID != nil {
		if j.StateID, err = parseID(*stateID, id.PrefixState); err != nil {
			return nil, err
		}
	}
	if stateName != nil {
		j.StateName = *stateName
	}
	j.CreatedAt = j.CreatedAt.UTC()
	j.ExpireAt = utc(j.ExpireAt)
	return &j, nil
}

func scanState(row pgx.Row) (*job.State, error) {
	var (
		st           job.State
		idStr, jobID string
	)
	err := row.Scan(&idStr, &jobID, &st.Name, &st.Reason, &st.CreatedAt, &st.Data)
	if err != nil {
		return nil, err
	}
	if st.ID, err = parseID(idStr, id.PrefixState); err != nil {
		return nil, err
	}
	if st.JobID, err = parseID(jobID, id.PrefixJob); err != nil {
		return nil, err
	}
	st.CreatedAt = st.CreatedAt.UTC()
	return &st, nil
}
