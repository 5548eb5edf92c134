package bunstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
)

// CreateJob inserts a job and its initial parameters in one transaction.
func (s *Store) CreateJob(ctx context.Context, j *job.Job, params []*job.Parameter) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(toJobModel(j)).Exec(ctx); err != nil {
			return err
		}
		for _, p := range params {
			pid := p.ID
			if pid.IsNil() {
				pid = id.NewParameterID()
			}
			m := &parameterModel{ID: pid.String(), JobID: j.ID.String(), Name: p.Name, Value: p.Value}
			if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("jobrow/bun: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", jobID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrow.ErrJobNotFound
		}
		return nil, fmt.Errorf("jobrow/bun: get job: %w", err)
	}
	return fromJobModel(m)
}

// SetParameter inserts or replaces the named parameter of a job.
func (s *Store) SetParameter(ctx context.Context, jobID id.JobID, name, value string) error {
	res, err := s.db.NewRaw(`
		INSERT INTO jobrow_job_parameters (id, job_id, name, value)
		SELECT ?, id, ?, ? FROM jobrow_jobs WHERE id = ?
		ON CONFLICT (job_id, name) DO UPDATE SET value = excluded.value`,
		id.NewParameterID().String(), name, value, jobID.String(),
	).Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobrow/bun: set parameter: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return fmt.Errorf("jobrow/bun: set parameter: %w", err)
	}
	if n == 0 {
		return jobrow.ErrJobNotFound
	}
	return nil
}

// GetParameter returns the named parameter value of a job.
func (s *Store) GetParameter(ctx context.Context, jobID id.JobID, name string) (string, error) {
	m := new(parameterModel)
	err := s.db.NewSelect().Model(m).
		Where("job_id = ?", jobID.String()).
		Where("name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return "", jobrow.ErrParameterNotFound
		}
		return "", fmt.Errorf("jobrow/bun: get parameter: %w", err)
	}
	return m.Value, nil
}

// ListParameters returns every parameter of a job ordered by name.
func (s *Store) ListParameters(ctx context.Context, jobID id.JobID) ([]*job.Parameter, error) {
	var models []parameterModel
	err := s.db.NewSelect().Model(&models).
		Where("job_id = ?", jobID.String()).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("jobrow/bun: list parameters: %w", err)
	}

	result := make([]*job.Parameter, 0, len(models))
	for i := range models {
		p, err := fromParameterModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

// GetState retrieves one state history row.
func (s *Store) GetState(ctx context.Context, stateID id.StateID) (*job.State, error) {
	m := new(stateModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", stateID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrow.ErrStateNotFound
		}
		return nil, fmt.Errorf("jobrow/bun: get state: %w", err)
	}
	return fromStateModel(m)
}

// ListStates returns the state history of a job, newest first.
func (s *Store) ListStates(ctx context.Context, jobID id.JobID) ([]*job.State, error) {
	var models []stateModel
	err := s.db.NewSelect().Model(&models).
		Where("job_id = ?", jobID.String()).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("jobrow/bun: list states: %w", err)
	}

	result := make([]*job.State, 0, len(models))
	for i := range models {
		st, err := fromStateModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, nil
}

// ListJobsByState returns jobs in the given state, newest first.
func (s *Store) ListJobsByState(ctx context.Context, state string, opts job.ListOpts) ([]*job.Job, error) {
	var models []jobModel
	q := s.db.NewSelect().Model(&models).
		Where("state_name = ?", state).
		Order("created_at DESC", "id DESC")
	if err := page(q, opts.Limit, opts.Offset).Scan(ctx); err != nil {
		return nil, fmt.Errorf("jobrow/bun: list jobs by state: %w", err)
	}

	result := make([]*job.Job, 0, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, j)
	}
	return result, nil
}

// CountJobsByState returns the number of jobs in the given state.
func (s *Store) CountJobsByState(ctx context.Context, state string) (int64, error) {
	n, err := s.db.NewSelect().Model((*jobModel)(nil)).
		Where("state_name = ?", state).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("jobrow/bun: count jobs: %w", err)
	}
	return int64(n), nil
}
