package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
)

// CreateJob inserts a job and its initial parameters in one transaction.
func (s *Store) CreateJob(ctx context.Context, j *job.Job, params []*job.Parameter) error {
	err := s.inTxn(ctx, func(ctx context.Context) error {
		if _, err := s.db.Collection(colJobs).InsertOne(ctx, toJobModel(j)); err != nil {
			return err
		}
		if len(params) == 0 {
			return nil
		}
		docs := make([]any, 0, len(params))
		for _, p := range params {
			pid := p.ID
			if pid.IsNil() {
				pid = id.NewParameterID()
			}
			docs = append(docs, &parameterModel{ID: pid.String(), JobID: j.ID.String(), Name: p.Name, Value: p.Value})
		}
		_, err := s.db.Collection(colParameters).InsertMany(ctx, docs)
		return err
	})
	if err != nil {
		return fmt.Errorf("jobrow/mongo: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var m jobModel
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, jobrow.ErrJobNotFound
		}
		return nil, fmt.Errorf("jobrow/mongo: get job: %w", err)
	}
	return fromJobModel(&m)
}

// SetParameter inserts or replaces the named parameter of a job.
func (s *Store) SetParameter(ctx context.Context, jobID id.JobID, name, value string) error {
	err := s.inTxn(ctx, func(ctx context.Context) error {
		n, err := s.db.Collection(colJobs).CountDocuments(ctx, bson.M{"_id": jobID.String()})
		if err != nil {
			return err
		}
		if n == 0 {
			return jobrow.ErrJobNotFound
		}
		_, err = s.db.Collection(colParameters).UpdateOne(ctx,
			bson.M{"job_id": jobID.String(), "name": name},
			bson.M{
				"$set":         bson.M{"value": value},
				"$setOnInsert": bson.M{"_id": id.NewParameterID().String()},
			},
			options.UpdateOne().SetUpsert(true),
		)
		return err
	})
	if err != nil {
		if errors.Is(err, jobrow.ErrJobNotFound) {
			return jobrow.ErrJobNotFound
		}
		return fmt.Errorf("jobrow/mongo: set parameter: %w", err)
	}
	return nil
}

// GetParameter returns the named parameter value of a job.
func (s *Store) GetParameter(ctx context.Context, jobID id.JobID, name string) (string, error) {
	var m parameterModel
	err := s.db.Collection(colParameters).FindOne(ctx, bson.M{"job_id": jobID.String(), "name": name}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return "", jobrow.ErrParameterNotFound
		}
		return "", fmt.Errorf("jobrow/mongo: get parameter: %w", err)
	}
	return m.Value, nil
}

// ListParameters returns every parameter of a job ordered by name.
func (s *Store) ListParameters(ctx context.Context, jobID id.JobID) ([]*job.Parameter, error) {
	cursor, err := s.db.Collection(colParameters).Find(ctx,
		bson.M{"job_id": jobID.String()},
		findOpts(bson.D{{Key: "name", Value: 1}}, 0, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list parameters: %w", err)
	}
	models, err := decodeAll[parameterModel](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list parameters decode: %w", err)
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
	var m stateModel
	err := s.db.Collection(colStates).FindOne(ctx, bson.M{"_id": stateID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, jobrow.ErrStateNotFound
		}
		return nil, fmt.Errorf("jobrow/mongo: get state: %w", err)
	}
	return fromStateModel(&m)
}

// ListStates returns the state history of a job, newest first.
func (s *Store) ListStates(ctx context.Context, jobID id.JobID) ([]*job.State, error) {
	cursor, err := s.db.Collection(colStates).Find(ctx,
		bson.M{"job_id": jobID.String()},
		findOpts(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}, 0, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list states: %w", err)
	}
	models, err := decodeAll[stateModel](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list states decode: %w", err)
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
	cursor, err := s.db.Collection(colJobs).Find(ctx,
		bson.M{"state_name": state},
		findOpts(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}, opts.Limit, opts.Offset),
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list jobs by state: %w", err)
	}
	models, err := decodeAll[jobModel](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list jobs by state decode: %w", err)
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
	n, err := s.db.Collection(colJobs).CountDocuments(ctx, bson.M{"state_name": state})
	if err != nil {
		return 0, fmt.Errorf("jobrow/mongo: count jobs: %w", err)
	}
	return n, nil
}
