package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/id"
)

// ListCounters returns up to limit raw counter rows.
func (s *Store) ListCounters(ctx context.Context, limit int) ([]*counter.Counter, error) {
	cursor, err := s.db.Collection(colCounters).Find(ctx, bson.M{},
		findOpts(bson.D{{Key: "_id", Value: 1}}, limit, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list counters: %w", err)
	}
	models, err := decodeAll[counterModel](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list counters decode: %w", err)
	}

	result := make([]*counter.Counter, 0, len(models))
	for i := range models {
		c, err := fromCounterModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// FoldCounters deletes the consumed rows and upserts the folds in one
// transaction. The delete must remove every consumed row.
func (s *Store) FoldCounters(ctx context.Context, folds []counter.Fold, consumed []id.CounterID) error {
	ids := make([]string, len(consumed))
	for i, c := range consumed {
		ids[i] = c.String()
	}

	err := s.inTxn(ctx, func(ctx context.Context) error {
		if len(ids) > 0 {
			res, err := s.db.Collection(colCounters).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
			if err != nil {
				return err
			}
			if res.DeletedCount != int64(len(ids)) {
				return jobrow.ErrCountersStale
			}
		}

		aggregates := s.db.Collection(colAggregates)
		for _, f := range folds {
			var current aggregateModel
			err := aggregates.FindOne(ctx, bson.M{"key": f.Key}).Decode(&current)
			if err != nil && !isNoDocuments(err) {
				return err
			}
			_, err = aggregates.UpdateOne(ctx,
				bson.M{"key": f.Key},
				bson.M{
					"$inc":         bson.M{"value": f.Delta},
					"$set":         bson.M{"expire_at": utc(counter.LaterExpiry(current.ExpireAt, f.ExpireAt))},
					"$setOnInsert": bson.M{"_id": id.NewAggregateID().String()},
				},
				options.UpdateOne().SetUpsert(true),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("jobrow/mongo: fold counters: %w", err)
	}
	return nil
}

// GetAggregate returns the aggregate row of key.
func (s *Store) GetAggregate(ctx context.Context, key string) (*counter.Aggregate, error) {
	var m aggregateModel
	err := s.db.Collection(colAggregates).FindOne(ctx, bson.M{"key": key}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, jobrow.ErrCounterNotFound
		}
		return nil, fmt.Errorf("jobrow/mongo: get aggregate: %w", err)
	}
	return fromAggregateModel(&m)
}

// CounterValue returns the aggregate total of key plus unfolded rows.
func (s *Store) CounterValue(ctx context.Context, key string) (int64, error) {
	var total int64

	var agg aggregateModel
	err := s.db.Collection(colAggregates).FindOne(ctx, bson.M{"key": key}).Decode(&agg)
	switch {
	case err == nil:
		total = agg.Value
	case !isNoDocuments(err):
		return 0, fmt.Errorf("jobrow/mongo: counter value: %w", err)
	}

	pipeline := mongod.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "key", Value: key}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "sum", Value: bson.D{{Key: "$sum", Value: "$value"}}},
		}}},
	}
	cursor, err := s.db.Collection(colCounters).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("jobrow/mongo: counter value: %w", err)
	}
	sums, err := decodeAll[struct {
		Sum int64 `bson:"sum"`
	}](ctx, cursor)
	if err != nil {
		return 0, fmt.Errorf("jobrow/mongo: counter value decode: %w", err)
	}
	for _, row := range sums {
		total += row.Sum
	}
	return total, nil
}
