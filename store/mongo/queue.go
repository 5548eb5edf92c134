package mongo

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/queue"
)

// NextVisible returns the most recently added claimable row in queues.
// The caller claims it with StampEntry; a lost race shows up there.
func (s *Store) NextVisible(ctx context.Context, queues []string, threshold time.Time) (*queue.Entry, error) {
	filter := bson.M{
		"queue": bson.M{"$in": queues},
		"$or": bson.A{
			bson.M{"fetched_at": nil},
			bson.M{"fetched_at": bson.M{"$lt": threshold.UTC()}},
		},
	}
	opts := options.FindOne().SetSort(bson.D{
		{Key: "added_at", Value: -1},
		{Key: "_id", Value: -1},
	})

	var m entryModel
	if err := s.db.Collection(colQueue).FindOne(ctx, filter, opts).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jobrow/mongo: next visible entry: %w", err)
	}
	return fromEntryModel(&m)
}

// StampEntry sets fetched_at to at if it currently equals expected.
func (s *Store) StampEntry(ctx context.Context, entryID id.EntryID, expected *time.Time, at time.Time) (bool, error) {
	filter := bson.M{"_id": entryID.String(), "fetched_at": nil}
	if expected != nil {
		filter["fetched_at"] = queue.Stamp(*expected)
	}
	res, err := s.db.Collection(colQueue).UpdateOne(ctx, filter,
		bson.M{"$set": bson.M{"fetched_at": queue.Stamp(at)}},
	)
	if err != nil {
		return false, fmt.Errorf("jobrow/mongo: stamp entry: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// DeleteEntry removes the row if its queue and fetched_at match.
func (s *Store) DeleteEntry(ctx context.Context, entryID id.EntryID, queueName string, fetchedAt time.Time) (bool, error) {
	res, err := s.db.Collection(colQueue).DeleteOne(ctx, bson.M{
		"_id":        entryID.String(),
		"queue":      queueName,
		"fetched_at": queue.Stamp(fetchedAt),
	})
	if err != nil {
		return false, fmt.Errorf("jobrow/mongo: delete entry: %w", err)
	}
	return res.DeletedCount == 1, nil
}

// RequeueEntry clears fetched_at if it equals fetchedAt.
func (s *Store) RequeueEntry(ctx context.Context, entryID id.EntryID, fetchedAt time.Time) (bool, error) {
	res, err := s.db.Collection(colQueue).UpdateOne(ctx,
		bson.M{"_id": entryID.String(), "fetched_at": queue.Stamp(fetchedAt)},
		bson.M{"$set": bson.M{"fetched_at": nil}},
	)
	if err != nil {
		return false, fmt.Errorf("jobrow/mongo: requeue entry: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// ListQueues returns the distinct queue names in use, sorted.
func (s *Store) ListQueues(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	if err := s.db.Collection(colQueue).Distinct(ctx, "queue", bson.M{}).Decode(&names); err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list queues: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// ListEntries returns rows of a queue, oldest first.
func (s *Store) ListEntries(ctx context.Context, queueName string, fetched bool, opts queue.ListOpts) ([]*queue.Entry, error) {
	filter := bson.M{"queue": queueName, "fetched_at": nil}
	if fetched {
		filter["fetched_at"] = bson.M{"$ne": nil}
	}
	cursor, err := s.db.Collection(colQueue).Find(ctx, filter,
		findOpts(bson.D{{Key: "added_at", Value: 1}, {Key: "_id", Value: 1}}, opts.Limit, opts.Offset),
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list entries: %w", err)
	}
	models, err := decodeAll[entryModel](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list entries decode: %w", err)
	}

	result := make([]*queue.Entry, 0, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

// CountEntries returns the number of waiting and leased rows in a queue.
func (s *Store) CountEntries(ctx context.Context, queueName string) (int64, int64, error) {
	col := s.db.Collection(colQueue)
	enqueued, err := col.CountDocuments(ctx, bson.M{"queue": queueName, "fetched_at": nil})
	if err != nil {
		return 0, 0, fmt.Errorf("jobrow/mongo: count enqueued: %w", err)
	}
	fetched, err := col.CountDocuments(ctx, bson.M{"queue": queueName, "fetched_at": bson.M{"$ne": nil}})
	if err != nil {
		return 0, 0, fmt.Errorf("jobrow/mongo: count fetched: %w", err)
	}
	return enqueued, fetched, nil
}
