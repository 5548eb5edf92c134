package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/expire"
)

var expireCollections = map[expire.Kind]string{
	expire.KindAggregatedCounter: colAggregates,
	expire.KindJob:               colJobs,
	expire.KindList:              colLists,
	expire.KindSet:               colSets,
	expire.KindHash:              colHashes,
}

// jobChildren hold documents keyed by job_id that go with their job.
var jobChildren = []string{colParameters, colStates, colQueue}

// PurgeExpired deletes up to limit expired documents of kind, earliest
// first. A purged job takes its parameters, states and queue rows with it.
func (s *Store) PurgeExpired(ctx context.Context, kind expire.Kind, before time.Time, limit int) (int, error) {
	col, ok := expireCollections[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %q", jobrow.ErrUnknownKind, kind)
	}

	var purged int
	err := s.inTxn(ctx, func(ctx context.Context) error {
		purged = 0
		cursor, err := s.db.Collection(col).Find(ctx,
			bson.M{"expire_at": bson.M{"$lt": before.UTC()}},
			findOpts(bson.D{{Key: "expire_at", Value: 1}}, limit, 0).SetProjection(bson.M{"_id": 1}),
		)
		if err != nil {
			return err
		}
		models, err := decodeAll[expiryModel](ctx, cursor)
		if err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		ids := make([]string, len(models))
		for i, m := range models {
			ids[i] = m.ID
		}

		if kind == expire.KindJob {
			for _, child := range jobChildren {
				if _, err := s.db.Collection(child).DeleteMany(ctx, bson.M{"job_id": bson.M{"$in": ids}}); err != nil {
					return err
				}
			}
		}

		res, err := s.db.Collection(col).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return err
		}
		purged = int(res.DeletedCount)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("jobrow/mongo: purge %s: %w", kind, err)
	}
	return purged, nil
}
