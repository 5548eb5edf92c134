package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/txn"
)

// CommitTransaction applies ops in order inside one multi-document
// transaction.
func (s *Store) CommitTransaction(ctx context.Context, ops []txn.Op) error {
	if len(ops) == 0 {
		return nil
	}
	err := s.inTxn(ctx, func(ctx context.Context) error {
		for _, op := range ops {
			if err := s.applyOp(ctx, op); err != nil {
				return fmt.Errorf("%s: %w", op.Name(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("jobrow/mongo: commit transaction: %w", err)
	}
	return nil
}

func (s *Store) applyOp(ctx context.Context, op txn.Op) error {
	var err error
	switch o := op.(type) {
	case txn.ExpireJob:
		_, err = s.db.Collection(colJobs).UpdateOne(ctx,
			bson.M{"_id": o.JobID.String()},
			bson.M{"$set": bson.M{"expire_at": o.ExpireAt.UTC()}},
		)

	case txn.PersistJob:
		_, err = s.db.Collection(colJobs).UpdateOne(ctx,
			bson.M{"_id": o.JobID.String()},
			bson.M{"$set": bson.M{"expire_at": nil}},
		)

	case txn.SetJobState:
		st := toStateModel(o.State)
		res, uerr := s.db.Collection(colJobs).UpdateOne(ctx,
			bson.M{"_id": st.JobID},
			bson.M{"$set": bson.M{"state_id": st.ID, "state_name": st.Name}},
		)
		if uerr != nil {
			return uerr
		}
		if res.MatchedCount == 0 {
			return jobrow.ErrJobNotFound
		}
		_, err = s.db.Collection(colStates).InsertOne(ctx, st)

	case txn.AddJobState:
		st := toStateModel(o.State)
		n, cerr := s.db.Collection(colJobs).CountDocuments(ctx, bson.M{"_id": st.JobID})
		if cerr != nil {
			return cerr
		}
		if n == 0 {
			return jobrow.ErrJobNotFound
		}
		_, err = s.db.Collection(colStates).InsertOne(ctx, st)

	case txn.AddToQueue:
		_, err = s.db.Collection(colQueue).InsertOne(ctx, toEntryModel(o.Entry))

	case txn.IncrementCounter:
		_, err = s.db.Collection(colCounters).InsertOne(ctx, toCounterModel(o.Counter))

	case txn.AddToSet:
		m := o.Member
		_, err = s.db.Collection(colSets).UpdateOne(ctx,
			bson.M{"key": m.Key, "value": m.Value},
			bson.M{
				"$set":         bson.M{"score": m.Score},
				"$setOnInsert": bson.M{"_id": m.ID.String(), "expire_at": utc(m.ExpireAt)},
			},
			options.UpdateOne().SetUpsert(true),
		)

	case txn.RemoveFromSet:
		_, err = s.db.Collection(colSets).DeleteOne(ctx, bson.M{"key": o.Key, "value": o.Value})

	case txn.InsertToList:
		_, err = s.db.Collection(colLists).InsertOne(ctx, toListModel(o.Item))

	case txn.RemoveFromList:
		_, err = s.db.Collection(colLists).DeleteMany(ctx, bson.M{"key": o.Key, "value": o.Value})

	case txn.TrimList:
		err = s.trimList(ctx, o)

	case txn.SetRangeInHash:
		for _, f := range o.Fields {
			hid := f.ID
			if hid.IsNil() {
				hid = id.NewHashID()
			}
			if _, err := s.db.Collection(colHashes).UpdateOne(ctx,
				bson.M{"key": o.Key, "field": f.Field},
				bson.M{
					"$set":         bson.M{"value": f.Value},
					"$setOnInsert": bson.M{"_id": hid.String(), "expire_at": utc(f.ExpireAt)},
				},
				options.UpdateOne().SetUpsert(true),
			); err != nil {
				return err
			}
		}

	case txn.RemoveHash:
		_, err = s.db.Collection(colHashes).DeleteMany(ctx, bson.M{"key": o.Key})

	case txn.ExpireCollection:
		col, cerr := collectionName(o.Kind)
		if cerr != nil {
			return cerr
		}
		_, err = s.db.Collection(col).UpdateMany(ctx,
			bson.M{"key": o.Key},
			bson.M{"$set": bson.M{"expire_at": utc(o.ExpireAt)}},
		)

	default:
		return fmt.Errorf("unsupported operation %s", op.Name())
	}
	return err
}

// trimList keeps the items at positions Start through End and deletes the
// rest of the list.
func (s *Store) trimList(ctx context.Context, o txn.TrimList) error {
	lists := s.db.Collection(colLists)
	offset, limit := collection.Window(o.Start, o.End)
	if limit == 0 {
		_, err := lists.DeleteMany(ctx, bson.M{"key": o.Key})
		return err
	}

	cursor, err := lists.Find(ctx, bson.M{"key": o.Key},
		findOpts(listOrder, limit, offset).SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return err
	}
	keep, err := decodeAll[expiryModel](ctx, cursor)
	if err != nil {
		return err
	}
	ids := make([]string, len(keep))
	for i, m := range keep {
		ids[i] = m.ID
	}
	_, err = lists.DeleteMany(ctx, bson.M{"key": o.Key, "_id": bson.M{"$nin": ids}})
	return err
}
