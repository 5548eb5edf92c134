package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/collection"
)

// ──────────────────────────────────────────────────
// Hashes
// ──────────────────────────────────────────────────

// GetHash returns all fields of a hash.
func (s *Store) GetHash(ctx context.Context, key string) (map[string]string, error) {
	cursor, err := s.db.Collection(colHashes).Find(ctx, bson.M{"key": key})
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: get hash: %w", err)
	}
	models, err := decodeAll[hashModel](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: get hash decode: %w", err)
	}
	result := make(map[string]string, len(models))
	for _, m := range models {
		result[m.Field] = m.Value
	}
	return result, nil
}

// GetHashValue returns one field of a hash.
func (s *Store) GetHashValue(ctx context.Context, key, field string) (string, error) {
	var m hashModel
	err := s.db.Collection(colHashes).FindOne(ctx, bson.M{"key": key, "field": field}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return "", jobrow.ErrHashFieldNotFound
		}
		return "", fmt.Errorf("jobrow/mongo: get hash value: %w", err)
	}
	return m.Value, nil
}

// CountHash returns the number of fields in a hash.
func (s *Store) CountHash(ctx context.Context, key string) (int64, error) {
	return s.count(ctx, colHashes, key)
}

// HashTTL returns the time left before the hash expires.
func (s *Store) HashTTL(ctx context.Context, key string) (time.Duration, error) {
	return s.ttl(ctx, colHashes, key)
}

// ──────────────────────────────────────────────────
// Sets
// ──────────────────────────────────────────────────

var setOrder = bson.D{{Key: "score", Value: 1}, {Key: "value", Value: 1}}

// ListSet returns all members of a set by score, then value.
func (s *Store) ListSet(ctx context.Context, key string) ([]string, error) {
	values, err := s.values(ctx, colSets, bson.M{"key": key}, setOrder, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list set: %w", err)
	}
	return values, nil
}

// CountSet returns the number of members in a set.
func (s *Store) CountSet(ctx context.Context, key string) (int64, error) {
	return s.count(ctx, colSets, key)
}

// SetRange returns members at positions start through end.
func (s *Store) SetRange(ctx context.Context, key string, start, end int) ([]string, error) {
	offset, limit := collection.Window(start, end)
	if limit == 0 {
		return []string{}, nil
	}
	values, err := s.values(ctx, colSets, bson.M{"key": key}, setOrder, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: set range: %w", err)
	}
	return values, nil
}

// FirstByLowestScore returns the lowest scored member within [from, to].
func (s *Store) FirstByLowestScore(ctx context.Context, key string, from, to float64) (string, error) {
	var m valueModel
	err := s.db.Collection(colSets).FindOne(ctx,
		bson.M{"key": key, "score": bson.M{"$gte": from, "$lte": to}},
		options.FindOne().SetSort(setOrder),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return "", jobrow.ErrSetEmpty
		}
		return "", fmt.Errorf("jobrow/mongo: first by lowest score: %w", err)
	}
	return m.Value, nil
}

// SetTTL returns the time left before the set expires.
func (s *Store) SetTTL(ctx context.Context, key string) (time.Duration, error) {
	return s.ttl(ctx, colSets, key)
}

// ──────────────────────────────────────────────────
// Lists
// ──────────────────────────────────────────────────

var listOrder = bson.D{{Key: "seq", Value: 1}, {Key: "_id", Value: 1}}

// ListItems returns all items of a list in insertion order.
func (s *Store) ListItems(ctx context.Context, key string) ([]string, error) {
	values, err := s.values(ctx, colLists, bson.M{"key": key}, listOrder, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list items: %w", err)
	}
	return values, nil
}

// CountList returns the number of items in a list.
func (s *Store) CountList(ctx context.Context, key string) (int64, error) {
	return s.count(ctx, colLists, key)
}

// ListRange returns items at positions start through end.
func (s *Store) ListRange(ctx context.Context, key string, start, end int) ([]string, error) {
	offset, limit := collection.Window(start, end)
	if limit == 0 {
		return []string{}, nil
	}
	values, err := s.values(ctx, colLists, bson.M{"key": key}, listOrder, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list range: %w", err)
	}
	return values, nil
}

// ListTTL returns the time left before the list expires.
func (s *Store) ListTTL(ctx context.Context, key string) (time.Duration, error) {
	return s.ttl(ctx, colLists, key)
}

// ──────────────────────────────────────────────────
// Shared
// ──────────────────────────────────────────────────

// values reads the value field of the matching documents in order.
func (s *Store) values(ctx context.Context, col string, filter bson.M, sort bson.D, limit, offset int) ([]string, error) {
	opts := findOpts(sort, limit, offset).SetProjection(bson.M{"value": 1})
	cursor, err := s.db.Collection(col).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	models, err := decodeAll[valueModel](ctx, cursor)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(models))
	for _, m := range models {
		values = append(values, m.Value)
	}
	return values, nil
}

func (s *Store) count(ctx context.Context, col, key string) (int64, error) {
	n, err := s.db.Collection(col).CountDocuments(ctx, bson.M{"key": key})
	if err != nil {
		return 0, fmt.Errorf("jobrow/mongo: count %s: %w", col, err)
	}
	return n, nil
}

// ttl reads the earliest expiration among the documents of key.
func (s *Store) ttl(ctx context.Context, col, key string) (time.Duration, error) {
	var m expiryModel
	err := s.db.Collection(col).FindOne(ctx,
		bson.M{"key": key, "expire_at": bson.M{"$ne": nil}},
		options.FindOne().SetSort(bson.D{{Key: "expire_at", Value: 1}}),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return collection.NoTTL, nil
		}
		return 0, fmt.Errorf("jobrow/mongo: ttl %s: %w", col, err)
	}
	return collection.TTL(m.ExpireAt, time.Now()), nil
}

// collectionName maps a collection kind to its MongoDB collection.
func collectionName(kind collection.Kind) (string, error) {
	switch kind {
	case collection.KindHash:
		return colHashes, nil
	case collection.KindList:
		return colLists, nil
	case collection.KindSet:
		return colSets, nil
	}
	return "", fmt.Errorf("%w: %q", jobrow.ErrUnknownKind, kind)
}
