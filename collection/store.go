package collection

import (
	"context"
	"time"
)

// Store defines the read side of hashes, lists and sets.
//
// List reads return items in insertion order. Set reads return members
// ordered by score, then value. Range reads take inclusive indexes.
type Store interface {
	// GetHash returns all fields of a hash. An unknown key yields an empty map.
	GetHash(ctx context.Context, key string) (map[string]string, error)

	// GetHashValue returns one field of a hash.
	GetHashValue(ctx context.Context, key, field string) (string, error)

	// CountHash returns the number of fields in a hash.
	CountHash(ctx context.Context, key string) (int64, error)

	// HashTTL returns the time left before the hash expires, or NoTTL.
	HashTTL(ctx context.Context, key string) (time.Duration, error)

	// ListSet returns all members of a set.
	ListSet(ctx context.Context, key string) ([]string, error)

	// CountSet returns the number of members in a set.
	CountSet(ctx context.Context, key string) (int64, error)

	// SetRange returns members at positions start through end.
	SetRange(ctx context.Context, key string, start, end int) ([]string, error)

	// FirstByLowestScore returns the member with the lowest score within
	// [from, to].
	FirstByLowestScore(ctx context.Context, key string, from, to float64) (string, error)

	// SetTTL returns the time left before the set expires, or NoTTL.
	SetTTL(ctx context.Context, key string) (time.Duration, error)

	// ListItems returns all items of a list.
	ListItems(ctx context.Context, key string) ([]string, error)

	// CountList returns the number of items in a list.
	CountList(ctx context.Context, key string) (int64, error)

	// ListRange returns items at positions start through end.
	ListRange(ctx context.Context, key string, start, end int) ([]string, error)

	// ListTTL returns the time left before the list expires, or NoTTL.
	ListTTL(ctx context.Context, key string) (time.Duration, error)
}
