package store

import (
	"context"
	"errors"
	"time"
)

// ErrConflict is returned by Update when a concurrent writer touched the key
// between the read and the write. Callers decide whether to retry.
var ErrConflict = errors.New("store: concurrent update conflict")

// ScoredMember is one entry of a ranked set, highest score first when
// returned from RevRangeWithScores.
type ScoredMember struct {
	Member string
	Score  float64
}

// KV abstracts the key-value store primitives the game core relies on:
// strings with TTL, hashes, sorted sets and counters. Every operation is a
// single-key atomic primitive; there are no multi-key transactions.
type KV interface {
	// Get returns the value at key, or (nil, nil) on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only if key is absent. Reports whether this caller won.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Update atomically replaces the value at key. fn is applied to the
	// current value (nil on miss); returning an error aborts without writing.
	// ErrConflict is returned when another writer raced this update.
	Update(ctx context.Context, key string, ttl time.Duration, fn func(old []byte) ([]byte, error)) error
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error

	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]interface{}) error
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	ZAdd(ctx context.Context, key, member string, score float64) error
	ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error)
	// ZRevRangeWithScores returns members ordered by descending score,
	// positions start..stop inclusive (0-based).
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)
	// ZRevRank returns the 0-based descending rank of member; ok=false when absent.
	ZRevRank(ctx context.Context, key, member string) (rank int64, ok bool, err error)
	ZScore(ctx context.Context, key, member string) (score float64, ok bool, err error)
	ZCard(ctx context.Context, key string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
