package genstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGenStore shares install state across processes and survives restarts.
// Pair it with a Redis payload provider so state and payloads live together.
// Optionally, a TTL bounds how long records for abandoned generations linger.
type RedisGenStore struct {
	rdb redis.UniversalClient
	ns  string        // logical namespace; should match Options.Namespace
	ttl time.Duration // optional TTL; 0 disables expiry
}

var _ GenStore = (*RedisGenStore)(nil)

// NewRedisGenStore creates a Redis-backed install-state store without TTL.
func NewRedisGenStore(client redis.UniversalClient, namespace string) *RedisGenStore {
	return &RedisGenStore{rdb: client, ns: namespace}
}

// NewRedisGenStoreWithTTL creates a Redis-backed install-state store with TTL.
// If ttl <= 0, keys do not expire.
func NewRedisGenStoreWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisGenStore {
	return &RedisGenStore{rdb: client, ns: namespace, ttl: ttl}
}

func (s *RedisGenStore) key(gen string) string { return "genstate:" + s.ns + ":" + gen }

// Get returns the recorded state. Missing keys are Unknown.
func (s *RedisGenStore) Get(ctx context.Context, gen string) (State, error) {
	res, err := s.rdb.Get(ctx, s.key(gen)).Result()
	if err == redis.Nil {
		return Unknown, nil
	}
	if err != nil {
		return Unknown, err
	}
	return parseState(res), nil
}

// Mark stores the state. Complete records never expire; Pending records
// take the configured TTL.
func (s *RedisGenStore) Mark(ctx context.Context, gen string, st State) error {
	ttl := s.ttl
	if st == Complete || ttl < 0 {
		ttl = 0
	}
	return s.rdb.Set(ctx, s.key(gen), st.String(), ttl).Err()
}

func (s *RedisGenStore) Forget(ctx context.Context, gen string) error {
	return s.rdb.Del(ctx, s.key(gen)).Err()
}

// Cleanup is not applicable for RedisGenStore (Redis handles expiry if TTL is set).
func (s *RedisGenStore) Cleanup(time.Duration) {}

// Close is a no-op; the client is owned by the caller and may be shared with
// the payload provider.
func (s *RedisGenStore) Close(context.Context) error { return nil }
