package allowlist

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries as plain keys under a namespace. Expiry is handled by
// Redis; an absent key means the token is not allowed.
type RedisStore struct {
	redis     redis.UniversalClient
	namespace string
}

// NewRedisStore returns a store writing keys as "<namespace>:<jti>". An empty
// namespace falls back to AccessNamespace.
func NewRedisStore(client redis.UniversalClient, namespace string) *RedisStore {
	if namespace == "" {
		namespace = AccessNamespace
	}
	return &RedisStore{redis: client, namespace: namespace}
}

// Namespace returns the key prefix of this store.
func (s *RedisStore) Namespace() string {
	return s.namespace
}

func (s *RedisStore) key(jti string) string {
	return s.namespace + ":" + jti
}

func (s *RedisStore) Allow(ctx context.Context, jti, userID string, ttl time.Duration) error {
	if err := validateEntry(jti, ttl); err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(jti), userID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) IsAllowed(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

func (s *RedisStore) Revoke(ctx context.Context, jti string) error {
	if jti == "" {
		return nil
	}
	if err := s.redis.Del(ctx, s.key(jti)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Redeem deletes the entry and reports whether this call removed it. DEL is
// atomic, so concurrent callers see exactly one reply of 1.
func (s *RedisStore) Redeem(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := s.redis.Del(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

// Ping checks connectivity and reports the round-trip latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
