package reset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps reset tokens as "<namespace>:<sha256(token)>" keys holding
// the user id. Expiry is handled by Redis.
type RedisStore struct {
	redis     redis.UniversalClient
	namespace string
}

// NewRedisStore returns a store under namespace, or Namespace when empty.
func NewRedisStore(client redis.UniversalClient, namespace string) *RedisStore {
	if namespace == "" {
		namespace = Namespace
	}
	return &RedisStore{redis: client, namespace: namespace}
}

func (s *RedisStore) key(token string) string {
	return s.namespace + ":" + internal.TokenDigest(token)
}

func (s *RedisStore) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	if err := validateIssue(userID, ttl); err != nil {
		return "", err
	}

	// a collision on 256 random bits means the generator is broken; retry once
	for attempt := 0; attempt < 2; attempt++ {
		token, err := newToken()
		if err != nil {
			return "", err
		}
		ok, err := s.redis.SetNX(ctx, s.key(token), userID, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if ok {
			return token, nil
		}
	}
	return "", errors.New("reset token collision")
}

// Consume uses GETDEL so the read and the removal are one command.
func (s *RedisStore) Consume(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	userID, err := s.redis.GetDel(ctx, s.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return userID, true, nil
}

func (s *RedisStore) Peek(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	userID, err := s.redis.Get(ctx, s.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return userID, true, nil
}

// Ping checks connectivity and reports the round-trip latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
