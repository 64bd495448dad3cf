package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config tunes the login limiter. Attempts beyond MaxAttempts inside one
// Window are refused until the window's key expires.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	// PerIP also counts failures per client address.
	PerIP  bool
	Prefix string
}

// Limiter counts failed logins in Redis fixed windows.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New returns a Limiter. An empty Prefix becomes "rl".
func New(client redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	return &Limiter{redis: client, config: cfg}
}

// Check fails with ErrRateLimited when identifier or ip has used up its
// window. It does not count the attempt.
func (l *Limiter) Check(ctx context.Context, identifier, ip string) error {
	for _, key := range l.keys(identifier, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count >= int64(l.config.MaxAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// Fail records one failed attempt.
func (l *Limiter) Fail(ctx context.Context, identifier, ip string) error {
	for _, key := range l.keys(identifier, ip) {
		if _, err := l.incrementWithTTL(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the counters after a successful login.
func (l *Limiter) Reset(ctx context.Context, identifier, ip string) error {
	if err := l.redis.Del(ctx, l.keys(identifier, ip)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failures recorded for identifier in the current window.
func (l *Limiter) Attempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, l.identifierKey(identifier)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(max(count, 0)), nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// The window starts at the first failure.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func (l *Limiter) keys(identifier, ip string) []string {
	keys := []string{l.identifierKey(identifier)}
	if l.config.PerIP && ip != "" {
		keys = append(keys, l.config.Prefix+":ip:"+ip)
	}
	return keys
}

func (l *Limiter) identifierKey(identifier string) string {
	return l.config.Prefix + ":id:" + strings.ToLower(strings.TrimSpace(identifier))
}
