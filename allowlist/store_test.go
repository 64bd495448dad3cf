package allowlist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type backend struct {
	name    string
	store   RotatingStore
	advance func(time.Duration)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func backends(t *testing.T) []backend {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	mr, rdb := newTestRedis(t)
	return []backend{
		{name: "memory", store: NewMemoryStore(WithClock(clock.Now)), advance: clock.Advance},
		{name: "redis", store: NewRedisStore(rdb, AccessNamespace), advance: mr.FastForward},
	}
}

func TestStoreContract(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.store

			ok, err := s.IsAllowed(ctx, "missing")
			if err != nil || ok {
				t.Fatalf("expected unknown jti to be denied without error, got %v %v", ok, err)
			}

			if err := s.Allow(ctx, "j1", "u1", time.Minute); err != nil {
				t.Fatalf("allow: %v", err)
			}
			ok, err = s.IsAllowed(ctx, "j1")
			if err != nil || !ok {
				t.Fatalf("expected j1 allowed, got %v %v", ok, err)
			}

			if err := s.Revoke(ctx, "j1"); err != nil {
				t.Fatalf("revoke: %v", err)
			}
			if err := s.Revoke(ctx, "j1"); err != nil {
				t.Fatalf("second revoke must be a no-op: %v", err)
			}
			if ok, _ := s.IsAllowed(ctx, "j1"); ok {
				t.Fatal("expected revoked jti to be denied")
			}
			if err := s.Revoke(ctx, "never-existed"); err != nil {
				t.Fatalf("revoke of unknown jti: %v", err)
			}
		})
	}
}

func TestStoreExpiry(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			if err := b.store.Allow(ctx, "j1", "u1", 10*time.Second); err != nil {
				t.Fatalf("allow: %v", err)
			}
			b.advance(9 * time.Second)
			if ok, _ := b.store.IsAllowed(ctx, "j1"); !ok {
				t.Fatal("expected entry to be live before ttl")
			}
			b.advance(2 * time.Second)
			if ok, _ := b.store.IsAllowed(ctx, "j1"); ok {
				t.Fatal("expected entry to expire after ttl")
			}
			if won, _ := b.store.Redeem(ctx, "j1"); won {
				t.Fatal("expected expired entry to be unredeemable")
			}
		})
	}
}

func TestStoreAllowOverwrites(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			if err := b.store.Allow(ctx, "j1", "u1", 5*time.Second); err != nil {
				t.Fatalf("allow: %v", err)
			}
			if err := b.store.Allow(ctx, "j1", "u1", time.Minute); err != nil {
				t.Fatalf("re-allow: %v", err)
			}
			b.advance(10 * time.Second)
			if ok, _ := b.store.IsAllowed(ctx, "j1"); !ok {
				t.Fatal("expected overwritten ttl to apply")
			}
		})
	}
}

func TestStoreRejectsInvalidEntries(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			if err := b.store.Allow(ctx, "", "u1", time.Minute); !errors.Is(err, ErrInvalidEntry) {
				t.Fatalf("expected ErrInvalidEntry for empty jti, got %v", err)
			}
			if err := b.store.Allow(ctx, "j", "u1", 0); !errors.Is(err, ErrInvalidEntry) {
				t.Fatalf("expected ErrInvalidEntry for zero ttl, got %v", err)
			}
		})
	}
}

func TestRedeemSingleWinner(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			if err := b.store.Allow(ctx, "r1", "u1", time.Hour); err != nil {
				t.Fatalf("allow: %v", err)
			}

			const workers = 32
			var wins int32
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					won, err := b.store.Redeem(ctx, "r1")
					if err != nil {
						t.Errorf("redeem: %v", err)
						return
					}
					if won {
						atomic.AddInt32(&wins, 1)
					}
				}()
			}
			close(start)
			wg.Wait()

			if wins != 1 {
				t.Fatalf("expected exactly one redemption, got %d", wins)
			}
			if ok, _ := b.store.IsAllowed(ctx, "r1"); ok {
				t.Fatal("expected redeemed jti to be gone")
			}
		})
	}
}

func TestRedisNamespacesAreIsolated(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	access := NewRedisStore(rdb, AccessNamespace)
	refresh := NewRedisStore(rdb, RefreshNamespace)

	if err := access.Allow(ctx, "shared", "u1", time.Minute); err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok, _ := refresh.IsAllowed(ctx, "shared"); ok {
		t.Fatal("expected refresh list not to see access entry")
	}
	if v, err := rdb.Get(ctx, "auth:access:shared").Result(); err != nil || v != "u1" {
		t.Fatalf("expected namespaced key holding user id, got %q %v", v, err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStore(rdb, "")
	ctx := context.Background()
	mr.Close()

	if err := s.Allow(ctx, "j", "u", time.Minute); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from Allow, got %v", err)
	}
	ok, err := s.IsAllowed(ctx, "j")
	if ok || !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected IsAllowed to fail closed, got %v %v", ok, err)
	}
	won, err := s.Redeem(ctx, "j")
	if won || !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected Redeem to fail closed, got %v %v", won, err)
	}
	if _, err := s.Ping(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected Ping to fail, got %v", err)
	}
}

func TestMemorySweepRemovesExpired(t *testing.T) {
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	for _, jti := range []string{"a", "b", "c"} {
		if err := s.Allow(ctx, jti, "u", time.Second); err != nil {
			t.Fatalf("allow: %v", err)
		}
	}
	if err := s.Allow(ctx, "long", "u", time.Hour); err != nil {
		t.Fatalf("allow: %v", err)
	}
	clock.Advance(2 * time.Second)
	if _, err := s.IsAllowed(ctx, "long"); err != nil {
		t.Fatalf("is allowed: %v", err)
	}
	if got := s.Len(); got != 1 {
		t.Fatalf("expected sweep to leave 1 entry, got %d", got)
	}
}

func TestMemorySweepInterval(t *testing.T) {
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(WithClock(clock.Now), WithSweepInterval(time.Minute))
	ctx := context.Background()

	_ = s.Allow(ctx, "a", "u", time.Second)
	_ = s.Allow(ctx, "b", "u", time.Hour)
	clock.Advance(2 * time.Second)

	if ok, _ := s.IsAllowed(ctx, "a"); ok {
		t.Fatal("expected expired entry to be denied between sweeps")
	}
	_ = s.Allow(ctx, "c", "u", time.Second)
	clock.Advance(2 * time.Second)
	if got := s.Len(); got != 2 {
		t.Fatalf("expected throttled sweep to keep stale entry, got %d entries", got)
	}

	clock.Advance(time.Minute)
	_, _ = s.IsAllowed(ctx, "b")
	if got := s.Len(); got != 1 {
		t.Fatalf("expected full sweep after interval, got %d entries", got)
	}
}
