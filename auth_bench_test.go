package goSession

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func BenchmarkAuthorizeMemory(b *testing.B) {
	benchmarkAuthorize(b, BackendMemory)
}

func BenchmarkAuthorizeRedis(b *testing.B) {
	benchmarkAuthorize(b, BackendRedis)
}

func benchmarkAuthorize(b *testing.B, backend StoreBackend) {
	engine, cleanup := newBenchmarkEngine(b, backend)
	defer cleanup()

	access, _, err := engine.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Authorize(context.Background(), access, "member"); err != nil {
			b.Fatalf("authorize failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	engine, cleanup := newBenchmarkEngine(b, BackendRedis)
	defer cleanup()

	_, refresh, err := engine.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, nextRefresh, err := engine.Refresh(context.Background(), refresh)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
		refresh = nextRefresh
	}
}

func BenchmarkLogin(b *testing.B) {
	engine, cleanup := newBenchmarkEngine(b, BackendRedis)
	defer cleanup()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		access, refresh, err := engine.Login(context.Background(), "alice", "correct-password-123")
		if err != nil {
			b.Fatalf("login failed: %v", err)
		}
		engine.Logout(context.Background(), access, refresh)
	}
}

func newBenchmarkEngine(tb testing.TB, backend StoreBackend) (*Engine, func()) {
	tb.Helper()

	cfg := testConfig()
	cfg.Metrics.Enabled = false
	cfg.Audit.Enabled = false
	cfg.JWT.AccessTTL = 10 * time.Minute
	cfg.JWT.RefreshTTL = 10 * time.Minute
	cfg.Store.Backend = backend

	b := New().WithConfig(cfg).WithUserDirectory(newMockDirectory())

	var mr *miniredis.Miniredis
	var rdb *redis.Client
	if backend == BackendRedis {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			tb.Fatalf("miniredis.Run failed: %v", err)
		}
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		b.WithRedis(rdb)
	}

	engine, err := b.Build()
	if err != nil {
		tb.Fatalf("build failed: %v", err)
	}

	return engine, func() {
		engine.Close()
		if rdb != nil {
			_ = rdb.Close()
			mr.Close()
		}
	}
}
