package goSession

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/allowlist"
	"github.com/MrEthical07/goSession/reset"
	"github.com/redis/go-redis/v9"
)

type loginOnlyDirectory struct {
	dir *mockDirectory
}

func (d loginOnlyDirectory) Resolve(ctx context.Context, subjectID string) (Identity, error) {
	return d.dir.Resolve(ctx, subjectID)
}

func (d loginOnlyDirectory) VerifyCredentials(ctx context.Context, identifier, secret string) (Identity, error) {
	return d.dir.VerifyCredentials(ctx, identifier, secret)
}

func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithUserDirectory(newMockDirectory())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderRequiresUserDirectory(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without user directory")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Secret = nil
	if _, err := New().WithConfig(cfg).WithUserDirectory(newMockDirectory()).Build(); err == nil {
		t.Fatal("expected config error")
	}
}

func TestBuilderPasswordResetNeedsResetDirectory(t *testing.T) {
	dir := loginOnlyDirectory{newMockDirectory()}
	if _, err := New().WithConfig(testConfig()).WithUserDirectory(dir).Build(); err == nil {
		t.Fatal("expected error for directory without ResetDirectory")
	}

	cfg := testConfig()
	cfg.PasswordReset.Enabled = false
	engine, err := New().WithConfig(cfg).WithUserDirectory(dir).Build()
	if err != nil {
		t.Fatalf("build without reset failed: %v", err)
	}
	engine.Close()
}

func TestBuilderAllowListsMustBePaired(t *testing.T) {
	_, err := New().
		WithConfig(testConfig()).
		WithUserDirectory(newMockDirectory()).
		WithAllowLists(allowlist.NewMemoryStore(), nil).
		Build()
	if err == nil {
		t.Fatal("expected error for half-injected allow-lists")
	}
}

func TestBuilderRedisBackendRequiresClient(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = BackendRedis
	if _, err := New().WithConfig(cfg).WithUserDirectory(newMockDirectory()).Build(); err == nil {
		t.Fatal("expected error without redis client")
	}
}

func TestBuilderUnreachableRedisFailsByDefault(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = BackendRedis
	cfg.Store.StartupTimeout = 200 * time.Millisecond

	rdb := unreachableRedis()
	defer rdb.Close()

	_, err := New().WithConfig(cfg).WithRedis(rdb).WithUserDirectory(newMockDirectory()).Build()
	if err == nil || !strings.Contains(err.Error(), "redis unreachable") {
		t.Fatalf("expected redis unreachable error, got %v", err)
	}
}

func TestBuilderUnreachableRedisFallbackOptIn(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = BackendRedis
	cfg.Store.AllowMemoryFallback = true
	cfg.Store.StartupTimeout = 200 * time.Millisecond

	rdb := unreachableRedis()
	defer rdb.Close()

	var logs bytes.Buffer
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserDirectory(newMockDirectory()).
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))).
		Build()
	if err != nil {
		t.Fatalf("expected fallback build, got %v", err)
	}
	defer engine.Close()

	if engine.Backend() != BackendMemory {
		t.Fatalf("expected memory backend, got %s", engine.Backend())
	}
	if !strings.Contains(logs.String(), "falling back") {
		t.Fatalf("expected fallback warning, got %q", logs.String())
	}
	report := engine.SecurityReport()
	if !report.MemoryFallbackUsed || report.StoreBackend != BackendMemory {
		t.Fatalf("report does not show the fallback: %+v", report)
	}

	access, _, err := engine.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login on fallback stores failed: %v", err)
	}
	if _, err := engine.Authorize(context.Background(), access); err != nil {
		t.Fatalf("authorize on fallback stores failed: %v", err)
	}
}

func TestBuilderRedisBackendUsesNamespaces(t *testing.T) {
	mr, rdb := newTestRedis(t)

	cfg := testConfig()
	cfg.Store.Backend = BackendRedis
	cfg.Store.AccessNamespace = "app:a"
	cfg.Store.RefreshNamespace = "app:r"
	cfg.Store.ResetNamespace = "app:p"

	engine, err := New().WithConfig(cfg).WithRedis(rdb).WithUserDirectory(newMockDirectory()).Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer engine.Close()

	if _, _, err := engine.Login(context.Background(), "alice", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := engine.RequestPasswordReset(context.Background(), "alice"); err != nil {
		t.Fatalf("reset request failed: %v", err)
	}

	prefixes := map[string]int{}
	for _, k := range mr.Keys() {
		prefixes[k[:strings.LastIndex(k, ":")]]++
	}
	for _, ns := range []string{"app:a", "app:r", "app:p"} {
		if prefixes[ns] != 1 {
			t.Fatalf("expected one key under %s, got %v", ns, prefixes)
		}
	}
	if engine.Backend() != BackendRedis {
		t.Fatalf("expected redis backend, got %s", engine.Backend())
	}
}

func TestBuilderInjectedStoresOverrideBackend(t *testing.T) {
	access := allowlist.NewMemoryStore()
	refresh := allowlist.NewMemoryStore()
	resets := reset.NewMemoryStore(nil)

	cfg := testConfig()
	cfg.Store.Backend = BackendRedis // no client needed when every store is injected

	engine, err := New().
		WithConfig(cfg).
		WithUserDirectory(newMockDirectory()).
		WithAllowLists(access, refresh).
		WithResetStore(resets).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer engine.Close()

	if _, _, err := engine.Login(context.Background(), "alice", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if access.Len() != 1 || refresh.Len() != 1 {
		t.Fatalf("expected injected stores used, got %d/%d", access.Len(), refresh.Len())
	}
	if _, err := engine.RequestPasswordReset(context.Background(), "alice"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if resets.Len() != 1 {
		t.Fatalf("expected injected reset store used, got %d", resets.Len())
	}
	if engine.Backend() != BackendMemory || engine.SecurityReport().StoreBackend != BackendMemory {
		t.Fatalf("expected memory backend reported for injected memory stores, got %q/%q",
			engine.Backend(), engine.SecurityReport().StoreBackend)
	}
}

type wrappedRefreshStore struct {
	*allowlist.MemoryStore
}

func TestBuilderReportsInjectedBackendForCustomStores(t *testing.T) {
	engine, err := New().
		WithConfig(testConfig()).
		WithUserDirectory(newMockDirectory()).
		WithAllowLists(allowlist.NewMemoryStore(), wrappedRefreshStore{allowlist.NewMemoryStore()}).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer engine.Close()

	if engine.Backend() != BackendInjected {
		t.Fatalf("expected injected backend, got %q", engine.Backend())
	}
	if engine.SecurityReport().StoreBackend != BackendInjected {
		t.Fatalf("expected report to show injected backend, got %q", engine.SecurityReport().StoreBackend)
	}
}

func TestBuildConfigImmutableAgainstExternalMutation(t *testing.T) {
	cfg := testConfig()
	secret := append([]byte(nil), testSecret...)
	cfg.JWT.Secret = secret

	b := New().WithConfig(cfg).WithUserDirectory(newMockDirectory())
	secret[0] ^= 0xff
	cfg.JWT.AccessTTL = time.Hour

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer engine.Close()

	if engine.Config().JWT.AccessTTL != 15*time.Minute {
		t.Fatal("builder config changed through caller copy")
	}
	if engine.Config().JWT.Secret[0] != testSecret[0] {
		t.Fatal("builder secret changed through caller slice")
	}
}

func TestSecurityReportReflectsPosture(t *testing.T) {
	cfg := testConfig()
	cfg.Authorization.TrustTokenRole = true
	cfg.Audit.Enabled = true
	te := newTestEngine(t, cfg)

	r := te.SecurityReport()
	if r.SigningAlgorithm != "hs256" || !r.TrustTokenRole || !r.AuditActive || !r.MetricsActive {
		t.Fatalf("unexpected report %+v", r)
	}
	if !r.PasswordResetActive || r.MemoryFallbackUsed || r.StoreBackend != BackendMemory {
		t.Fatalf("unexpected store posture %+v", r)
	}
	if !r.IssuerChecked || !r.AudienceChecked {
		t.Fatalf("expected issuer and audience checked, got %+v", r)
	}
	if !containsCode(r.LintWarnings, "trust_token_role_enabled") {
		t.Fatalf("expected lint codes in report, got %v", r.LintWarnings)
	}
}
