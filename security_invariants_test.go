package goSession

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/allowlist"
	"github.com/MrEthical07/goSession/jwt"
)

func TestSecurityInvariantSignatureIsNotSufficient(t *testing.T) {
	te := newTestEngine(t, testConfig())

	issued, err := te.codec.Create("u2", jwt.TypeAccess, time.Minute, map[string]any{"role": "admin"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := te.codec.Decode(issued.Token); err != nil {
		t.Fatalf("token should verify: %v", err)
	}
	if _, err := te.Authorize(context.Background(), issued.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unlisted token authorized: %v", err)
	}
}

func TestSecurityInvariantRevokeIsPermanent(t *testing.T) {
	te := newTestEngine(t, testConfig())
	ctx := context.Background()

	access, refresh := loginAlice(t, te)
	te.Logout(ctx, access, refresh)

	// Later logins allow-list fresh jtis; the revoked ones stay dead.
	loginAlice(t, te)
	if te.accessAllowed(t, access) || te.refreshAllowed(t, refresh) {
		t.Fatal("revoked jti came back")
	}
}

func TestSecurityInvariantOneLiveRefreshPerChain(t *testing.T) {
	store := allowlist.NewMemoryStore()
	engine, err := New().
		WithConfig(testConfig()).
		WithUserDirectory(newMockDirectory()).
		WithAllowLists(allowlist.NewMemoryStore(), store).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer engine.Close()
	ctx := context.Background()

	_, refresh, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		_, refresh, err = engine.Refresh(ctx, refresh)
		if err != nil {
			t.Fatalf("refresh %d failed: %v", i, err)
		}
		if n := store.Len(); n != 1 {
			t.Fatalf("expected one live refresh jti after rotation %d, got %d", i, n)
		}
	}
}

func TestSecurityInvariantScenarios(t *testing.T) {
	te := newTestEngine(t, testConfig())
	ctx := context.Background()

	// login
	a, r := loginAlice(t, te)
	if !te.accessAllowed(t, a) || !te.refreshAllowed(t, r) {
		t.Fatal("login did not allow-list both jtis")
	}

	// refresh
	a2, r2, err := te.Refresh(ctx, r)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if te.refreshAllowed(t, r) || !te.refreshAllowed(t, r2) {
		t.Fatal("rotation did not swap refresh jtis")
	}

	// logout
	te.Logout(ctx, a2, "")
	if te.accessAllowed(t, a2) {
		t.Fatal("logout left access jti listed")
	}
	if _, err := te.Authorize(ctx, a2); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	// reset
	token, err := te.RequestPasswordReset(ctx, "alice")
	if err != nil {
		t.Fatalf("reset request failed: %v", err)
	}
	userID, ok, err := te.resets.Consume(ctx, token)
	if err != nil || !ok || userID != "u1" {
		t.Fatalf("first consume: got (%q, %v, %v)", userID, ok, err)
	}
	if _, ok, _ := te.resets.Consume(ctx, token); ok {
		t.Fatal("second consume succeeded")
	}
}
