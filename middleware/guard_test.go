package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthorizer struct {
	token string
	role  string

	gotIP    string
	gotRoles []string
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, token string, roles ...string) (*goSession.AuthResult, error) {
	f.gotIP, _ = goSession.ClientIPFromContext(ctx)
	f.gotRoles = roles
	if token != f.token {
		return nil, goSession.ErrUnauthorized
	}
	if len(roles) > 0 {
		allowed := false
		for _, r := range roles {
			if r == f.role {
				allowed = true
			}
		}
		if !allowed {
			return nil, goSession.ErrForbidden
		}
	}
	return &goSession.AuthResult{UserID: "u1", Role: f.role, TokenID: "jti-1"}, nil
}

func protected(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := AuthResultFromContext(r.Context())
		if !assert.True(t, ok, "auth result missing from context") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(res.UserID + ":" + res.Role))
	})
}

func serve(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuardRejectsMissingBearer(t *testing.T) {
	authz := &fakeAuthorizer{token: "good", role: "member"}
	h := RequireAuthenticated(authz)(protected(t))

	for _, header := range []string{"", "Basic Zm9vOmJhcg==", "Bearer ", "Bearer    "} {
		rec := serve(h, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"), "header %q", header)
	}
}

func TestGuardRejectsInvalidToken(t *testing.T) {
	authz := &fakeAuthorizer{token: "good", role: "member"}
	rec := serve(RequireAuthenticated(authz)(protected(t)), "Bearer forged")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
}

func TestGuardForbidsWrongRole(t *testing.T) {
	authz := &fakeAuthorizer{token: "good", role: "member"}
	rec := serve(RequireRoles(authz, "admin")(protected(t)), "Bearer good")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, []string{"admin"}, authz.gotRoles)
}

func TestGuardAdmitsAndForwardsResult(t *testing.T) {
	authz := &fakeAuthorizer{token: "good", role: "admin"}
	rec := serve(RequireRoles(authz, "member", "admin")(protected(t)), "bearer good")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1:admin", rec.Body.String())
	assert.Equal(t, "203.0.113.7", authz.gotIP)
}

func TestGuardNilEngine(t *testing.T) {
	rec := serve(Guard(nil)(protected(t)), "Bearer good")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.RemoteAddr = "unix-socket"
	assert.Equal(t, "unix-socket", ClientIP(req))
}

func TestGuardWithEngine(t *testing.T) {
	cfg := goSession.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")

	engine, err := goSession.New().
		WithConfig(cfg).
		WithUserDirectory(singleUser{}).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	access, refresh, err := engine.Login(t.Context(), "alice", "correct-password-123")
	require.NoError(t, err)

	member := RequireRoles(engine, "member")(protected(t))
	admin := RequireRoles(engine, "admin")(protected(t))

	assert.Equal(t, http.StatusOK, serve(member, "Bearer "+access).Code)
	assert.Equal(t, http.StatusForbidden, serve(admin, "Bearer "+access).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(member, "Bearer "+refresh).Code)

	engine.Logout(t.Context(), access, refresh)
	assert.Equal(t, http.StatusUnauthorized, serve(member, "Bearer "+access).Code)
}

type singleUser struct{}

func (singleUser) Resolve(_ context.Context, id string) (goSession.Identity, error) {
	if id != "u1" {
		return goSession.Identity{}, goSession.ErrIdentityNotFound
	}
	return goSession.Identity{ID: "u1", Role: "member", Active: true}, nil
}

func (s singleUser) VerifyCredentials(ctx context.Context, identifier, secret string) (goSession.Identity, error) {
	if identifier != "alice" || secret != "correct-password-123" {
		return goSession.Identity{}, goSession.ErrInvalidCredentials
	}
	return s.Resolve(ctx, "u1")
}
