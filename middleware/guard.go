package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// Authorizer is the part of *goSession.Engine the guards need.
type Authorizer interface {
	Authorize(ctx context.Context, token string, roles ...string) (*goSession.AuthResult, error)
}

type authResultContextKey struct{}

// AuthResultFromContext returns the result stored by a guard.
func AuthResultFromContext(ctx context.Context) (*goSession.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goSession.AuthResult)
	return res, ok
}

// Guard admits requests whose bearer token is authorized for one of roles, or
// for any role when roles is empty. Denials get a bare 401 or 403.
func Guard(engine Authorizer, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := goSession.WithClientIP(r.Context(), ClientIP(r))
			res, err := engine.Authorize(ctx, token, roles...)
			if err != nil {
				if errors.Is(err, goSession.ErrForbidden) {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthenticated admits any identity with a live access token.
func RequireAuthenticated(engine Authorizer) func(http.Handler) http.Handler {
	return Guard(engine)
}

// RequireRoles admits identities whose effective role is one of roles.
func RequireRoles(engine Authorizer, roles ...string) func(http.Handler) http.Handler {
	return Guard(engine, roles...)
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are not
// trusted; put a proxy-aware handler in front if needed.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
