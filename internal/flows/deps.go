package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login         LoginDeps
	Refresh       RefreshDeps
	Logout        LogoutDeps
	Authorize     AuthorizeDeps
	PasswordReset PasswordResetDeps
}

// TokenCodec is the subset of *jwt.Codec the flows use.
type TokenCodec interface {
	Create(subject string, typ jwt.TokenType, ttl time.Duration, extra map[string]any) (jwt.Issued, error)
	Decode(token string) (*jwt.Claims, error)
}

// Principal is the directory's view of a subject as seen by the flows.
type Principal struct {
	ID     string
	Role   string
	Active bool
}

// ResolveFunc looks a subject up by id.
type ResolveFunc func(ctx context.Context, subjectID string) (Principal, error)

// WarnFunc matches (*slog.Logger).Warn.
type WarnFunc func(msg string, args ...any)

func warn(fn WarnFunc, msg string, args ...any) {
	if fn != nil {
		fn(msg, args...)
	}
}
