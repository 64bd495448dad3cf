package reset

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal"
)

var (
	// ErrStoreUnavailable wraps backend faults.
	ErrStoreUnavailable = errors.New("reset store unavailable")
	// ErrInvalidRequest is returned by Issue for an empty user id or non-positive ttl.
	ErrInvalidRequest = errors.New("invalid reset request")
)

// Namespace is the default Redis key prefix for reset tokens.
const Namespace = "auth:reset"

// Store issues and redeems reset tokens.
type Store interface {
	// Issue creates a fresh token bound to userID for ttl.
	Issue(ctx context.Context, userID string, ttl time.Duration) (string, error)
	// Consume returns the bound user id and removes the token in one step.
	// Unknown, expired and already consumed tokens all report ok == false.
	Consume(ctx context.Context, token string) (userID string, ok bool, err error)
	// Peek returns the bound user id without consuming the token or extending
	// its lifetime.
	Peek(ctx context.Context, token string) (userID string, ok bool, err error)
}

func newToken() (string, error) {
	return internal.NewOpaqueToken(internal.OpaqueTokenSize)
}

func validateIssue(userID string, ttl time.Duration) error {
	if userID == "" || ttl <= 0 {
		return ErrInvalidRequest
	}
	return nil
}
