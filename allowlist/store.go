package allowlist

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable wraps backend faults. Callers on a check path must treat
	// it as "not allowed".
	ErrStoreUnavailable = errors.New("allow-list store unavailable")
	// ErrInvalidEntry is returned by Allow for an empty jti or a non-positive ttl.
	ErrInvalidEntry = errors.New("invalid allow-list entry")
)

// Default key namespaces for the two lists a deployment runs.
const (
	AccessNamespace  = "auth:access"
	RefreshNamespace = "auth:refresh"
)

// Store is a TTL-bound registry of valid token ids.
type Store interface {
	// Allow records jti as valid for ttl, replacing any previous entry.
	Allow(ctx context.Context, jti, userID string, ttl time.Duration) error
	// IsAllowed reports whether an unexpired entry exists. A missing or expired
	// entry is (false, nil); only backend faults return an error.
	IsAllowed(ctx context.Context, jti string) (bool, error)
	// Revoke removes jti. Removing an absent id is not an error.
	Revoke(ctx context.Context, jti string) error
}

// RotatingStore can atomically consume an entry. Redeem returns true for exactly
// one caller per live entry and removes it in the same step.
type RotatingStore interface {
	Store
	Redeem(ctx context.Context, jti string) (bool, error)
}

func validateEntry(jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return ErrInvalidEntry
	}
	return nil
}
