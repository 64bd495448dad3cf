package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/allowlist"
	"github.com/MrEthical07/goSession/jwt"
)

// RoleClaim is the custom claim carrying the subject's role.
const RoleClaim = "role"

// IssueDeps is shared by login and refresh.
type IssueDeps struct {
	Codec      TokenCodec
	Access     allowlist.Store
	Refresh    allowlist.Store
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Warn       WarnFunc
}

// Pair is a freshly minted and allow-listed token pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
	AccessJTI    string
	RefreshJTI   string
}

// issuePair mints both tokens and records their jtis. If the refresh entry
// cannot be written the access entry is removed again, so a half-issued pair
// never leaves a usable token behind.
func issuePair(ctx context.Context, p Principal, deps IssueDeps) (Pair, FailureKind, error) {
	var extra map[string]any
	if p.Role != "" {
		extra = map[string]any{RoleClaim: p.Role}
	}

	access, err := deps.Codec.Create(p.ID, jwt.TypeAccess, deps.AccessTTL, extra)
	if err != nil {
		return Pair{}, FailureIssue, err
	}
	refresh, err := deps.Codec.Create(p.ID, jwt.TypeRefresh, deps.RefreshTTL, extra)
	if err != nil {
		return Pair{}, FailureIssue, err
	}

	if err := deps.Access.Allow(ctx, access.JTI, p.ID, deps.AccessTTL); err != nil {
		return Pair{}, FailureStoreUnavailable, err
	}
	if err := deps.Refresh.Allow(ctx, refresh.JTI, p.ID, deps.RefreshTTL); err != nil {
		if revokeErr := deps.Access.Revoke(ctx, access.JTI); revokeErr != nil {
			warn(deps.Warn, "goSession: rollback of access entry failed", "jti", access.JTI, "error", revokeErr)
		}
		return Pair{}, FailureStoreUnavailable, err
	}

	return Pair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		AccessJTI:    access.JTI,
		RefreshJTI:   refresh.JTI,
	}, FailureNone, nil
}
