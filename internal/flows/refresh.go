package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/allowlist"
	"github.com/MrEthical07/goSession/jwt"
)

// RefreshDeps captures refresh flow dependencies. Refresh must be the same list
// IssueDeps.Refresh writes to; it is typed separately because rotation needs
// atomic redemption.
type RefreshDeps struct {
	IssueDeps
	Rotating allowlist.RotatingStore
	Resolve  ResolveFunc
}

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure   FailureKind
	Err       error
	UserID    string
	OldJTI    string
	Principal Principal
	Pair      Pair
}

// RunRefresh rotates a refresh token. Every check that can fail runs before the
// old jti is redeemed, so a rejected request never consumes a valid token. The
// redemption itself is atomic: of two concurrent refreshes with the same token,
// exactly one proceeds.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.Codec.Decode(refreshToken)
	if err != nil {
		return RefreshResult{Failure: FailureInvalidToken, Err: err}
	}
	if err := jwt.VerifyType(claims, jwt.TypeRefresh); err != nil {
		return RefreshResult{Failure: FailureWrongTokenType, Err: err, UserID: claims.Subject}
	}
	if claims.ID == "" || claims.Subject == "" {
		return RefreshResult{Failure: FailureInvalidPayload, Err: errors.New("missing jti or subject"), UserID: claims.Subject}
	}

	res := RefreshResult{UserID: claims.Subject, OldJTI: claims.ID}

	allowed, err := deps.Rotating.IsAllowed(ctx, claims.ID)
	if err != nil {
		res.Failure, res.Err = FailureStoreUnavailable, err
		return res
	}
	if !allowed {
		res.Failure = FailureRevoked
		return res
	}

	p, err := deps.Resolve(ctx, claims.Subject)
	if err != nil {
		res.Failure, res.Err = FailureIdentityNotFound, err
		return res
	}
	if !p.Active {
		res.Failure, res.Principal = FailureInactiveIdentity, p
		return res
	}
	res.Principal = p

	won, err := deps.Rotating.Redeem(ctx, claims.ID)
	if err != nil {
		res.Failure, res.Err = FailureStoreUnavailable, err
		return res
	}
	if !won {
		res.Failure = FailureReuse
		return res
	}

	pair, kind, err := issuePair(ctx, p, deps.IssueDeps)
	if kind != FailureNone {
		res.Failure, res.Err = kind, err
		return res
	}
	res.Pair = pair
	return res
}
