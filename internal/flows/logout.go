package flows

import (
	"context"

	"github.com/MrEthical07/goSession/allowlist"
	"github.com/MrEthical07/goSession/jwt"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Codec   TokenCodec
	Access  allowlist.Store
	Refresh allowlist.Store
	Warn    WarnFunc
}

// LogoutResult reports what was revoked. It never carries an error: logout is
// best effort and succeeds from the caller's point of view.
type LogoutResult struct {
	UserID         string
	AccessRevoked  bool
	RefreshRevoked bool
}

// RunLogout revokes the jti of each token that decodes and matches its slot.
func RunLogout(ctx context.Context, accessToken, refreshToken string, deps LogoutDeps) LogoutResult {
	var res LogoutResult

	if sub, ok := revokeToken(ctx, accessToken, jwt.TypeAccess, deps.Access, deps); ok {
		res.AccessRevoked = true
		res.UserID = sub
	}
	if sub, ok := revokeToken(ctx, refreshToken, jwt.TypeRefresh, deps.Refresh, deps); ok {
		res.RefreshRevoked = true
		if res.UserID == "" {
			res.UserID = sub
		}
	}
	return res
}

func revokeToken(ctx context.Context, token string, typ jwt.TokenType, store allowlist.Store, deps LogoutDeps) (string, bool) {
	if token == "" {
		return "", false
	}
	claims, err := deps.Codec.Decode(token)
	if err != nil || jwt.VerifyType(claims, typ) != nil || claims.ID == "" {
		return "", false
	}
	if err := store.Revoke(ctx, claims.ID); err != nil {
		warn(deps.Warn, "goSession: logout revoke failed", "type", string(typ), "error", err)
		return claims.Subject, false
	}
	return claims.Subject, true
}
