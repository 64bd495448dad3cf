package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/allowlist"
	"github.com/MrEthical07/goSession/jwt"
)

// AuthorizeDeps captures authorization flow dependencies.
type AuthorizeDeps struct {
	Codec   TokenCodec
	Access  allowlist.Store
	Resolve ResolveFunc
	// TrustTokenRole lets a non-empty role claim override the directory role.
	TrustTokenRole bool
}

// AuthorizeResult carries the authorization decision. A zero Failure means the
// request is allowed.
type AuthorizeResult struct {
	Failure   FailureKind
	Err       error
	Claims    *jwt.Claims
	Principal Principal
	Role      string
}

// RunAuthorize evaluates an access token against an allowed role set. Checks
// run in order and stop at the first failure. An empty role set admits any
// authenticated identity.
func RunAuthorize(ctx context.Context, token string, allowedRoles []string, deps AuthorizeDeps) AuthorizeResult {
	claims, err := deps.Codec.Decode(token)
	if err != nil {
		return AuthorizeResult{Failure: FailureInvalidToken, Err: err}
	}
	if err := jwt.VerifyType(claims, jwt.TypeAccess); err != nil {
		return AuthorizeResult{Failure: FailureWrongTokenType, Err: err, Claims: claims}
	}

	if claims.ID == "" {
		return AuthorizeResult{Failure: FailureRevoked, Err: errors.New("missing jti"), Claims: claims}
	}
	allowed, err := deps.Access.IsAllowed(ctx, claims.ID)
	if err != nil {
		return AuthorizeResult{Failure: FailureStoreUnavailable, Err: err, Claims: claims}
	}
	if !allowed {
		return AuthorizeResult{Failure: FailureRevoked, Claims: claims}
	}

	if claims.Subject == "" {
		return AuthorizeResult{Failure: FailureInvalidPayload, Err: errors.New("missing subject"), Claims: claims}
	}
	p, err := deps.Resolve(ctx, claims.Subject)
	if err != nil {
		return AuthorizeResult{Failure: FailureIdentityNotFound, Err: err, Claims: claims}
	}
	if !p.Active {
		return AuthorizeResult{Failure: FailureInactiveIdentity, Claims: claims, Principal: p}
	}

	role := EffectiveRole(p.Role, claims.Role, deps.TrustTokenRole)
	res := AuthorizeResult{Claims: claims, Principal: p, Role: role}
	if !RoleAllowed(role, allowedRoles) {
		res.Failure = FailureForbidden
	}
	return res
}

// EffectiveRole picks the role used for the decision.
func EffectiveRole(directoryRole, tokenRole string, trustToken bool) string {
	if trustToken && tokenRole != "" {
		return tokenRole
	}
	return directoryRole
}

// RoleAllowed reports whether role is a member of allowed. An empty set allows
// every role, including the empty one.
func RoleAllowed(role string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
