package flows

import (
	"context"
	"errors"
)

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	IssueDeps
	VerifyCredentials func(ctx context.Context, identifier, secret string) (Principal, error)
}

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure   FailureKind
	Err       error
	Principal Principal
	Pair      Pair
}

// RunLogin verifies credentials and issues a new allow-listed token pair.
func RunLogin(ctx context.Context, identifier, secret string, deps LoginDeps) LoginResult {
	if identifier == "" || secret == "" {
		return LoginResult{Failure: FailureInvalidCredentials, Err: errors.New("empty identifier or secret")}
	}

	p, err := deps.VerifyCredentials(ctx, identifier, secret)
	if err != nil {
		return LoginResult{Failure: FailureInvalidCredentials, Err: err}
	}
	if p.ID == "" {
		return LoginResult{Failure: FailureInvalidPayload, Err: errors.New("directory returned empty subject id")}
	}
	if !p.Active {
		return LoginResult{Failure: FailureInactiveIdentity, Principal: p}
	}

	pair, kind, err := issuePair(ctx, p, deps.IssueDeps)
	if kind != FailureNone {
		return LoginResult{Failure: kind, Err: err, Principal: p}
	}
	return LoginResult{Principal: p, Pair: pair}
}
