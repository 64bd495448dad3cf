package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/reset"
)

// PasswordResetDeps captures password-reset flow dependencies.
type PasswordResetDeps struct {
	Store        reset.Store
	ResetTTL     time.Duration
	Lookup       func(ctx context.Context, identifier string) (Principal, error)
	UpdateSecret func(ctx context.Context, userID, newSecret string) error
	// NewDecoy returns a token indistinguishable from a real one. It is handed
	// out for unknown identifiers and never stored.
	NewDecoy func() (string, error)
	// SleepEnumerationDelay, when set, is called on the decoy path to blunt
	// timing differences against the store write on the real path.
	SleepEnumerationDelay func(context.Context) error
}

// PasswordResetRequestResult carries the issued token or failure metadata.
type PasswordResetRequestResult struct {
	Failure FailureKind
	Err     error
	Token   string
	UserID  string
	Decoy   bool
}

// PasswordResetConfirmResult carries the outcome of a confirmation.
type PasswordResetConfirmResult struct {
	Failure FailureKind
	Err     error
	UserID  string
}

// RunRequestPasswordReset issues a reset token for identifier. Unknown and
// inactive identities receive a decoy so callers cannot probe which accounts
// exist.
func RunRequestPasswordReset(ctx context.Context, identifier string, deps PasswordResetDeps) PasswordResetRequestResult {
	if identifier == "" {
		return PasswordResetRequestResult{Failure: FailureInvalidPayload, Err: errors.New("empty identifier")}
	}

	p, err := deps.Lookup(ctx, identifier)
	if err != nil || p.ID == "" || !p.Active {
		if deps.SleepEnumerationDelay != nil {
			if sleepErr := deps.SleepEnumerationDelay(ctx); sleepErr != nil {
				return PasswordResetRequestResult{Failure: FailureIssue, Err: sleepErr}
			}
		}
		decoy, decoyErr := deps.NewDecoy()
		if decoyErr != nil {
			return PasswordResetRequestResult{Failure: FailureIssue, Err: decoyErr}
		}
		return PasswordResetRequestResult{Token: decoy, Decoy: true, Err: err}
	}

	token, err := deps.Store.Issue(ctx, p.ID, deps.ResetTTL)
	if err != nil {
		return PasswordResetRequestResult{Failure: FailureStoreUnavailable, Err: err, UserID: p.ID}
	}
	return PasswordResetRequestResult{Token: token, UserID: p.ID}
}

// RunConfirmPasswordReset consumes token and hands the new secret to the
// directory. The token is spent even if the directory update fails; the user
// has to request a new one.
func RunConfirmPasswordReset(ctx context.Context, token, newSecret string, deps PasswordResetDeps) PasswordResetConfirmResult {
	if token == "" {
		return PasswordResetConfirmResult{Failure: FailureInvalidResetToken}
	}
	if newSecret == "" {
		return PasswordResetConfirmResult{Failure: FailureInvalidPayload, Err: errors.New("empty secret")}
	}

	userID, ok, err := deps.Store.Consume(ctx, token)
	if err != nil {
		return PasswordResetConfirmResult{Failure: FailureStoreUnavailable, Err: err}
	}
	if !ok {
		return PasswordResetConfirmResult{Failure: FailureInvalidResetToken}
	}

	if err := deps.UpdateSecret(ctx, userID, newSecret); err != nil {
		return PasswordResetConfirmResult{Failure: FailureUpdateSecret, Err: err, UserID: userID}
	}
	return PasswordResetConfirmResult{UserID: userID}
}

// RunPeekPasswordReset reports the user bound to token without consuming it.
func RunPeekPasswordReset(ctx context.Context, token string, deps PasswordResetDeps) (string, bool, error) {
	return deps.Store.Peek(ctx, token)
}
