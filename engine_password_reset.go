package goSession

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/MrEthical07/goSession/internal"
	internalflows "github.com/MrEthical07/goSession/internal/flows"
)

// RequestPasswordReset returns a single-use reset token for identifier. The
// caller is expected to deliver it out of band. Unknown and inactive
// identifiers get a token of the same shape that is never stored, so the
// response does not reveal whether an account exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, identifier string) (string, error) {
	if err := e.passwordResetReady(); err != nil {
		return "", err
	}

	e.metricInc(MetricPasswordResetRequest)
	res := internalflows.RunRequestPasswordReset(ctx, identifier, e.flows.PasswordReset)
	switch {
	case res.Failure == internalflows.FailureInvalidPayload:
		e.warn(ctx, "password_reset_request", res.Failure, res.Err)
		return "", ErrPasswordResetInvalid
	case res.Failure != internalflows.FailureNone:
		if res.Failure == internalflows.FailureStoreUnavailable {
			e.metricInc(MetricStoreUnavailable)
		}
		e.warn(ctx, "password_reset_request", res.Failure, res.Err, "user_id", res.UserID)
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, res.UserID, "", res.Failure, nil)
		return "", ErrPasswordResetUnavailable
	}

	if res.Decoy {
		e.metricInc(MetricPasswordResetDecoy)
	}
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, res.UserID, "", internalflows.FailureNone, func() map[string]string {
		return map[string]string{"decoy": boolString(res.Decoy)}
	})
	return res.Token, nil
}

// ConfirmPasswordReset consumes token and sets newSecret for its owner through
// the ResetDirectory. Existing sessions are left alone; they end on logout or
// expiry.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newSecret string) error {
	if err := e.passwordResetReady(); err != nil {
		return err
	}

	res := internalflows.RunConfirmPasswordReset(ctx, token, newSecret, e.flows.PasswordReset)
	if res.Failure == internalflows.FailureNone {
		e.metricInc(MetricPasswordResetConfirmSuccess)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, true, res.UserID, "", internalflows.FailureNone, nil)
		return nil
	}

	e.metricInc(MetricPasswordResetConfirmFailure)
	e.warn(ctx, "password_reset_confirm", res.Failure, res.Err, "user_id", res.UserID)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, false, res.UserID, "", res.Failure, nil)

	switch res.Failure {
	case internalflows.FailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		return ErrPasswordResetUnavailable
	case internalflows.FailureUpdateSecret:
		return ErrPasswordResetUnavailable
	default:
		return ErrPasswordResetInvalid
	}
}

// PeekPasswordReset reports the owner of token without consuming it or
// extending its life. It is meant for diagnostics.
func (e *Engine) PeekPasswordReset(ctx context.Context, token string) (string, bool, error) {
	if err := e.passwordResetReady(); err != nil {
		return "", false, err
	}
	userID, ok, err := internalflows.RunPeekPasswordReset(ctx, token, e.flows.PasswordReset)
	if err != nil {
		return "", false, ErrPasswordResetUnavailable
	}
	return userID, ok, nil
}

func (e *Engine) passwordResetReady() error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled || e.resets == nil || e.resetDir == nil {
		return ErrPasswordResetDisabled
	}
	return nil
}

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	deps := internalflows.PasswordResetDeps{
		Store:    e.resets,
		ResetTTL: e.config.PasswordReset.ResetTTL,
		Lookup: func(ctx context.Context, identifier string) (internalflows.Principal, error) {
			id, err := e.resetDir.LookupIdentifier(ctx, identifier)
			if err != nil {
				return internalflows.Principal{}, err
			}
			return principalFromIdentity(id), nil
		},
		UpdateSecret: e.resetDir.UpdateSecret,
		NewDecoy: func() (string, error) {
			return internal.NewOpaqueToken(internal.OpaqueTokenSize)
		},
	}
	if d := e.config.PasswordReset.EnumerationDelay; d > 0 {
		deps.SleepEnumerationDelay = func(ctx context.Context) error {
			return sleepEnumerationDelay(ctx, d)
		}
	}
	return deps
}

// sleepEnumerationDelay waits base plus up to 50% jitter.
func sleepEnumerationDelay(ctx context.Context, base time.Duration) error {
	delay := base
	if span := int64(base / 2); span > 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(span))
		if err != nil {
			return err
		}
		delay += time.Duration(n.Int64())
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
