package goSession

import (
	"context"

	internalflows "github.com/MrEthical07/goSession/internal/flows"
)

// Login verifies credentials through the UserDirectory and returns a new
// access/refresh pair. Every rejection, including an inactive identity, is
// ErrInvalidCredentials. ErrSessionCreationFailed means the credentials were
// fine but the allow-lists could not record the pair.
func (e *Engine) Login(ctx context.Context, identifier, secret string) (string, string, error) {
	if !e.ready() {
		return "", "", ErrEngineNotReady
	}

	res := internalflows.RunLogin(ctx, identifier, secret, e.flows.Login)
	switch res.Failure {
	case internalflows.FailureNone:
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, res.Principal.ID, res.Pair.RefreshJTI, internalflows.FailureNone, nil)
		return res.Pair.AccessToken, res.Pair.RefreshToken, nil

	case internalflows.FailureStoreUnavailable, internalflows.FailureIssue:
		e.metricInc(MetricSessionCreationFailed)
		if res.Failure == internalflows.FailureStoreUnavailable {
			e.metricInc(MetricStoreUnavailable)
		}
		e.warn(ctx, "login", res.Failure, res.Err, "user_id", res.Principal.ID)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Principal.ID, "", res.Failure, nil)
		return "", "", ErrSessionCreationFailed

	default:
		e.metricInc(MetricLoginFailure)
		e.warn(ctx, "login", res.Failure, res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Principal.ID, "", res.Failure, nil)
		return "", "", ErrInvalidCredentials
	}
}

// Refresh rotates refreshToken into a new pair. The presented token is
// redeemed exactly once; replaying it, or losing a race against a concurrent
// refresh with the same token, yields ErrInvalidRefresh.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	if !e.ready() {
		return "", "", ErrEngineNotReady
	}

	res := internalflows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	if res.Failure == internalflows.FailureNone {
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.Pair.RefreshJTI, internalflows.FailureNone, func() map[string]string {
			return map[string]string{"rotated_from": res.OldJTI}
		})
		return res.Pair.AccessToken, res.Pair.RefreshToken, nil
	}

	e.metricInc(MetricRefreshFailure)
	event := auditEventRefreshInvalid
	switch res.Failure {
	case internalflows.FailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		event = auditEventRefreshReuseDetected
	case internalflows.FailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
	}
	e.warn(ctx, "refresh", res.Failure, res.Err, "user_id", res.UserID, "jti", res.OldJTI)
	e.emitAudit(ctx, event, false, res.UserID, res.OldJTI, res.Failure, nil)
	return "", "", ErrInvalidRefresh
}

// Logout revokes whatever it can extract from the two tokens. Either may be
// empty, malformed or already revoked; Logout never reports an error.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) {
	if !e.ready() {
		return
	}

	res := internalflows.RunLogout(ctx, accessToken, refreshToken, e.flows.Logout)
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, res.UserID, "", internalflows.FailureNone, func() map[string]string {
		return map[string]string{
			"access_revoked":  boolString(res.AccessRevoked),
			"refresh_revoked": boolString(res.RefreshRevoked),
		}
	})
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
