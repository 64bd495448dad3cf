package goSession

import (
	"context"

	internalflows "github.com/MrEthical07/goSession/internal/flows"
)

// Authorize checks an access token and, when roles is non-empty, that the
// effective role is one of them. It returns ErrUnauthorized for every token or
// identity problem and ErrForbidden for a role mismatch; the precise reason is
// only logged and audited.
func (e *Engine) Authorize(ctx context.Context, token string, roles ...string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := e.now()
	if e.metrics.LatencyEnabled() {
		defer func() {
			e.metrics.Observe(MetricAuthorizeLatency, e.now().Sub(start))
		}()
	}

	res := internalflows.RunAuthorize(ctx, token, roles, e.flows.Authorize)

	var userID, tokenID string
	if res.Claims != nil {
		userID, tokenID = res.Claims.Subject, res.Claims.ID
	}

	switch res.Failure {
	case internalflows.FailureNone:
		e.metricInc(MetricAuthorizeSuccess)
		return &AuthResult{
			UserID:  res.Principal.ID,
			Role:    res.Role,
			TokenID: tokenID,
			Claims:  res.Claims,
		}, nil

	case internalflows.FailureForbidden:
		e.metricInc(MetricAuthorizeForbidden)
		e.warn(ctx, "authorize", res.Failure, nil, "user_id", userID, "role", res.Role)
		e.emitAudit(ctx, auditEventAuthorizeDenied, false, userID, tokenID, res.Failure, func() map[string]string {
			return map[string]string{"role": res.Role}
		})
		return nil, ErrForbidden

	default:
		e.metricInc(MetricAuthorizeUnauthorized)
		if res.Failure == internalflows.FailureStoreUnavailable {
			e.metricInc(MetricStoreUnavailable)
		}
		e.warn(ctx, "authorize", res.Failure, res.Err, "user_id", userID)
		e.emitAudit(ctx, auditEventAuthorizeDenied, false, userID, tokenID, res.Failure, nil)
		return nil, ErrUnauthorized
	}
}
