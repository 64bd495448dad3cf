package goSession

import (
	"context"

	internalflows "github.com/MrEthical07/goSession/internal/flows"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventLogout               = "logout"
	auditEventAuthorizeDenied      = "authorize_denied"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
)

// emitAudit hands one event to the dispatcher. metadataBuilder runs only when
// auditing is enabled.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	tokenID string,
	kind internalflows.FailureKind,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Reason:    kind.String(),
		Metadata:  metadata,
	})
}
