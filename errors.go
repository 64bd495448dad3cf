package goSession

import "errors"

// Public errors. Authorization and session failures are deliberately coarse:
// the precise reason is logged and audited, never returned.
var (
	// ErrUnauthorized means the request carries no usable access token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the token is valid but the role is not permitted.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned by Login for every rejection.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefresh is returned by Refresh for every rejection.
	ErrInvalidRefresh = errors.New("invalid refresh token")
	// ErrSessionCreationFailed means credentials were valid but tokens could not be recorded.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrPasswordResetDisabled is returned when the reset workflow is not enabled.
	ErrPasswordResetDisabled = errors.New("password reset disabled")
	// ErrPasswordResetInvalid covers unknown, expired and already used reset tokens.
	ErrPasswordResetInvalid = errors.New("password reset token invalid")
	// ErrPasswordResetUnavailable means the reset store or directory could not be reached.
	ErrPasswordResetUnavailable = errors.New("password reset backend unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrIdentityNotFound is the error UserDirectory implementations should
	// return for unknown subjects or identifiers.
	ErrIdentityNotFound = errors.New("identity not found")
)
