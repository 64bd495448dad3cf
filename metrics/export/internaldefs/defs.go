package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Rejected logins."},
	{ID: goSession.MetricSessionCreationFailed, Name: "gosession_session_creation_failed_total", Help: "Logins with valid credentials whose tokens could not be recorded."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: goSession.MetricRefreshReuseDetected, Name: "gosession_refresh_reuse_detected_total", Help: "Refresh tokens presented after they were already redeemed."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logout calls."},
	{ID: goSession.MetricAuthorizeSuccess, Name: "gosession_authorize_success_total", Help: "Authorized requests."},
	{ID: goSession.MetricAuthorizeUnauthorized, Name: "gosession_authorize_unauthorized_total", Help: "Requests denied for a missing or invalid access token."},
	{ID: goSession.MetricAuthorizeForbidden, Name: "gosession_authorize_forbidden_total", Help: "Requests denied for role."},
	{ID: goSession.MetricStoreUnavailable, Name: "gosession_store_unavailable_total", Help: "Operations that failed closed on a store error."},
	{ID: goSession.MetricPasswordResetRequest, Name: "gosession_password_reset_request_total", Help: "Password reset requests."},
	{ID: goSession.MetricPasswordResetDecoy, Name: "gosession_password_reset_decoy_total", Help: "Reset requests answered with an unstored token."},
	{ID: goSession.MetricPasswordResetConfirmSuccess, Name: "gosession_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: goSession.MetricPasswordResetConfirmFailure, Name: "gosession_password_reset_confirm_failure_total", Help: "Rejected password reset confirmations."},
}

// HistogramDefs lists every histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricAuthorizeLatency, Name: "gosession_authorize_latency_seconds", Help: "Authorize latency."},
}

// HistogramUpperBounds are the bucket bounds in seconds, excluding +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed eight-slot array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
