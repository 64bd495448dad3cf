package goSession

import "time"

// LintSeverity ranks lint findings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

// LintWarning is a configuration that is valid but risky.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings returned by Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// AtLeast returns the findings at or above sev.
func (r LintResult) AtLeast(sev LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= sev {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports risky but valid settings. It never fails; callers decide what
// to do with the findings (the demo daemon logs them at startup).
func (c *Config) Lint() LintResult {
	var r LintResult
	add := func(code string, sev LintSeverity, msg string) {
		r = append(r, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Authorization.TrustTokenRole {
		add("trust_token_role_enabled", LintWarn,
			"role claims in access tokens override the directory; demotions apply only after the token expires")
	}
	if c.Store.Backend == BackendMemory {
		sev := LintInfo
		if c.Security.ProductionMode {
			sev = LintHigh
		}
		add("memory_backend", sev, "in-process stores are not shared between processes and are lost on restart")
	}
	if c.Store.Backend == BackendRedis && c.Store.AllowMemoryFallback {
		add("memory_fallback_enabled", LintWarn,
			"an unreachable Redis at startup silently degrades to per-process stores")
	}
	if c.JWT.Issuer == "" {
		add("issuer_unset", LintWarn, "tokens carry no issuer and the issuer is not checked on decode")
	}
	if c.JWT.Audience == "" {
		add("audience_unset", LintWarn, "tokens carry no audience and the audience is not checked on decode")
	}
	if c.JWT.AccessTTL > 30*time.Minute {
		add("access_ttl_long", LintWarn, "access tokens live longer than 30 minutes")
	}
	if c.JWT.RefreshTTL > 30*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "refresh tokens live longer than 30 days")
	}
	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintWarn, "clock leeway above one minute extends every token's life")
	}
	if c.PasswordReset.Enabled && c.PasswordReset.ResetTTL > time.Hour {
		add("reset_ttl_long", LintWarn, "reset tokens live longer than one hour")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		add("audit_blocking", LintInfo, "a slow audit sink will block request paths")
	}
	if !c.Metrics.Enabled {
		add("metrics_disabled", LintInfo, "outcome counters are not collected")
	}

	return r
}
