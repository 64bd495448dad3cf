package goSession

import "time"

type SecurityReport struct {
	ProductionMode      bool
	SigningAlgorithm    string
	KeyRotation         bool
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	Leeway              time.Duration
	IssuerChecked       bool
	AudienceChecked     bool
	TrustTokenRole      bool
	StoreBackend        StoreBackend
	MemoryFallbackUsed  bool
	PasswordResetActive bool
	AuditActive         bool
	MetricsActive       bool
	LintWarnings        []string
}

// SecurityReport summarizes the posture the engine is actually running with,
// including a memory fallback taken at startup.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	return SecurityReport{
		ProductionMode:      cfg.Security.ProductionMode,
		SigningAlgorithm:    cfg.JWT.SigningMethod,
		KeyRotation:         len(cfg.JWT.VerifyKeys) > 0,
		AccessTTL:           cfg.JWT.AccessTTL,
		RefreshTTL:          cfg.JWT.RefreshTTL,
		Leeway:              cfg.JWT.Leeway,
		IssuerChecked:       cfg.JWT.Issuer != "",
		AudienceChecked:     cfg.JWT.Audience != "",
		TrustTokenRole:      cfg.Authorization.TrustTokenRole,
		StoreBackend:        e.backend,
		MemoryFallbackUsed:  e.fellBack,
		PasswordResetActive: cfg.PasswordReset.Enabled && e.resets != nil && e.resetDir != nil,
		AuditActive:         e.audit != nil,
		MetricsActive:       e.metrics.Enabled(),
		LintWarnings:        cfg.Lint().Codes(),
	}
}
