package goSession

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/allowlist"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	internalflows "github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/reset"
)

// Engine issues, rotates, revokes and checks session tokens. Build one with
// New().…Build(); all methods are safe for concurrent use afterwards.
type Engine struct {
	config   Config
	codec    *jwt.Codec
	access   allowlist.Store
	refresh  allowlist.RotatingStore
	resets   reset.Store
	users    UserDirectory
	resetDir ResetDirectory
	logger   *slog.Logger
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	now      func() time.Time

	// backend is the store backend actually in use, which differs from
	// config.Store.Backend after a memory fallback.
	backend  StoreBackend
	fellBack bool

	flows internalflows.Deps
}

// Close stops the audit dispatcher after delivering buffered events. It does
// not close the Redis client passed to the Builder.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the buffer
// was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}
	return e.metrics.Snapshot()
}

// Backend reports the store backend in use.
func (e *Engine) Backend() StoreBackend {
	if e == nil {
		return ""
	}
	return e.backend
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) ready() bool {
	return e != nil && e.codec != nil && e.access != nil && e.refresh != nil && e.users != nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(ctx context.Context, op string, kind internalflows.FailureKind, err error, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	attrs := make([]any, 0, 6+len(args))
	attrs = append(attrs, "op", op, "reason", kind.String())
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	attrs = append(attrs, args...)
	e.logger.WarnContext(ctx, "goSession: request denied", attrs...)
}

// buildFlowDeps wires the engine collaborators into the flow dependency sets.
// It runs once from Build; the result is read-only afterwards.
func (e *Engine) buildFlowDeps() internalflows.Deps {
	resolve := func(ctx context.Context, subjectID string) (internalflows.Principal, error) {
		id, err := e.users.Resolve(ctx, subjectID)
		if err != nil {
			return internalflows.Principal{}, err
		}
		return principalFromIdentity(id), nil
	}

	issue := internalflows.IssueDeps{
		Codec:      e.codec,
		Access:     e.access,
		Refresh:    e.refresh,
		AccessTTL:  e.config.JWT.AccessTTL,
		RefreshTTL: e.config.JWT.RefreshTTL,
		Warn:       e.logger.Warn,
	}

	deps := internalflows.Deps{
		Login: internalflows.LoginDeps{
			IssueDeps: issue,
			VerifyCredentials: func(ctx context.Context, identifier, secret string) (internalflows.Principal, error) {
				id, err := e.users.VerifyCredentials(ctx, identifier, secret)
				if err != nil {
					return internalflows.Principal{}, err
				}
				return principalFromIdentity(id), nil
			},
		},
		Refresh: internalflows.RefreshDeps{
			IssueDeps: issue,
			Rotating:  e.refresh,
			Resolve:   resolve,
		},
		Logout: internalflows.LogoutDeps{
			Codec:   e.codec,
			Access:  e.access,
			Refresh: e.refresh,
			Warn:    e.logger.Warn,
		},
		Authorize: internalflows.AuthorizeDeps{
			Codec:          e.codec,
			Access:         e.access,
			Resolve:        resolve,
			TrustTokenRole: e.config.Authorization.TrustTokenRole,
		},
	}

	if e.resets != nil && e.resetDir != nil {
		deps.PasswordReset = e.passwordResetFlowDeps()
	}
	return deps
}

func principalFromIdentity(id Identity) internalflows.Principal {
	return internalflows.Principal{ID: id.ID, Role: id.Role, Active: id.Active}
}
