package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/allowlist"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/reset"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder is single-use: the second call to
// Build fails.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserDirectory
	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	access  allowlist.Store
	refresh allowlist.RotatingStore
	resets  reset.Store

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used when Store.Backend is redis. Single-node,
// cluster and sentinel clients all satisfy redis.UniversalClient.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserDirectory sets the required user collaborator. When password reset
// is enabled it must also implement ResetDirectory.
func (b *Builder) WithUserDirectory(users UserDirectory) *Builder {
	b.users = users
	return b
}

// WithAuditSink sets the audit destination. Without one, enabled auditing
// writes through the engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger used for denials and degraded paths. The default
// is slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source of the codec and the in-process stores.
// It exists for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithAllowLists injects both allow-lists, bypassing Store.Backend. They must
// be distinct instances or at least distinct namespaces.
func (b *Builder) WithAllowLists(access allowlist.Store, refresh allowlist.RotatingStore) *Builder {
	b.access = access
	b.refresh = refresh
	return b
}

// WithResetStore injects the password reset store, bypassing Store.Backend.
func (b *Builder) WithResetStore(store reset.Store) *Builder {
	b.resets = store
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the authorize latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, selects the store backend and returns a
// ready Engine.
//
// With the redis backend the client is pinged within Store.StartupTimeout. An
// unreachable server fails Build unless Store.AllowMemoryFallback is set, in
// which case the engine runs on in-process stores and says so in its log and
// SecurityReport.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user directory required")
	}
	var resetDir ResetDirectory
	if cfg.PasswordReset.Enabled {
		rd, ok := b.users.(ResetDirectory)
		if !ok {
			return nil, errors.New("PasswordReset requires a user directory implementing ResetDirectory")
		}
		resetDir = rd
	}
	if (b.access == nil) != (b.refresh == nil) {
		return nil, errors.New("WithAllowLists requires both access and refresh stores")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- TOKEN CODEC --------
	codec, err := jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Secret:        cloneBytes(cfg.JWT.Secret),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:  cfg,
		codec:   codec,
		users:   b.users,
		logger:  logger,
		now:     now,
		backend: cfg.Store.Backend,
	}

	// -------- STORES --------
	if err := b.selectStores(engine); err != nil {
		return nil, err
	}
	if cfg.PasswordReset.Enabled {
		engine.resetDir = resetDir
	}

	// -------- AUDIT / METRICS --------
	sink := b.auditSink
	if sink == nil {
		sink = NewSlogSink(logger)
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)
	engine.metrics = NewMetrics(cfg.Metrics)

	engine.flows = engine.buildFlowDeps()

	for _, w := range cfg.Lint().AtLeast(LintHigh) {
		logger.Warn("goSession: risky configuration", "code", w.Code, "message", w.Message)
	}

	b.built = true

	return engine, nil
}

func (b *Builder) selectStores(engine *Engine) error {
	cfg := engine.config

	injected := b.access != nil
	if injected {
		engine.access, engine.refresh = b.access, b.refresh
		engine.backend = injectedBackend(b.access, b.refresh)
	}
	if b.resets != nil {
		engine.resets = b.resets
	}
	needReset := cfg.PasswordReset.Enabled && engine.resets == nil
	if engine.access != nil && !needReset {
		return nil
	}

	useRedis := cfg.Store.Backend == BackendRedis
	if useRedis {
		if b.redis == nil {
			return errors.New("redis backend requires a redis client")
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.StartupTimeout)
		err := b.redis.Ping(ctx).Err()
		cancel()
		if err != nil {
			if !cfg.Store.AllowMemoryFallback {
				return fmt.Errorf("redis unreachable at startup: %w", err)
			}
			engine.logger.Warn("goSession: redis unreachable, falling back to in-process stores",
				"error", err.Error())
			if !injected {
				engine.backend = BackendMemory
			}
			engine.fellBack = true
			useRedis = false
		}
	}

	if useRedis {
		if engine.access == nil {
			engine.access = allowlist.NewRedisStore(b.redis, cfg.Store.AccessNamespace)
			engine.refresh = allowlist.NewRedisStore(b.redis, cfg.Store.RefreshNamespace)
		}
		if needReset {
			engine.resets = reset.NewRedisStore(b.redis, cfg.Store.ResetNamespace)
		}
		return nil
	}

	if engine.access == nil {
		engine.access = allowlist.NewMemoryStore(
			allowlist.WithClock(engine.now),
			allowlist.WithSweepInterval(cfg.Store.SweepInterval),
		)
		engine.refresh = allowlist.NewMemoryStore(
			allowlist.WithClock(engine.now),
			allowlist.WithSweepInterval(cfg.Store.SweepInterval),
		)
	}
	if needReset {
		engine.resets = reset.NewMemoryStore(engine.now)
	}
	return nil
}

// injectedBackend names the backend of caller supplied allow-lists so that
// Backend and SecurityReport describe the stores actually in use.
func injectedBackend(access allowlist.Store, refresh allowlist.RotatingStore) StoreBackend {
	switch access.(type) {
	case *allowlist.MemoryStore:
		if _, ok := refresh.(*allowlist.MemoryStore); ok {
			return BackendMemory
		}
	case *allowlist.RedisStore:
		if _, ok := refresh.(*allowlist.RedisStore); ok {
			return BackendRedis
		}
	}
	return BackendInjected
}
