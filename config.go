package goSession

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/allowlist"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/reset"
)

// Config is the full engine configuration. Start from DefaultConfig and
// override what you need; Builder.Build validates the result.
type Config struct {
	JWT           JWTConfig
	Store         StoreConfig
	Authorization AuthorizationConfig
	PasswordReset PasswordResetConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Security      SecurityConfig
}

// JWTConfig configures token signing and lifetimes.
type JWTConfig struct {
	// SigningMethod is one of hs256, hs384, hs512 or ed25519.
	SigningMethod string
	// Secret is the shared HMAC key for the hs* methods.
	Secret []byte
	// PrivateKey and PublicKey are the ed25519 key pair, raw or PEM.
	PrivateKey []byte
	PublicKey  []byte
	// KeyID is stamped into the "kid" header; VerifyKeys maps kids to the keys
	// accepted on decode and enables rotation. With VerifyKeys set, KeyID is
	// required and its entry must be the current signing key (Secret for hs*,
	// the public half of PrivateKey for ed25519).
	KeyID      string
	VerifyKeys map[string][]byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

// StoreBackend selects where allow-lists and reset tokens live.
type StoreBackend string

const (
	BackendMemory StoreBackend = "memory"
	BackendRedis  StoreBackend = "redis"
	// BackendInjected is reported, never configured, when the allow-lists
	// passed to Builder.WithAllowLists are not both memory or both redis stores.
	BackendInjected StoreBackend = "injected"
)

// StoreConfig configures the allow-list and reset stores.
type StoreConfig struct {
	Backend          StoreBackend
	AccessNamespace  string
	RefreshNamespace string
	ResetNamespace   string
	// AllowMemoryFallback lets Build continue with in-process stores when the
	// Redis backend is unreachable at startup. Tokens then stop being shared
	// across processes, so this is off by default.
	AllowMemoryFallback bool
	StartupTimeout      time.Duration
	// SweepInterval throttles the full expiry sweep of in-process stores.
	SweepInterval time.Duration
}

// AuthorizationConfig configures the authorization gate.
type AuthorizationConfig struct {
	// TrustTokenRole makes the role claim of an access token authoritative
	// over the directory role. Role changes then take effect only when the
	// token is reissued.
	TrustTokenRole bool
}

// PasswordResetConfig configures the reset workflow.
type PasswordResetConfig struct {
	Enabled  bool
	ResetTTL time.Duration
	// EnumerationDelay is slept on the decoy path for unknown identifiers.
	EnumerationDelay time.Duration
}

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SecurityConfig holds deployment posture switches.
type SecurityConfig struct {
	// ProductionMode tightens validation: shared secrets must be at least
	// 256 bits and the memory fallback is refused.
	ProductionMode bool
}

const (
	defaultIssuer   = "goSession"
	defaultAudience = "goSession-clients"
)

// DefaultConfig returns the baseline configuration. It has no signing key; set
// JWT.Secret (or an ed25519 key pair) before building.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: string(jwt.MethodHS256),
			Issuer:        defaultIssuer,
			Audience:      defaultAudience,
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Backend:          BackendMemory,
			AccessNamespace:  allowlist.AccessNamespace,
			RefreshNamespace: allowlist.RefreshNamespace,
			ResetNamespace:   reset.Namespace,
			StartupTimeout:   3 * time.Second,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:  false,
			ResetTTL: 30 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

// HighSecurityConfig returns a preset for production deployments: Redis-backed
// stores without fallback, short lifetimes, and metrics and audit switched on.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = 7 * 24 * time.Hour
	cfg.Store.Backend = BackendRedis
	cfg.Store.AllowMemoryFallback = false
	cfg.PasswordReset.ResetTTL = 15 * time.Minute
	cfg.PasswordReset.EnumerationDelay = 50 * time.Millisecond
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Security.ProductionMode = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error. It checks internal
// consistency only; key material is parsed again when the codec is built.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL < time.Second {
		return errors.New("JWT AccessTTL must be >= 1s")
	}
	if c.JWT.RefreshTTL < time.Second {
		return errors.New("JWT RefreshTTL must be >= 1s")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodHS256, jwt.MethodHS384, jwt.MethodHS512:
		if len(c.JWT.Secret) == 0 {
			return fmt.Errorf("%s requires Secret", c.JWT.SigningMethod)
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("%s Secret must be at least 256 bits", c.JWT.SigningMethod)
		}
		for kid, key := range c.JWT.VerifyKeys {
			if len(key) < 32 {
				return fmt.Errorf("JWT VerifyKeys[%q] must be at least 256 bits", kid)
			}
		}
		if key, ok := c.JWT.VerifyKeys[c.JWT.KeyID]; ok && !hmac.Equal(key, c.JWT.Secret) {
			return errors.New("JWT VerifyKeys[KeyID] must equal Secret")
		}
	case jwt.MethodEd25519:
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey or VerifyKeys")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.VerifyKeys) > 0 {
		if c.JWT.KeyID == "" {
			return errors.New("JWT VerifyKeys requires KeyID")
		}
		if _, ok := c.JWT.VerifyKeys[c.JWT.KeyID]; !ok {
			return errors.New("JWT KeyID must be present in VerifyKeys")
		}
		for kid := range c.JWT.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return errors.New("JWT VerifyKeys contains an empty kid")
			}
		}
	}

	// Store
	switch c.Store.Backend {
	case BackendMemory, BackendRedis:
	default:
		return errors.New("Store Backend must be memory or redis")
	}
	if c.Store.AccessNamespace == "" || c.Store.RefreshNamespace == "" || c.Store.ResetNamespace == "" {
		return errors.New("Store namespaces must be non-empty")
	}
	if c.Store.AccessNamespace == c.Store.RefreshNamespace {
		return errors.New("Store AccessNamespace and RefreshNamespace must differ")
	}
	if c.Store.StartupTimeout <= 0 {
		return errors.New("Store StartupTimeout must be > 0")
	}
	if c.Store.SweepInterval < 0 {
		return errors.New("Store SweepInterval must be >= 0")
	}
	if c.Security.ProductionMode && c.Store.Backend == BackendRedis && c.Store.AllowMemoryFallback {
		return errors.New("ProductionMode forbids Store AllowMemoryFallback")
	}

	// Password reset
	if c.PasswordReset.Enabled && c.PasswordReset.ResetTTL < time.Second {
		return errors.New("PasswordReset ResetTTL must be >= 1s")
	}
	if c.PasswordReset.EnumerationDelay < 0 || c.PasswordReset.EnumerationDelay > 5*time.Second {
		return errors.New("PasswordReset EnumerationDelay must be within [0, 5s]")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
