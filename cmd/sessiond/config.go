package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the daemon configuration, read from the environment.
type Config struct {
	HTTPAddr string `env:"SESSIOND_HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	SecretKey    string        `env:"SECRET_KEY"`
	JWTAlgorithm string        `env:"JWT_ALGORITHM" envDefault:"HS256"`
	AccessTTL    time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL   time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	Issuer       string        `env:"TOKEN_ISSUER" envDefault:"goSession"`
	Audience     string        `env:"TOKEN_AUDIENCE" envDefault:"goSession-clients"`
	TrustRole    bool          `env:"TRUST_TOKEN_ROLE"`

	RequireHTTPS   bool `env:"REQUIRE_HTTPS"`
	ProductionMode bool `env:"PRODUCTION_MODE"`

	// REDIS_URL wins; otherwise the parts are composed into a URL when any
	// of them is set. With neither, in-process stores are used.
	RedisURL            string `env:"REDIS_URL"`
	RedisHost           string `env:"REDIS_HOST"`
	RedisPort           int    `env:"REDIS_PORT"`
	RedisDB             string `env:"REDIS_DB"`
	RedisPassword       string `env:"REDIS_PASSWORD"`
	AllowMemoryFallback bool   `env:"ALLOW_MEMORY_FALLBACK"`

	PasswordResetEnabled bool          `env:"PASSWORD_RESET_ENABLED" envDefault:"true"`
	PasswordResetTTL     time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"30m"`
	// ExposeResetTokens returns reset tokens in the HTTP response instead of
	// only logging their issuance. For local demos only.
	ExposeResetTokens bool `env:"EXPOSE_RESET_TOKENS"`

	// Failed-login throttling needs Redis and is off with in-process stores.
	LoginMaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginWindow      time.Duration `env:"LOGIN_WINDOW" envDefault:"15m"`

	AuditEnabled   bool `env:"AUDIT_ENABLED" envDefault:"true"`
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	SeedAdminIdentifier string `env:"SEED_ADMIN_IDENTIFIER"`
	SeedAdminPassword   string `env:"SEED_ADMIN_PASSWORD"`
}

// loadDotEnv preloads .env and .env.local when present. Variables already in
// the process environment are not overridden.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// parseConfig reads environ, or the process environment when environ is nil.
func parseConfig(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return Config{}, errors.New("SECRET_KEY is required")
	}
	if cfg.ProductionMode && cfg.ExposeResetTokens {
		return Config{}, errors.New("EXPOSE_RESET_TOKENS cannot be combined with PRODUCTION_MODE")
	}
	return cfg, nil
}

// redisURL returns the effective Redis URL, or "" for in-process stores.
func (c Config) redisURL() (string, error) {
	if c.RedisURL != "" {
		return c.RedisURL, nil
	}
	if c.RedisHost == "" && c.RedisPort == 0 && c.RedisDB == "" && c.RedisPassword == "" {
		return "", nil
	}

	host := c.RedisHost
	if host == "" {
		host = "localhost"
	}
	port := c.RedisPort
	if port == 0 {
		port = 6379
	}
	db := 0
	if c.RedisDB != "" {
		n, err := strconv.Atoi(c.RedisDB)
		if err != nil || n < 0 {
			return "", fmt.Errorf("REDIS_DB must be a non-negative integer, got %q", c.RedisDB)
		}
		db = n
	}

	u := url.URL{
		Scheme: "redis",
		Host:   host + ":" + strconv.Itoa(port),
		Path:   "/" + strconv.Itoa(db),
	}
	if c.RedisPassword != "" {
		u.User = url.UserPassword("", c.RedisPassword)
	}
	return u.String(), nil
}

// engineConfig maps the daemon settings onto a goSession configuration.
func (c Config) engineConfig(useRedis bool) goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.JWT.SigningMethod = strings.ToLower(c.JWTAlgorithm)
	cfg.JWT.Secret = []byte(c.SecretKey)
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.JWT.Issuer = c.Issuer
	cfg.JWT.Audience = c.Audience
	cfg.Authorization.TrustTokenRole = c.TrustRole

	if useRedis {
		cfg.Store.Backend = goSession.BackendRedis
		cfg.Store.AllowMemoryFallback = c.AllowMemoryFallback
	}

	cfg.PasswordReset.Enabled = c.PasswordResetEnabled
	cfg.PasswordReset.ResetTTL = c.PasswordResetTTL
	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	cfg.Security.ProductionMode = c.ProductionMode
	return cfg
}

func (c Config) logLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
