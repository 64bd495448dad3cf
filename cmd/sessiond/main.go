// Command sessiond is a small HTTP daemon exposing a goSession engine: login,
// refresh, logout, a guarded profile endpoint, password reset and Prometheus
// metrics. It keeps users in memory and is meant for demos and integration
// testing.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/userdir"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := loadDotEnv(".env", ".env.local"); err != nil {
		slog.Error("sessiond: dotenv", "error", err.Error())
		os.Exit(1)
	}
	cfg, err := parseConfig(nil)
	if err != nil {
		slog.Error("sessiond: config", "error", err.Error())
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("sessiond: exit", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.server.routes(cfg.RequireHTTPS),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sessiond: listening", "addr", cfg.HTTPAddr, "backend", string(app.server.engine.Backend()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type app struct {
	server *server
	redis  *redis.Client
}

func (a *app) close() {
	a.server.engine.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// newApp builds the user directory, the Redis client when configured, and the
// engine.
func newApp(ctx context.Context, cfg Config, logger *slog.Logger) (*app, error) {
	users, err := userdir.New(userdir.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("user directory: %w", err)
	}
	if cfg.SeedAdminIdentifier != "" {
		if _, err := users.Create(ctx, cfg.SeedAdminIdentifier, cfg.SeedAdminPassword, "admin"); err != nil {
			return nil, fmt.Errorf("seed admin: %w", err)
		}
	}

	rawURL, err := cfg.redisURL()
	if err != nil {
		return nil, err
	}

	a := &app{}
	builder := goSession.New().
		WithConfig(cfg.engineConfig(rawURL != "")).
		WithUserDirectory(users).
		WithLogger(logger)

	if rawURL != "" {
		opts, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		builder = builder.WithRedis(a.redis)
	}

	engine, err := builder.Build()
	if err != nil {
		if a.redis != nil {
			_ = a.redis.Close()
		}
		return nil, fmt.Errorf("build engine: %w", err)
	}

	report := engine.SecurityReport()
	logger.Info("sessiond: engine ready",
		"backend", string(report.StoreBackend),
		"memory_fallback", report.MemoryFallbackUsed,
		"algorithm", report.SigningAlgorithm,
		"password_reset", report.PasswordResetActive,
	)

	a.server = &server{
		engine:       engine,
		users:        users,
		logger:       logger,
		exposeResets: cfg.ExposeResetTokens,
	}
	if engine.Backend() == goSession.BackendRedis && cfg.LoginMaxAttempts > 0 {
		a.server.limiter = rate.New(a.redis, rate.Config{
			MaxAttempts: cfg.LoginMaxAttempts,
			Window:      cfg.LoginWindow,
			PerIP:       true,
			Prefix:      "sessiond:login",
		})
	}
	return a, nil
}
