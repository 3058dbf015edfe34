package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/api"
	"github.com/foxzi/hyperdrive/internal/config"
	"github.com/foxzi/hyperdrive/internal/expiry"
	"github.com/foxzi/hyperdrive/internal/lifecycle"
	"github.com/foxzi/hyperdrive/internal/metrics"
	"github.com/foxzi/hyperdrive/internal/ratelimit"
	"github.com/foxzi/hyperdrive/internal/storage"
	hdtls "github.com/foxzi/hyperdrive/internal/tls"
)

// App is the main application
type App struct {
	config        *config.Config
	store         *storage.Store
	service       *lifecycle.Service
	apiServer     *api.Server
	metrics       *metrics.Metrics
	metricsServer *metrics.Server
	collector     *metrics.Collector
	rateLimiter   *ratelimit.Limiter
	sweeper       *expiry.Sweeper
	acmeManager   *hdtls.ACMEManager
	acmeServer    *http.Server
	logger        *slog.Logger
	logCloser     io.Closer
}

// New creates a new application
func New(cfg *config.Config, version string) (*App, error) {
	logger, logCloser := SetupLogger(cfg.Logging)
	if cfg.Server.Name != "" {
		logger = logger.With("instance", cfg.Server.Name)
	}

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	a := &App{
		config:    cfg,
		store:     store,
		logger:    logger,
		logCloser: logCloser,
	}

	var recorder lifecycle.Recorder
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
		recorder = a.metrics
	}

	svc, err := NewService(cfg, store, logger, lifecycle.WithRecorder(recorder))
	if err != nil {
		store.Close()
		return nil, err
	}
	a.service = svc

	apiOpts := []api.Option{api.WithVersion(version)}

	if a.metrics != nil {
		apiOpts = append(apiOpts, api.WithMetrics(a.metrics))
		a.metricsServer = metrics.NewServer(
			a.metrics,
			cfg.Metrics.ListenAddr,
			cfg.Metrics.Path,
			cfg.Metrics.AllowedIPs,
			logger.With("component", "metrics"),
		)
		a.collector = metrics.NewCollector(
			a.metrics,
			svc,
			cfg.Storage.Path,
			cfg.Metrics.FlushInterval,
			logger.With("component", "metrics_collector"),
		)
		logger.Info("metrics enabled", "addr", cfg.Metrics.ListenAddr, "path", cfg.Metrics.Path)
	}

	if cfg.API.RateLimit.Enabled {
		a.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.API.RateLimit.RequestsPerSecond,
			Burst:             cfg.API.RateLimit.Burst,
		})
		apiOpts = append(apiOpts, api.WithRateLimiter(a.rateLimiter))
		logger.Info("rate limiting enabled",
			"requests_per_second", cfg.API.RateLimit.RequestsPerSecond,
			"burst", cfg.API.RateLimit.Burst,
		)
	}

	if cfg.HasJWT() {
		verifier, err := access.NewTokenVerifier(cfg.API.Auth.JWTSecret, cfg.API.Auth.Issuer, cfg.API.Auth.Leeway)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create token verifier: %w", err)
		}
		apiOpts = append(apiOpts, api.WithTokenVerifier(verifier))
		logger.Info("bearer token authentication enabled")
	}

	tlsConfig, acmeManager, err := hdtls.Setup(cfg.API.TLS)
	if err != nil {
		store.Close()
		return nil, err
	}
	if tlsConfig != nil {
		apiOpts = append(apiOpts, api.WithTLS(tlsConfig))
		a.acmeManager = acmeManager
		if acmeManager != nil {
			logger.Info("ACME (Let's Encrypt) enabled", "domains", acmeManager.Domains())
		} else {
			logger.Info("TLS enabled with manual certificates")
		}
	}

	if cfg.Expiry.Enabled {
		a.sweeper = expiry.NewSweeper(svc, expiry.Config{
			Interval:      cfg.Expiry.Interval,
			CheckInterval: cfg.Expiry.CheckInterval,
		}, logger)
	}

	a.apiServer = api.NewServer(svc, &cfg.API, logger, apiOpts...)
	return a, nil
}

// NewService builds the lifecycle service from configuration. The CLI uses
// it directly for offline commands.
func NewService(cfg *config.Config, store *storage.Store, logger *slog.Logger, opts ...lifecycle.Option) (*lifecycle.Service, error) {
	creditLimit, err := cfg.CreditLimit()
	if err != nil {
		return nil, err
	}
	return lifecycle.New(store, lifecycle.Config{
		SubmissionWindow:   cfg.Defaults.SubmissionWindow,
		DefaultCreditLimit: creditLimit,
		EndingSoonDays:     cfg.Stats.EndingSoonDays,
		SpendWindowDays:    cfg.Stats.SpendWindowDays,
		DefaultPageSize:    cfg.API.DefaultPageSize,
		MaxPageSize:        cfg.API.MaxPageSize,
	}, logger, opts...), nil
}

// Run starts all components and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting hyperdrive",
		"api_addr", a.config.API.ListenAddr,
		"storage", a.config.Storage.Path,
		"expiry", a.sweeper != nil,
	)

	// Create context that listens for signals
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.sweeper != nil {
		a.sweeper.Start(ctx)
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Start(ctx)
	}
	if a.collector != nil {
		a.collector.Start(ctx)
	}

	// Channel to collect errors
	errCh := make(chan error, 2)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	// ACME HTTP-01 challenges, everything else is redirected to HTTPS
	if a.acmeManager != nil {
		addr := a.config.API.TLS.ACME.ChallengeAddr
		a.acmeServer = &http.Server{
			Addr:              addr,
			Handler:           a.acmeManager.HTTPHandler(hdtls.RedirectHandler()),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			a.logger.Info("starting ACME HTTP challenge server", "addr", addr)
			if err := a.acmeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Warn("ACME HTTP server error", "error", err)
			}
		}()
	}

	// Wait for shutdown signal or error
	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("server error", "error", runErr)
		cancel()
	}

	a.Shutdown(context.Background())
	return runErr
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) {
	a.logger.Info("shutting down")

	timeout := a.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Stop accepting requests first
	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	if a.acmeServer != nil {
		if err := a.acmeServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("acme server shutdown error", "error", err)
		}
	}

	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
	if a.collector != nil {
		a.collector.Stop()
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if err := a.store.Close(); err != nil {
		a.logger.Error("storage close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}

// SetupLogger creates a logger based on configuration. When a log file is
// configured the returned closer flushes the rotating writer.
func SetupLogger(cfg config.LoggingConfig) (*slog.Logger, io.Closer) {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var out io.Writer = os.Stdout
	var closer io.Closer
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out, closer = lj, lj
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler), closer
}
