package app

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

	"github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/authsvc/internal/auth/http"
	"github.com/aussiebroadwan/authsvc/internal/auth/metrics"
	"github.com/aussiebroadwan/authsvc/internal/auth/security"
	"github.com/aussiebroadwan/authsvc/internal/auth/service"
	"github.com/aussiebroadwan/authsvc/internal/auth/store"
	"github.com/aussiebroadwan/authsvc/pkg/cryptox"
	"github.com/aussiebroadwan/authsvc/pkg/httpx"
	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
	"github.com/aussiebroadwan/authsvc/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application wires the auth service together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	keys    *jwtx.KeyProvider
	redis   *redis.Client
	reuse   security.ReuseTracker
	metrics *metrics.Metrics

	issuance     *service.AccessIssuance
	validator    *service.BearerValidator
	housekeeping *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New validates cfg and initialises every dependency. Configuration and key
// errors (*ConfigError, *jwtx.ConfigurationError, *jwtx.KeyLoadError) are
// returned wrapped and must stop the process.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authsvc",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	keys, err := InitSigningKey(cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.keys = keys

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the HTTP handler, mainly for in-process tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeeping.Stop()
			if cerr := app.Close(); cerr != nil {
				app.logger.Warn("close after server failure", "error", cerr)
			}
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests, stops housekeeping and closes the
// store and Redis client.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	return app.Close()
}

// Close releases the store and Redis client without touching the server.
func (app *Application) Close() error {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	db, err := OpenStore(app.cfg)
	if err != nil {
		return err
	}
	app.db = db

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

func (app *Application) initReuseTracker() {
	if app.cfg.RedisAddr == "" {
		app.reuse = security.Noop{}
		app.logger.Info("reuse tracking is local only (REDIS_ADDR not set)")
		return
	}

	app.redis = redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
	app.reuse = security.NewRedisTracker(app.redis, security.RedisTrackerConfig{
		Window:    app.cfg.ReuseWindow,
		Threshold: app.cfg.ReuseThreshold,
	})
	app.logger.Info("reuse tracking enabled", "redis_addr", app.cfg.RedisAddr, "window", app.cfg.ReuseWindow)
}

func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	hasher := cryptox.NewPasswordHasher(pepper)

	app.initReuseTracker()

	ledger := service.NewRefreshLedger(app.db, app.cfg.RefreshTokenTTL)
	ledger.Reuse = app.reuse
	ledger.Metrics = app.metrics

	app.issuance = &service.AccessIssuance{
		Keys:      app.keys,
		Ledger:    ledger,
		Store:     app.db,
		Hasher:    hasher,
		Issuer:    app.cfg.Issuer,
		Audience:  app.cfg.Audience,
		AccessTTL: app.cfg.AccessTokenTTL,
		Metrics:   app.metrics,
	}

	app.validator = service.NewBearerValidator(app.keys, jwtx.VerifyOptions{
		Issuer:   app.cfg.Issuer,
		Audience: app.cfg.Audience,
		Leeway:   app.cfg.ClockLeeway,
	}, app.metrics)

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.RefreshRetention,
	)
	app.housekeeping.Metrics = app.metrics

	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.keys, BuildVersion, app.db, app.logger)
	router.Issuance = app.issuance
	router.Validator = app.validator
	router.Metrics = app.metrics
	router.RateLimits = app.cfg.RateLimits
	// Already checked by Validate.
	router.TrustedProxies, _ = httpx.ParseTrustedProxies(app.cfg.TrustedProxies)
	router.RefreshCookieTTL = app.cfg.RefreshTokenTTL
	if tracker, ok := app.reuse.(*security.RedisTracker); ok {
		router.Cache = tracker
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
