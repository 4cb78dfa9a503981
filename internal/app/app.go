package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"licensebridge/internal/appdb"
	"licensebridge/internal/bridge"
	"licensebridge/internal/config"
	apperrors "licensebridge/internal/errors"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/middleware"
	"licensebridge/internal/notify"
	"licensebridge/internal/services"
	transport "licensebridge/internal/transport/http"
	ws "licensebridge/internal/websocket"
)

// Application is the backend daemon: storage, license service, bridge, event hub
// and the HTTP server in front of them
type Application struct {
	Config   *config.Config
	Logger   *slog.Logger
	OTel     *infrastructure.OTelProviders
	DB       *appdb.DB
	Hub      *ws.Hub
	Licenses *services.LicenseService
	Health   *services.HealthService
	Bridge   *bridge.Server
	Router   chi.Router
	Server   *http.Server

	clock quartz.Clock
}

// Option customizes New
type Option func(*Application)

// WithClock replaces the real clock, mostly for tests
func WithClock(clock quartz.Clock) Option {
	return func(a *Application) { a.clock = clock }
}

// WithDatabase uses db instead of opening cfg.Storage.DatabasePath. The
// application takes ownership and closes it on shutdown.
func WithDatabase(db *appdb.DB) Option {
	return func(a *Application) { a.DB = db }
}

// New wires every component from cfg. Nothing listens until Run or Serve.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	a := &Application{
		Config: cfg,
		Logger: logger.With(slog.String("component", "app")),
		clock:  quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.initialize(logger); err != nil {
		a.closeStorage()
		return nil, err
	}
	return a, nil
}

func (a *Application) initialize(logger *slog.Logger) error {
	cfg := a.Config

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, cfg.App.Version, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTel = providers

	if a.DB == nil {
		paths := cfg.GetPaths()
		if err := paths.EnsureDirectories(); err != nil {
			return fmt.Errorf("failed to ensure directories: %w", err)
		}
		paths.LogPathResolution(logger)

		db, err := appdb.Open(cfg.Storage.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		a.DB = db
	}

	hubMetrics, err := ws.NewMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("failed to create hub metrics: %w", err)
	}
	a.Hub = ws.NewHub(logger, ws.WithClock(a.clock), ws.WithMetrics(hubMetrics))

	licenses, err := services.NewLicenseService(a.DB.LicenseKeys(), a.DB.Settings(), cfg.App.Version, logger,
		services.WithServiceClock(a.clock),
		services.WithPublisher(a.Hub),
		services.WithNotifier(notify.NewHubNotifier(a.Hub)),
		services.WithTrialDays(cfg.App.TrialDays),
	)
	if err != nil {
		return fmt.Errorf("failed to create license service: %w", err)
	}
	a.Licenses = licenses

	bridgeMetrics, err := bridge.NewMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("failed to create bridge metrics: %w", err)
	}
	bridgeRouter := bridge.NewRouter(logger, bridgeMetrics)
	licenses.Register(bridgeRouter)
	a.Bridge = bridge.NewServer(bridgeRouter, cfg.Bridge, logger, bridgeMetrics)

	a.Health = services.NewHealthService(cfg.App.Version, services.HealthDeps{
		DB:       a.DB,
		Hub:      a.Hub,
		Bridge:   a.Bridge,
		Licenses: licenses,
		Clock:    a.clock,
	}, logger)

	telemetry, err := middleware.NewTelemetry(providers.Tracer, providers.Meter)
	if err != nil {
		return fmt.Errorf("failed to create HTTP telemetry: %w", err)
	}
	errHandler := apperrors.NewErrorHandler(logger, cfg.Telemetry.Environment == "development")

	deps := transport.RouterDeps{
		Licenses:   licenses,
		Health:     a.Health,
		Bridge:     a.Bridge,
		Events:     a.Hub,
		Metrics:    providers.PrometheusHTTP,
		Telemetry:  telemetry,
		Errors:     errHandler,
		Clock:      a.clock,
		Logger:     logger,
		BridgePath: cfg.Bridge.Path,
		EventsPath: cfg.Bridge.EventsPath,
	}
	if rl := cfg.Bridge.RateLimit; rl.Enabled {
		deps.RateLimiter = middleware.NewRateLimiter(rl.RPS, rl.Burst, errHandler, logger)
	}
	a.Router = transport.NewRouter(deps)

	a.Server = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      a.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return nil
}

// Run listens on the configured address and serves until ctx is done
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		a.closeStorage()
		return fmt.Errorf("listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done or the server fails, then shuts every
// component down within Server.ShutdownTimeout
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	a.Hub.Start()

	a.Logger.InfoContext(ctx, "license daemon started",
		slog.String("address", ln.Addr().String()),
		slog.String("version", a.Config.App.Version),
		slog.String("bridge_path", a.Config.Bridge.Path),
		slog.String("database", a.Config.Storage.DatabasePath))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

// shutdown closes hijacked websocket connections first since Server.Shutdown
// does not track them
func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	a.Logger.InfoContext(ctx, "shutting down")
	start := time.Now()

	var errs []error
	if err := a.Bridge.Close(); err != nil {
		errs = append(errs, fmt.Errorf("bridge close: %w", err))
	}
	a.Hub.Stop()
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.OTel.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		a.Logger.ErrorContext(ctx, "shutdown finished with errors", slog.String("error", err.Error()))
		return err
	}
	a.Logger.InfoContext(ctx, "shutdown complete", slog.Duration("took", time.Since(start)))
	return nil
}

func (a *Application) closeStorage() {
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
