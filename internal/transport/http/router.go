package http

import (
	"log/slog"
	"net/http"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apperrors "licensebridge/internal/errors"
	"licensebridge/internal/middleware"
	"licensebridge/pkg/contracts"
)

// RouterDeps are the handlers and middleware the router mounts. Nil optional
// entries (Events, Metrics, Telemetry, RateLimiter) are skipped.
type RouterDeps struct {
	Licenses    LicenseService
	Health      HealthChecker
	Bridge      http.Handler
	Events      http.Handler
	Metrics     http.Handler
	Telemetry   *middleware.Telemetry
	RateLimiter *middleware.RateLimiter
	Errors      *apperrors.ErrorHandler
	Clock       quartz.Clock
	Logger      *slog.Logger

	BridgePath string
	EventsPath string
}

// NewRouter builds the daemon's route tree
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	if deps.Errors == nil {
		deps.Errors = apperrors.NewErrorHandler(logger, false)
	}
	if deps.BridgePath == "" {
		deps.BridgePath = "/bridge"
	}
	if deps.EventsPath == "" {
		deps.EventsPath = "/events"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(deps.Errors))
	r.Use(middleware.SecurityHeaders)

	r.NotFound(deps.Errors.NotFound)
	r.MethodNotAllowed(deps.Errors.MethodNotAllowed)

	// Long-lived websocket routes stay outside the rate limiter and request spans
	r.Handle(deps.BridgePath, deps.Bridge)
	if deps.Events != nil {
		r.Handle(deps.EventsPath, deps.Events)
	}

	health := NewHealthHandler(deps.Health, logger)
	r.Get("/healthz", health.ReadinessCheck)
	r.Get("/healthz/live", health.LivenessCheck)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if deps.Telemetry != nil {
			r.Use(deps.Telemetry.Handler)
		}
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Handler)
		}
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, contracts.GetVersionInfo())
		})

		licenses := NewLicenseHandler(deps.Licenses, deps.Errors, deps.Clock, logger)
		r.Mount("/license", licenses.Routes())
	})

	return r
}
