package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "licensebridge/internal/errors"
	"licensebridge/internal/exporter"
	"licensebridge/internal/license"
	"licensebridge/internal/middleware"
	api "licensebridge/pkg/contracts/api/v1"
	"licensebridge/pkg/contracts/domain"
)

// LicenseService is the part of the backend service the REST surface needs
type LicenseService interface {
	Licenses(ctx context.Context) ([]domain.LicenseKey, error)
	Status(ctx context.Context) (*domain.LicenseStatus, error)
	InstallationID(ctx context.Context) (string, error)
	Save(ctx context.Context, key domain.LicenseKey) (domain.LicenseKey, error)
	Remove(ctx context.Context, id int64) error
	CreateTrial(ctx context.Context) (domain.LicenseKey, error)
}

// LicenseHandler handles license-related HTTP requests
type LicenseHandler struct {
	service LicenseService
	errors  *apperrors.ErrorHandler
	clock   quartz.Clock
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(service LicenseService, errHandler *apperrors.ErrorHandler, clock quartz.Clock, logger *slog.Logger) *LicenseHandler {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &LicenseHandler{
		service: service,
		errors:  errHandler,
		clock:   clock,
		tracer:  otel.Tracer("license-handler"),
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// Routes returns a chi router for license endpoints
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/status", h.GetStatus)
	r.Get("/licenses", h.ListLicenses)
	r.Post("/licenses", h.SaveLicense)
	r.Delete("/licenses/{id}", h.RemoveLicense)
	r.Post("/trial", h.CreateTrial)
	r.Get("/installation-id", h.GetInstallationID)
	r.Get("/export", h.Export)

	return r
}

// GetStatus handles GET /api/license/status
func (h *LicenseHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "get_status")
	defer span.End()

	status, err := h.service.Status(ctx)
	if err != nil {
		h.fail(w, r, span, "get_status", err)
		return
	}

	span.SetAttributes(attribute.String("license.edition", status.Edition))
	render.JSON(w, r, api.StatusResponse{
		Status:             status,
		IsUltimate:         status.IsUltimate(),
		IsTrial:            status.IsTrial(),
		IsValidDateExpired: status.IsValidDateExpired(),
		TraceID:            middleware.GetRequestID(r.Context()),
	})
}

// ListLicenses handles GET /api/license/licenses
func (h *LicenseHandler) ListLicenses(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "list_licenses")
	defer span.End()

	licenses, err := h.service.Licenses(ctx)
	if err != nil {
		h.fail(w, r, span, "list_licenses", err)
		return
	}

	span.SetAttributes(attribute.Int("license.count", len(licenses)))
	render.JSON(w, r, api.LicensesResponse{Licenses: licenses, Count: len(licenses)})
}

// SaveLicense handles POST /api/license/licenses. A body without id inserts a new
// key and answers 201; a body with an id updates that key.
func (h *LicenseHandler) SaveLicense(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "save_license")
	defer span.End()

	var key domain.LicenseKey
	if err := render.DecodeJSON(r.Body, &key); err != nil {
		span.SetStatus(codes.Error, "decode failed")
		h.errors.HandleError(w, r, apperrors.InvalidBody(err))
		return
	}

	saved, err := h.service.Save(ctx, key)
	if err != nil {
		h.fail(w, r, span, "save_license", err)
		return
	}

	h.logger.InfoContext(ctx, "license saved over REST",
		slog.Int64("license_id", saved.ID),
		slog.String("license_key", license.MaskLicenseKey(saved.Key)))

	if key.ID == 0 {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, saved)
}

// RemoveLicense handles DELETE /api/license/licenses/{id}
func (h *LicenseHandler) RemoveLicense(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "remove_license")
	defer span.End()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.errors.HandleError(w, r, apperrors.InvalidParameter("id", chi.URLParam(r, "id"),
			"License id must be a positive integer"))
		return
	}
	span.SetAttributes(attribute.Int64("license.id", id))

	if err := h.service.Remove(ctx, id); err != nil {
		h.fail(w, r, span, "remove_license", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateTrial handles POST /api/license/trial
func (h *LicenseHandler) CreateTrial(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "create_trial")
	defer span.End()

	trial, err := h.service.CreateTrial(ctx)
	if err != nil {
		h.fail(w, r, span, "create_trial", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, trial)
}

// GetInstallationID handles GET /api/license/installation-id
func (h *LicenseHandler) GetInstallationID(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "get_installation_id")
	defer span.End()

	id, err := h.service.InstallationID(ctx)
	if err != nil {
		h.fail(w, r, span, "get_installation_id", err)
		return
	}

	render.JSON(w, r, api.InstallationIDResponse{InstallationID: id})
}

// Export handles GET /api/license/export and streams an xlsx workbook
func (h *LicenseHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "export")
	defer span.End()

	licenses, err := h.service.Licenses(ctx)
	if err != nil {
		h.fail(w, r, span, "export", err)
		return
	}
	status, err := h.service.Status(ctx)
	if err != nil {
		h.fail(w, r, span, "export", err)
		return
	}

	now := h.clock.Now()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="licenses-%s.xlsx"`, now.UTC().Format("20060102")))
	if err := exporter.WriteLicensesXLSX(w, licenses, status, now); err != nil {
		// Headers are already out; all that is left is to log
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "export failed", slog.String("error", err.Error()))
	}
}

func (h *LicenseHandler) startSpan(r *http.Request, operation string) (context.Context, trace.Span) {
	return h.tracer.Start(r.Context(), "license_handler."+operation,
		trace.WithAttributes(
			attribute.String("request_id", middleware.GetRequestID(r.Context())),
			attribute.String("operation", operation),
		))
}

// fail renders err as problem details and logs it at a level matching its status
func (h *LicenseHandler) fail(w http.ResponseWriter, r *http.Request, span trace.Span, operation string, err error) {
	ctx := r.Context()
	traceID := middleware.GetRequestID(ctx)
	problem := apperrors.MapLicenseError(err, traceID)

	span.RecordError(err)
	span.SetAttributes(attribute.String("error_code", apperrors.Code(err)))

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
		span.SetStatus(codes.Error, err.Error())
	}
	if errors.Is(err, context.Canceled) {
		level = slog.LevelDebug
	}
	h.logger.Log(ctx, level, "license request failed",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status))

	_ = render.Render(w, r, problem)
}
