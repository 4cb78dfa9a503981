package license

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"licensebridge/internal/infrastructure"
)

const (
	TracerName = "license-module"
	component  = "license_module"
)

// Metrics holds the module's OpenTelemetry instruments
type Metrics struct {
	ActionsTotal    metric.Int64Counter
	ActionDuration  metric.Float64Histogram
	ActionsInFlight metric.Int64UpDownCounter
}

// NewMetrics creates the module instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error
	m.ActionsTotal, err = meter.Int64Counter(
		"license_module_actions_total",
		metric.WithDescription("Total number of license module actions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create actions counter: %w", err)
	}

	m.ActionDuration, err = meter.Float64Histogram(
		"license_module_action_duration_seconds",
		metric.WithDescription("License module action duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create action duration histogram: %w", err)
	}

	m.ActionsInFlight, err = meter.Int64UpDownCounter(
		"license_module_actions_in_flight",
		metric.WithDescription("Number of license module actions currently running"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-flight counter: %w", err)
	}

	return m, nil
}

// traceAction runs fn inside a span named license_module.<action> and records metrics
func (m *Module) traceAction(ctx context.Context, action string, fn func(ctx context.Context) error) error {
	ctx, span := otel.Tracer(TracerName).Start(ctx, component+"."+action,
		trace.WithAttributes(
			attribute.String("license.action", action),
			attribute.String("component", component),
		),
	)
	defer span.End()

	labels := metric.WithAttributes(attribute.String("action", action))
	if m.metrics != nil {
		m.metrics.ActionsInFlight.Add(ctx, 1, labels)
		defer m.metrics.ActionsInFlight.Add(ctx, -1, labels)
	}

	start := m.clock.Now()
	m.logDebug(ctx, action, "started")

	err := fn(ctx)
	duration := m.clock.Since(start)

	span.SetAttributes(
		attribute.Float64("license.duration_ms", float64(duration.Milliseconds())),
		attribute.Bool("license.success", err == nil),
	)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logError(ctx, action, "failed", slog.String("error", err.Error()), slog.Duration("duration", duration))
	} else {
		span.SetStatus(codes.Ok, "")
		m.logInfo(ctx, action, "completed", slog.Duration("duration", duration))
	}

	if m.metrics != nil {
		outcomeLabels := metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("outcome", outcome),
		)
		m.metrics.ActionsTotal.Add(ctx, 1, outcomeLabels)
		m.metrics.ActionDuration.Record(ctx, duration.Seconds(), labels)
	}

	return err
}

// logAction logs an action with the standard component/action/result attributes
func (m *Module) logAction(ctx context.Context, level slog.Level, action, result string, attrs ...slog.Attr) {
	allAttrs := []slog.Attr{
		slog.String("component", component),
		slog.String("action", action),
		slog.String("result", result),
	}
	// The trace handler adds the logging trace id itself; only span ids need adding
	if infrastructure.GetTraceID(ctx) == "" {
		if traceID := infrastructure.TraceIDFromContext(ctx); traceID != "" {
			allAttrs = append(allAttrs, slog.String("trace_id", traceID))
		}
	}
	allAttrs = append(allAttrs, attrs...)

	m.logger.LogAttrs(ctx, level, result, allAttrs...)
}

func (m *Module) logDebug(ctx context.Context, action, result string, attrs ...slog.Attr) {
	m.logAction(ctx, slog.LevelDebug, action, result, attrs...)
}

func (m *Module) logInfo(ctx context.Context, action, result string, attrs ...slog.Attr) {
	m.logAction(ctx, slog.LevelInfo, action, result, attrs...)
}

func (m *Module) logWarn(ctx context.Context, action, result string, attrs ...slog.Attr) {
	m.logAction(ctx, slog.LevelWarn, action, result, attrs...)
}

func (m *Module) logError(ctx context.Context, action, result string, attrs ...slog.Attr) {
	m.logAction(ctx, slog.LevelError, action, result, attrs...)
}

// licenseAttrs describes a key without exposing it
func licenseAttrs(l LicenseKey) []slog.Attr {
	return []slog.Attr{
		slog.String("license_key_masked", MaskLicenseKey(l.Key)),
		slog.String("license_key_hash", HashLicenseKey(l.Key)),
		slog.String("license_type", l.LicenseType),
	}
}

// MaskLicenseKey keeps the first and last four characters of a key
func MaskLicenseKey(key string) string {
	return infrastructure.MaskSecret(key)
}

// HashLicenseKey returns a short sha256 prefix usable for log correlation
func HashLicenseKey(key string) string {
	if key == "" {
		return ""
	}
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", h)[:16]
}
