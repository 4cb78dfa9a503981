package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/coder/quartz"

	"licensebridge/internal/infrastructure"
	"licensebridge/internal/websocket"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HubStatsProvider exposes event hub counters
type HubStatsProvider interface {
	Stats() websocket.HubStats
}

// ConnectionCounter exposes the number of open bridge connections
type ConnectionCounter interface {
	ConnectionCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	db        Pinger
	hub       HubStatsProvider
	bridge    ConnectionCounter
	licenses  *LicenseService
	clock     quartz.Clock
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// HealthDeps are the components a HealthService reports on; nil entries are skipped
type HealthDeps struct {
	DB       Pinger
	Hub      HubStatsProvider
	Bridge   ConnectionCounter
	Licenses *LicenseService
	Clock    quartz.Clock
}

// NewHealthService creates a new health service with injected dependencies
func NewHealthService(version string, deps HealthDeps, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	clock := deps.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &HealthService{
		version:   version,
		db:        deps.DB,
		hub:       deps.Hub,
		bridge:    deps.Bridge,
		licenses:  deps.Licenses,
		clock:     clock,
		startTime: clock.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: hs.clock.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime_seconds": hs.clock.Since(hs.startTime).Seconds(),
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
		},
	}
}

// ReadinessCheck checks every dependency; the overall status is "ready" only when
// all of them are
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: hs.clock.Now(),
		Version:   hs.version,
		Services:  make(map[string]ServiceHealth),
	}

	if hs.db != nil {
		status.Services["database"] = hs.checkDatabase(ctx)
	}
	if hs.licenses != nil {
		status.Services["license"] = hs.checkLicense(ctx)
	}
	if hs.hub != nil {
		stats := hs.hub.Stats()
		status.Services["events"] = ServiceHealth{Status: "ready", Details: stats}
	}
	if hs.bridge != nil {
		status.Services["bridge"] = ServiceHealth{
			Status:  "ready",
			Details: map[string]int{"connections": hs.bridge.ConnectionCount()},
		}
	}

	for name, service := range status.Services {
		if service.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "dependency not ready",
				slog.String("dependency", name),
				slog.String("message", service.Message))
		}
	}
	return status
}

func (hs *HealthService) checkDatabase(ctx context.Context) ServiceHealth {
	if err := hs.db.Ping(ctx); err != nil {
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkLicense(ctx context.Context) ServiceHealth {
	st, err := hs.licenses.Status(ctx)
	if err != nil {
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}
	return ServiceHealth{
		Status: "ready",
		Details: map[string]interface{}{
			"edition":   st.Edition,
			"condition": st.Condition,
		},
	}
}
