package bridge

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the bridge instruments
type Metrics struct {
	Requests        metric.Int64Counter
	RequestDuration metric.Float64Histogram
	Connections     metric.Int64UpDownCounter
}

// NewMetrics creates the bridge instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error
	m.Requests, err = meter.Int64Counter(
		"bridge_requests_total",
		metric.WithDescription("Total number of bridge requests by channel and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create requests counter: %w", err)
	}

	m.RequestDuration, err = meter.Float64Histogram(
		"bridge_request_duration_seconds",
		metric.WithDescription("Bridge request handling duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	m.Connections, err = meter.Int64UpDownCounter(
		"bridge_connections_active",
		metric.WithDescription("Number of open bridge websocket connections"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connections gauge: %w", err)
	}

	return m, nil
}

func (m *Metrics) record(ctx context.Context, channel, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("outcome", outcome),
	))
	m.RequestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("channel", channel)))
}

func (m *Metrics) connectionDelta(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.Connections.Add(ctx, delta)
}
