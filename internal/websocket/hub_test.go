package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/goleak"

	"licensebridge/internal/infrastructure"
	"licensebridge/internal/shared/testutil"
	"licensebridge/pkg/contracts/events"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestHub(t *testing.T, opts ...HubOption) *Hub {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(epoch)
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, append([]HubOption{WithClock(clock)}, opts...)...)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func receiveFrame(t *testing.T, ch <-chan []byte) events.Frame {
	t.Helper()
	select {
	case data, ok := <-ch:
		require.True(t, ok, "send channel closed")
		var frame events.Frame
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
		return events.Frame{}
	}
}

func TestHubPublish(t *testing.T) {
	hub := newTestHub(t)

	client := NewClient(hub, newFakeConn(), "trace-sub")
	require.True(t, hub.Register(client))

	connected := receiveFrame(t, client.send)
	assert.Equal(t, events.Connected, connected.Event)
	assert.Equal(t, "trace-sub", connected.TraceID)
	assert.JSONEq(t, `{"client_id":"`+client.ID()+`"}`, string(connected.Data))

	ctx := infrastructure.WithTraceID(context.Background(), "trace-pub")
	require.NoError(t, hub.Publish(ctx, events.LicenseChanged, events.LicenseChangedData{Action: "removed", ID: 3}))

	frame := receiveFrame(t, client.send)
	assert.Equal(t, events.LicenseChanged, frame.Event)
	assert.Equal(t, "trace-pub", frame.TraceID)
	assert.True(t, frame.Timestamp.Equal(epoch))

	var data events.LicenseChangedData
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Equal(t, events.LicenseChangedData{Action: "removed", ID: 3}, data)

	assert.Eventually(t, func() bool { return hub.Stats().MessagesSent == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, int64(1), hub.Stats().TotalConnections)
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := newTestHub(t)

	slow := NewClient(hub, newFakeConn(), "")
	slow.send = make(chan []byte)
	require.True(t, hub.Register(slow))
	require.Equal(t, 1, hub.ClientCount())

	require.NoError(t, hub.Publish(context.Background(), events.Notification, events.NotificationData{Level: "info", Message: "hi"}))

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), hub.Stats().MessagesDropped)

	_, ok := <-slow.send
	assert.False(t, ok, "dropped client's channel is closed")
}

func TestHubStop(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	hub.Start()
	hub.Start()

	client := NewClient(hub, newFakeConn(), "")
	require.True(t, hub.Register(client))

	hub.Stop()
	hub.Stop()

	for range client.send {
	}
	assert.Equal(t, 0, hub.ClientCount())
	assert.ErrorIs(t, hub.Publish(context.Background(), events.Notification, nil), ErrHubStopped)
	assert.False(t, hub.Register(NewClient(hub, newFakeConn(), "")))
	hub.Unregister(client)
	assert.True(t, handler.ContainsMessage("Hub shutting down"))
}

func TestHubStopWithoutStart(t *testing.T) {
	hub := NewHub(nil)
	hub.Stop()
	assert.ErrorIs(t, hub.Publish(context.Background(), events.Notification, nil), ErrHubStopped)
}

func TestPublishRejectsUnencodableData(t *testing.T) {
	hub := newTestHub(t)
	err := hub.Publish(context.Background(), events.Notification, make(chan int))
	assert.Error(t, err)
}

func TestClientPumps(t *testing.T) {
	hub := newTestHub(t)
	conn := newFakeConn()
	client := NewClient(hub, conn, "")
	require.True(t, hub.Register(client))

	writeDone := make(chan struct{})
	readDone := make(chan struct{})
	go func() { client.WritePump(); close(writeDone) }()
	go func() { client.ReadPump(); close(readDone) }()

	conn.push([]byte(`{"type":"heartbeat"}`))
	require.NoError(t, hub.Publish(context.Background(), events.LicenseChanged, events.LicenseChangedData{Action: "saved", ID: 1}))

	require.Eventually(t, func() bool { return len(conn.frames()) >= 2 }, time.Second, 10*time.Millisecond)
	written := conn.frames()
	assert.Contains(t, string(written[0]), `"event":"connected"`)
	assert.Contains(t, string(written[1]), `"event":"license.changed"`)

	conn.Close()
	<-readDone
	<-writeDone
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, websocket.CloseGoingAway, conn.sentClose())
}

func TestHubServeHTTP(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	hub.Start()

	ts := httptest.NewServer(hub)
	defer ts.Close()
	defer hub.Stop()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var connected events.Frame
	require.NoError(t, conn.ReadJSON(&connected))
	assert.Equal(t, events.Connected, connected.Event)

	require.NoError(t, hub.Publish(context.Background(), events.Notification, events.NotificationData{Level: "info", Message: "trial started"}))

	var frame events.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, events.Notification, frame.Event)
	assert.JSONEq(t, `{"level":"info","message":"trial started"}`, string(frame.Data))

	hub.Stop()
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHubMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	hub := newTestHub(t, WithMetrics(metrics))
	client := NewClient(hub, newFakeConn(), "")
	require.True(t, hub.Register(client))
	receiveFrame(t, client.send)

	require.NoError(t, hub.Publish(context.Background(), events.LicenseChanged, nil))
	receiveFrame(t, client.send)
	require.Eventually(t, func() bool { return hub.Stats().MessagesSent == 1 }, time.Second, 10*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	values := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					values[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), values["websocket_connections_active"])
	assert.Equal(t, int64(1), values["websocket_messages_sent_total"])
}
