package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/quartz"

	"licensebridge/internal/infrastructure"
	"licensebridge/pkg/contracts/events"
)

// ErrHubStopped is returned by Publish once the hub is stopped
var ErrHubStopped = errors.New("event hub stopped")

type broadcastMessage struct {
	event   string
	payload []byte
	traceID string
}

// HubStats is a snapshot of hub counters for the health endpoint
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// Hub maintains the set of subscribed clients and broadcasts event frames to them
type Hub struct {
	clients map[*Client]bool

	broadcast  chan broadcastMessage
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *Metrics
	clock   quartz.Clock
	stats   HubStats

	quit    chan struct{}
	done    chan struct{}
	running bool
	stopped bool
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithClock sets the clock used for frame timestamps
func WithClock(clock quartz.Clock) HubOption {
	return func(h *Hub) { h.clock = clock }
}

// WithMetrics records hub activity on m
func WithMetrics(m *Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	hub := &Hub{
		broadcast:  make(chan broadcastMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		clock:      quartz.NewReal(),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(hub)
	}
	return hub
}

// Start starts the hub loop. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running || h.stopped {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop disconnects every client and waits for the hub loop to exit
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	wasRunning := h.running
	h.mu.Unlock()

	close(h.quit)
	if wasRunning {
		<-h.done
	}
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.stats.ActiveClients = 0
			h.mu.Unlock()
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.fanout(msg)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.ActiveClients = len(h.clients)
	count := h.stats.ActiveClients
	h.mu.Unlock()

	ctx := client.context()
	h.metrics.recordConnection(ctx)
	h.logger.InfoContext(ctx, "Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	frame, err := events.NewFrame(events.Connected, map[string]string{"client_id": client.id}, h.clock.Now())
	if err != nil {
		return
	}
	frame.TraceID = client.traceID
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.WarnContext(ctx, "Failed to send connection message - client buffer full",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.stats.ActiveClients = len(h.clients)
	count := h.stats.ActiveClients
	h.mu.Unlock()

	ctx := client.context()
	duration := h.clock.Since(client.connectedAt)
	h.metrics.recordDisconnection(ctx, duration)
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", duration))
}

// fanout delivers msg without blocking; a client whose buffer is full is disconnected
func (h *Hub) fanout(msg broadcastMessage) {
	ctx := context.Background()
	if msg.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, msg.traceID)
	}

	h.mu.Lock()
	delivered, dropped := 0, 0
	for client := range h.clients {
		select {
		case client.send <- msg.payload:
			delivered++
		default:
			dropped++
			close(client.send)
			delete(h.clients, client)
			h.logger.WarnContext(ctx, "Client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}
	h.stats.MessagesSent += int64(delivered)
	h.stats.MessagesDropped += int64(dropped)
	h.stats.ActiveClients = len(h.clients)
	h.mu.Unlock()

	h.metrics.recordBroadcast(ctx, msg.event, delivered, dropped)
	h.logger.DebugContext(ctx, "Broadcast event",
		slog.String("event", msg.event),
		slog.Int("delivered", delivered),
		slog.Int("dropped", dropped),
		slog.Int("payload_size", len(msg.payload)))
}

// Publish encodes data as an event frame and queues it for every client.
// It blocks only while the broadcast queue is full.
func (h *Hub) Publish(ctx context.Context, name string, data interface{}) error {
	frame, err := events.NewFrame(name, data, h.clock.Now())
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	frame.TraceID = infrastructure.TraceIDFromContext(ctx)

	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", name, err)
	}

	select {
	case h.broadcast <- broadcastMessage{event: name, payload: payload, traceID: frame.TraceID}:
		return nil
	case <-h.quit:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register adds a client. It returns false when the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns current hub counters
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}
