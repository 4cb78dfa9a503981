package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"licensebridge/internal/infrastructure"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send heartbeats
	maxMessageSize = 512

	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is a middleman between one subscriber connection and the hub
type Client struct {
	hub  *Hub
	conn Conn

	// Buffered channel of outbound frames; closed by the hub
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger

	messagesSent int64
}

// NewClient creates a client for conn. An empty traceID gets a fresh one.
func NewClient(hub *Hub, conn Conn, traceID string) *Client {
	id := uuid.New().String()
	if traceID == "" {
		traceID = infrastructure.GenerateTraceID()
	}
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: hub.clock.Now(),
		logger: hub.logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
		),
	}
}

// ID returns the client identifier sent in the connected frame
func (c *Client) ID() string {
	return c.id
}

func (c *Client) context() context.Context {
	return infrastructure.WithTraceID(context.Background(), c.traceID)
}

// ReadPump reads until the connection fails, then unregisters the client.
// Subscribers have nothing to say beyond heartbeats, so messages are discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	for {
		if _, err := c.conn.Read(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.WarnContext(c.context(), "subscriber closed unexpectedly",
					slog.String("error", err.Error()))
			}
			return
		}
	}
}

// WritePump writes queued frames and pings until the hub closes the send channel
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.DebugContext(c.context(), "write pump stopped",
			slog.Int64("messages_sent", c.messagesSent))
	}()
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.conn.WriteClose(websocket.CloseGoingAway, "")
				return
			}
			if err := c.conn.WriteFrame(frame); err != nil {
				c.logger.DebugContext(c.context(), "frame write failed",
					slog.String("error", err.Error()))
				return
			}
			c.messagesSent++
		case <-ticker.C:
			if err := c.conn.WritePing(); err != nil {
				c.logger.DebugContext(c.context(), "ping failed",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

// ServeHTTP upgrades a subscriber connection and attaches it to the hub
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sc := newSocketConn(conn, maxMessageSize)
	client := NewClient(h, sc, infrastructure.GetTraceID(r.Context()))
	if !h.Register(client) {
		sc.WriteClose(websocket.CloseGoingAway, "hub stopped")
		sc.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
