package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "licensebridge/internal/errors"
	"licensebridge/internal/infrastructure"
	"licensebridge/pkg/contracts/events"
)

// DialOptions configures a WSClient
type DialOptions struct {
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	ReadLimit        int64
	Logger           *slog.Logger
	// OnEvent receives frames pushed by the server. It runs on the read goroutine
	// and must not block.
	OnEvent func(events.Frame)
}

func (o *DialOptions) setDefaults() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 20
	}
	if o.Logger == nil {
		o.Logger = infrastructure.GetLogger()
	}
}

// WSClient sends bridge requests over a websocket and matches responses by ID
type WSClient struct {
	conn   *websocket.Conn
	opts   DialOptions
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Response
	err     error

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to a bridge server
func Dial(ctx context.Context, url string, opts DialOptions) (*WSClient, error) {
	opts.setDefaults()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(opts.ReadLimit)

	c := &WSClient{
		conn:    conn,
		opts:    opts,
		logger:  opts.Logger.With(slog.String("component", "bridge_client"), slog.String("url", url)),
		pending: make(map[string]chan Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Send implements license.Bridge
func (c *WSClient) Send(ctx context.Context, channel string, args interface{}, out interface{}) error {
	req, err := NewRequest(channel, args)
	if err != nil {
		return err
	}

	ch := make(chan Response, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return apperrors.ErrClosed
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := c.write(req); err != nil {
		return fmt.Errorf("send %s: %w", channel, err)
	}

	select {
	case resp := <-ch:
		return resp.decode(out)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return apperrors.ErrClosed
	}
}

func (c *WSClient) write(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return c.conn.WriteJSON(v)
}

// readLoop delivers responses to waiting senders and events to OnEvent
func (c *WSClient) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}

		var probe struct {
			ID    string `json:"id"`
			Event string `json:"event"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			c.logger.Warn("discarding malformed frame", slog.String("error", err.Error()))
			continue
		}

		if probe.Event != "" {
			c.deliverEvent(data)
			continue
		}

		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Warn("discarding malformed response", slog.String("error", err.Error()))
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		c.mu.Unlock()
		if !ok {
			// The caller gave up (context cancelled) before the reply arrived
			c.logger.Debug("response without pending request", slog.String("id", resp.ID))
			continue
		}
		select {
		case ch <- resp:
		default:
			c.logger.Warn("discarding duplicate response", slog.String("id", resp.ID))
		}
	}
}

func (c *WSClient) deliverEvent(data []byte) {
	if c.opts.OnEvent == nil {
		return
	}
	var frame events.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn("discarding malformed event", slog.String("error", err.Error()))
		return
	}
	c.opts.OnEvent(frame)
}

func (c *WSClient) shutdown(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once the connection is gone
func (c *WSClient) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame, closes the socket and waits for the read loop to stop.
// Pending calls fail with ErrClosed.
func (c *WSClient) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.opts.WriteWait))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}
