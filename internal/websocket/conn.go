package websocket

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Publisher pushes named events to every subscriber
type Publisher interface {
	Publish(ctx context.Context, name string, data interface{}) error
}

// Conn is a subscriber connection as seen by the client pumps. Implementations
// apply write deadlines themselves and extend the read deadline on every message.
type Conn interface {
	WriteFrame(data []byte) error
	WritePing() error
	WriteClose(code int, reason string) error
	// Read blocks for the next message and returns its payload
	Read() ([]byte, error)
	RemoteAddr() string
	Close() error
}

// socketConn adapts a gorilla connection. WriteFrame and WritePing are only
// called from the write pump; WriteClose uses a control frame and may race them.
type socketConn struct {
	conn      *websocket.Conn
	writeWait time.Duration
	pongWait  time.Duration
}

func newSocketConn(conn *websocket.Conn, readLimit int64) *socketConn {
	c := &socketConn{conn: conn, writeWait: writeWait, pongWait: pongWait}
	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(c.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	return c
}

func (c *socketConn) WriteFrame(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *socketConn) WritePing() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

func (c *socketConn) WriteClose(code int, reason string) error {
	return c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(c.writeWait))
}

func (c *socketConn) Read() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	// Any message proves liveness
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	return data, nil
}

func (c *socketConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *socketConn) Close() error {
	return c.conn.Close()
}
