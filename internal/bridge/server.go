package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"licensebridge/internal/config"
	apperrors "licensebridge/internal/errors"
	"licensebridge/internal/infrastructure"
)

// Server serves the bridge over websocket connections
type Server struct {
	router   *Router
	cfg      config.BridgeConfig
	logger   *slog.Logger
	metrics  *Metrics
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer creates a bridge server dispatching to router
func NewServer(router *Router, cfg config.BridgeConfig, logger *slog.Logger, metrics *Metrics) *Server {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Server{
		router:  router,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "bridge_server")),
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The daemon binds to loopback; UI shells connect from file:// or app origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	if !s.track(conn) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.cfg.WriteWait))
		conn.Close()
		return
	}
	defer s.untrack(conn)

	connID := uuid.New().String()
	ctx := infrastructure.WithTraceID(context.Background(), connID)
	s.serveConn(ctx, conn, connID, r.RemoteAddr)
}

// Close closes every open connection and waits for their handlers to return
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.cfg.WriteWait))
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// ConnectionCount returns the number of open connections
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

// serveConn runs the read loop on the calling goroutine and a write pump beside it.
// Requests are dispatched concurrently; responses may arrive out of order.
func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn, connID, remoteAddr string) {
	ctx, cancel := context.WithCancel(ctx)
	logger := s.logger.With(slog.String("conn_id", connID), slog.String("remote_addr", remoteAddr))
	connectedAt := time.Now()

	s.metrics.connectionDelta(ctx, 1)
	logger.InfoContext(ctx, "bridge client connected")

	outbound := make(chan Response, 64)
	var handlers sync.WaitGroup
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(ctx, conn, outbound, logger)
	}()

	var limiter *rate.Limiter
	if s.cfg.RateLimit.Enabled {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit.RPS), s.cfg.RateLimit.Burst)
	}

	defer func() {
		cancel()
		handlers.Wait()
		close(outbound)
		<-writerDone
		conn.Close()
		s.metrics.connectionDelta(context.Background(), -1)
		logger.InfoContext(ctx, "bridge client disconnected",
			slog.Duration("connection_duration", time.Since(connectedAt)))
	}()

	conn.SetReadLimit(s.cfg.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.WarnContext(ctx, "unexpected bridge close", slog.String("error", err.Error()))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.reply(ctx, outbound, errorResponse("", fmt.Errorf("%w: %v", apperrors.ErrInvalidPayload, err)))
			continue
		}

		if limiter != nil && !limiter.Allow() {
			s.reply(ctx, outbound, errorResponse(req.ID, apperrors.ErrRateLimited))
			continue
		}

		handlers.Add(1)
		go func(req Request) {
			defer handlers.Done()
			reqCtx, cancelReq := context.WithTimeout(ctx, s.cfg.RequestTimeout)
			defer cancelReq()
			s.reply(ctx, outbound, s.router.Dispatch(reqCtx, req))
		}(req)
	}
}

func (s *Server) reply(ctx context.Context, outbound chan<- Response, resp Response) {
	select {
	case outbound <- resp:
	case <-ctx.Done():
	}
}

func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, outbound <-chan Response, logger *slog.Logger) {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case resp, ok := <-outbound:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := conn.WriteJSON(resp); err != nil {
				logger.DebugContext(ctx, "bridge write failed", slog.String("error", err.Error()))
				conn.Close()
				s.drain(outbound)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				logger.DebugContext(ctx, "bridge ping failed", slog.String("error", err.Error()))
				conn.Close()
				s.drain(outbound)
				return
			}
		}
	}
}

// drain discards responses after the socket broke so handlers never block
func (s *Server) drain(outbound <-chan Response) {
	for range outbound {
	}
}
