package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	apperrors "licensebridge/internal/errors"
	"licensebridge/internal/infrastructure"
)

// HandlerFunc answers a request payload with a value to encode as the result
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (interface{}, error)

// Router dispatches requests to the handler bound to their channel
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   *slog.Logger
	metrics  *Metrics
}

// NewRouter creates an empty router. metrics may be nil.
func NewRouter(logger *slog.Logger, metrics *Metrics) *Router {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger.With(slog.String("component", "bridge_router")),
		metrics:  metrics,
	}
}

// Handle binds a handler to channel, replacing any previous one
func (r *Router) Handle(channel string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[channel] = h
}

// Channels lists the bound channels in sorted order
func (r *Router) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for c := range r.handlers {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs the handler for req and always returns a response
func (r *Router) Dispatch(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if resp.Error != nil {
			outcome = resp.Error.Code
		}
		r.metrics.record(ctx, req.Channel, outcome, time.Since(start))
	}()

	if err := req.Validate(); err != nil {
		return errorResponse(req.ID, fmt.Errorf("%w: %v", apperrors.ErrInvalidPayload, err))
	}

	r.mu.RLock()
	h, ok := r.handlers[req.Channel]
	r.mu.RUnlock()
	if !ok {
		r.logger.WarnContext(ctx, "unknown channel", slog.String("channel", req.Channel))
		return errorResponse(req.ID, fmt.Errorf("%w: %s", apperrors.ErrUnknownChannel, req.Channel))
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "handler panic",
				slog.String("channel", req.Channel),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			resp = errorResponse(req.ID, fmt.Errorf("handler panic on %s", req.Channel))
		}
	}()

	result, err := h(ctx, req.Payload)
	if err != nil {
		r.logger.DebugContext(ctx, "handler failed",
			slog.String("channel", req.Channel),
			slog.String("error", err.Error()))
		return errorResponse(req.ID, err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return errorResponse(req.ID, fmt.Errorf("encode %s result: %w", req.Channel, err))
	}
	return Response{ID: req.ID, Result: raw}
}

// Typed adapts a function over decoded values into a HandlerFunc. An empty or null
// payload leaves the request at its zero value.
func Typed[Req any, Resp any](fn func(ctx context.Context, req Req) (Resp, error)) HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		var req Req
		if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			if err := json.Unmarshal(trimmed, &req); err != nil {
				return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidPayload, err)
			}
		}
		return fn(ctx, req)
	}
}
