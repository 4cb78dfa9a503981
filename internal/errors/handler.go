package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem types (RFC 7807 "type" members)
const (
	TypeValidation   = "/errors/validation"
	TypeNotFound     = "/errors/not-found"
	TypeConflict     = "/errors/conflict"
	TypeRateLimit    = "/errors/rate-limit"
	TypeInternal     = "/errors/internal"
	TypeServiceDown  = "/errors/service-unavailable"
	TypeTimeout      = "/errors/timeout"
	TypeMethodDenied = "/errors/method-not-allowed"

	TypeLicenseNotFound  = "/errors/license/not-found"
	TypeTrialAlreadyUsed = "/errors/license/trial-already-used"
	TypeUnknownChannel   = "/errors/bridge/unknown-channel"
)

// ErrorHandler answers failed HTTP requests with problem details. Every response
// carries the chi request id as trace_id; stacks are added only when enabled.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs err and writes its problem details. A nil err writes nothing.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("error_code", Code(err)),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	h.respond(w, r, h.ErrorToProblem(err, r), nil)
}

// HandlePanic answers a recovered panic with a generic 500. The panic value only
// reaches the response when stacks are enabled.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	stack := debug.Stack()
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(stack)))

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		"Internal Server Error", "An unexpected error occurred", r.URL.Path)
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
	}
	h.respond(w, r, problem, stack)
}

func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, NewProblemDetails(http.StatusNotFound, TypeNotFound,
		"Not Found", "The requested resource was not found", r.URL.Path), nil)
}

func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, NewProblemDetails(http.StatusMethodNotAllowed, TypeMethodDenied,
		"Method Not Allowed", fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path), nil)
}

func (h *ErrorHandler) respond(w http.ResponseWriter, r *http.Request, problem *ProblemDetails, stack []byte) {
	problem.WithExtension("trace_id", middleware.GetReqID(r.Context()))
	if h.includeStack {
		if stack == nil {
			stack = debug.Stack()
		}
		problem.WithExtension("stack", string(stack))
	}
	render.Render(w, r, problem)
}

// ErrorToProblem classifies err. Request-level timeouts become 504; everything
// else follows Code and HTTPStatus.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled", path)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		problem := NewProblemDetails(apiErr.StatusCode, problemTypeForStatus(apiErr.StatusCode),
			http.StatusText(apiErr.StatusCode), apiErr.Message, path).
			WithExtension("error_code", apiErr.ErrorCode)
		if apiErr.Details != nil {
			problem.WithExtension("details", apiErr.Details)
		}
		return problem
	}

	status := HTTPStatus(err)
	var problem *ProblemDetails
	switch {
	case errors.Is(err, ErrLicenseNotFound):
		problem = NewProblemDetails(status, TypeLicenseNotFound, "License Not Found", err.Error(), path)
	case errors.Is(err, ErrTrialAlreadyUsed):
		problem = NewProblemDetails(status, TypeTrialAlreadyUsed, "Trial Already Used", err.Error(), path)
	case errors.Is(err, ErrUnknownChannel):
		problem = NewProblemDetails(status, TypeUnknownChannel, "Unknown Channel", err.Error(), path)
	case errors.Is(err, ErrRateLimited):
		problem = NewProblemDetails(status, TypeRateLimit, "Rate Limit Exceeded",
			"Too many requests. Please try again later.", path).WithExtension("retry_after", 1)
	case status == http.StatusBadRequest:
		problem = NewProblemDetails(status, TypeValidation, "Validation Failed", err.Error(), path)
		if fields := FieldErrors(err); len(fields) > 0 {
			problem.WithExtension("errors", fields)
		}
	case status == http.StatusServiceUnavailable:
		problem = NewProblemDetails(status, TypeServiceDown, "Service Unavailable",
			"The license backend is not reachable", path)
	default:
		problem = NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
			"An unexpected error occurred while processing your request", path)
	}
	return problem.WithExtension("error_code", Code(err))
}

func problemTypeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return TypeValidation
	case http.StatusNotFound:
		return TypeNotFound
	case http.StatusConflict:
		return TypeConflict
	case http.StatusTooManyRequests:
		return TypeRateLimit
	case http.StatusServiceUnavailable:
		return TypeServiceDown
	default:
		return TypeInternal
	}
}
