package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"licensebridge/pkg/contracts/domain"
)

// Sentinel errors shared by the backend service, the bridge and the HTTP layer
var (
	ErrLicenseNotFound  = errors.New("license not found")
	ErrTrialAlreadyUsed = errors.New("trial license already used")
	ErrInvalidLicense   = errors.New("invalid license key")
	ErrUnknownChannel   = errors.New("unknown bridge channel")
	ErrInvalidPayload   = errors.New("invalid bridge payload")
	ErrRateLimited      = errors.New("rate limited")
	ErrClosed           = errors.New("bridge connection closed")
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON flattens extensions next to the standard members
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{}, 5+len(pd.Extensions))
	for k, v := range pd.Extensions {
		data[k] = v
	}

	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}

	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// Code classifies err into the error code carried by bridge remote errors
func Code(err error) string {
	var apiErr *APIError
	var verrs validator.ValidationErrors
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLicenseNotFound):
		return domain.ErrCodeLicenseNotFound
	case errors.Is(err, ErrTrialAlreadyUsed):
		return domain.ErrCodeTrialAlreadyUsed
	case errors.Is(err, ErrInvalidLicense), errors.As(err, &verrs):
		return domain.ErrCodeValidationFailed
	case errors.Is(err, ErrUnknownChannel):
		return domain.ErrCodeUnknownChannel
	case errors.Is(err, ErrInvalidPayload):
		return domain.ErrCodeInvalidPayload
	case errors.Is(err, ErrRateLimited):
		return domain.ErrCodeRateLimited
	case errors.Is(err, ErrClosed), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrCodeServiceUnavailable
	case errors.As(err, &apiErr):
		return apiErr.ErrorCode
	default:
		return domain.ErrCodeInternal
	}
}

// FromCode returns the sentinel matching a remote error code, or nil when the code
// has no local counterpart.
func FromCode(code string) error {
	switch code {
	case domain.ErrCodeLicenseNotFound:
		return ErrLicenseNotFound
	case domain.ErrCodeTrialAlreadyUsed:
		return ErrTrialAlreadyUsed
	case domain.ErrCodeValidationFailed:
		return ErrInvalidLicense
	case domain.ErrCodeUnknownChannel:
		return ErrUnknownChannel
	case domain.ErrCodeInvalidPayload:
		return ErrInvalidPayload
	case domain.ErrCodeRateLimited:
		return ErrRateLimited
	case domain.ErrCodeServiceUnavailable:
		return ErrClosed
	default:
		return nil
	}
}

// HTTPStatus maps err to the status code the REST surface answers with
func HTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	switch Code(err) {
	case domain.ErrCodeLicenseNotFound:
		return http.StatusNotFound
	case domain.ErrCodeTrialAlreadyUsed:
		return http.StatusConflict
	case domain.ErrCodeValidationFailed, domain.ErrCodeInvalidPayload:
		return http.StatusBadRequest
	case domain.ErrCodeUnknownChannel:
		return http.StatusNotFound
	case domain.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case domain.ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// MapLicenseError maps domain errors to HTTP problem details
func MapLicenseError(err error, traceID string) *ProblemDetails {
	instance := fmt.Sprintf("/api/license#trace-%s", traceID)

	var problem *ProblemDetails
	switch {
	case errors.Is(err, ErrLicenseNotFound):
		problem = NewProblemDetails(
			http.StatusNotFound,
			TypeLicenseNotFound,
			"License Not Found",
			"No license key with this id exists.",
			instance,
		)

	case errors.Is(err, ErrTrialAlreadyUsed):
		problem = NewProblemDetails(
			http.StatusConflict,
			TypeTrialAlreadyUsed,
			"Trial Already Used",
			"A trial license has already been created on this installation.",
			instance,
		)

	case Code(err) == domain.ErrCodeValidationFailed:
		problem = NewProblemDetails(
			http.StatusBadRequest,
			TypeValidation,
			"Invalid License Key",
			err.Error(),
			instance,
		)

	case errors.Is(err, ErrRateLimited):
		problem = NewProblemDetails(
			http.StatusTooManyRequests,
			TypeRateLimit,
			"Too Many Requests",
			"Too many requests. Please try again later.",
			instance,
		).WithExtension("retry_after", 1)

	case Code(err) == domain.ErrCodeServiceUnavailable:
		problem = NewProblemDetails(
			http.StatusServiceUnavailable,
			TypeServiceDown,
			"Service Unavailable",
			"The license store is not reachable right now.",
			instance,
		)

	default:
		problem = NewProblemDetails(
			http.StatusInternalServerError,
			TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request.",
			instance,
		)
	}

	return problem.WithExtension("trace_id", traceID).
		WithExtension("error_code", Code(err))
}
