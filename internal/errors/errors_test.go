package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensebridge/pkg/contracts/domain"
)

func TestAPIError_Render(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		wantCode string
	}{
		{name: "invalid body", apiError: InvalidBody(fmt.Errorf("unexpected EOF")), wantCode: CodeInvalidRequest},
		{name: "invalid parameter", apiError: InvalidParameter("id", "abc", "License id must be a positive integer"), wantCode: CodeInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/license/licenses/abc", nil)

			require.NoError(t, render.Render(w, r, tt.apiError))
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.ErrorCode)
			assert.Equal(t, tt.apiError.Message, body.Message)
		})
	}
}

func TestInvalidParameterDetails(t *testing.T) {
	err := InvalidParameter("id", "-3", "License id must be a positive integer")

	assert.Equal(t, "License id must be a positive integer", err.Error())
	assert.Equal(t, map[string]string{"id": "-3"}, err.Details)
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(fmt.Errorf("route: %w", err)))
	assert.Equal(t, CodeInvalidParameter, Code(err))
}

func TestFieldErrors(t *testing.T) {
	type payload struct {
		Key         string `validate:"required"`
		LicenseType string `validate:"oneof=TrialLicense BusinessLicense"`
		RequestID   string `validate:"uuid4"`
	}

	verr := validator.New().Struct(payload{LicenseType: "Gold", RequestID: "nope"})
	require.Error(t, verr)

	fields := FieldErrors(fmt.Errorf("save: %w", verr))
	require.Len(t, fields, 3)
	assert.Equal(t, FieldError{Field: "Key", Message: "is required"}, fields[0])
	assert.Equal(t, "LicenseType", fields[1].Field)
	assert.Equal(t, "must be one of [TrialLicense BusinessLicense]", fields[1].Message)
	assert.Equal(t, "must be a version 4 UUID", fields[2].Message)

	assert.Nil(t, FieldErrors(fmt.Errorf("unexpected EOF")))
}

func TestCodeAndFromCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantBack error
	}{
		{name: "not found", err: ErrLicenseNotFound, wantCode: domain.ErrCodeLicenseNotFound, wantBack: ErrLicenseNotFound},
		{name: "wrapped trial", err: fmt.Errorf("create trial: %w", ErrTrialAlreadyUsed), wantCode: domain.ErrCodeTrialAlreadyUsed, wantBack: ErrTrialAlreadyUsed},
		{name: "unknown channel", err: ErrUnknownChannel, wantCode: domain.ErrCodeUnknownChannel, wantBack: ErrUnknownChannel},
		{name: "invalid payload", err: ErrInvalidPayload, wantCode: domain.ErrCodeInvalidPayload, wantBack: ErrInvalidPayload},
		{name: "rate limited", err: ErrRateLimited, wantCode: domain.ErrCodeRateLimited, wantBack: ErrRateLimited},
		{name: "closed", err: ErrClosed, wantCode: domain.ErrCodeServiceUnavailable, wantBack: ErrClosed},
		{name: "plain error", err: fmt.Errorf("disk full"), wantCode: domain.ErrCodeInternal, wantBack: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := Code(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantBack, FromCode(code))
		})
	}

	assert.Empty(t, Code(nil))
}

func TestCodeForValidatorErrors(t *testing.T) {
	verr := validator.New().Var("", "required")
	require.Error(t, verr)

	assert.Equal(t, domain.ErrCodeValidationFailed, Code(fmt.Errorf("save: %w", verr)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(verr))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrLicenseNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrTrialAlreadyUsed))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(ErrRateLimited))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrClosed))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))
}

func TestMapLicenseError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{name: "not found", err: ErrLicenseNotFound, wantStatus: http.StatusNotFound, wantType: TypeLicenseNotFound},
		{name: "trial used", err: ErrTrialAlreadyUsed, wantStatus: http.StatusConflict, wantType: TypeTrialAlreadyUsed},
		{name: "invalid", err: ErrInvalidLicense, wantStatus: http.StatusBadRequest, wantType: TypeValidation},
		{name: "rate limited", err: ErrRateLimited, wantStatus: http.StatusTooManyRequests, wantType: TypeRateLimit},
		{name: "closed", err: ErrClosed, wantStatus: http.StatusServiceUnavailable, wantType: TypeServiceDown},
		{name: "deadline", err: context.DeadlineExceeded, wantStatus: http.StatusServiceUnavailable, wantType: TypeServiceDown},
		{name: "generic", err: fmt.Errorf("boom"), wantStatus: http.StatusInternalServerError, wantType: TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := MapLicenseError(tt.err, "trace-1")

			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "/api/license#trace-trace-1", problem.Instance)
			assert.Equal(t, "trace-1", problem.Extensions["trace_id"])
		})
	}
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	problem := NewProblemDetails(http.StatusConflict, TypeConflict, "Conflict", "", "/x").
		WithExtension("error_code", "CONFLICT").
		WithExtension("status", 999)

	raw, err := json.Marshal(problem)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "CONFLICT", decoded["error_code"])
	assert.Equal(t, float64(http.StatusConflict), decoded["status"], "standard members win over extensions")
	assert.NotContains(t, decoded, "detail")
	assert.Equal(t, "/x", decoded["instance"])
}
