package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensebridge/internal/shared/testutil"
)

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{name: "nil error writes nothing", err: nil, wantStatus: http.StatusOK},
		{name: "deadline", err: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout, wantType: TypeTimeout},
		{name: "api error", err: InvalidBody(fmt.Errorf("unexpected EOF")), wantStatus: http.StatusBadRequest, wantType: TypeValidation},
		{name: "license not found", err: fmt.Errorf("remove 7: %w", ErrLicenseNotFound), wantStatus: http.StatusNotFound, wantType: TypeLicenseNotFound},
		{name: "trial used", err: ErrTrialAlreadyUsed, wantStatus: http.StatusConflict, wantType: TypeTrialAlreadyUsed},
		{name: "unknown channel", err: ErrUnknownChannel, wantStatus: http.StatusNotFound, wantType: TypeUnknownChannel},
		{name: "backend closed", err: ErrClosed, wantStatus: http.StatusServiceUnavailable, wantType: TypeServiceDown},
		{name: "generic", err: fmt.Errorf("boom"), wantStatus: http.StatusInternalServerError, wantType: TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/license/status", nil)

			handler.HandleError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.err == nil {
				assert.Zero(t, w.Body.Len())
				assert.Zero(t, logs.Count())
				return
			}

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body["type"])
			assert.Contains(t, body, "trace_id")
			testutil.AssertLogContains(t, logs, slog.LevelError, "request failed")
		})
	}
}

func TestErrorHandler_StackInDevelopment(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, true)

	w := httptest.NewRecorder()
	handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/x", nil), fmt.Errorf("boom"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["stack"])
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.HandlePanic(w, httptest.NewRequest(http.MethodPost, "/bridge", nil), "nil map write")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "nil map write")
	testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	handler.MethodNotAllowed(w, httptest.NewRequest(http.MethodPut, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "Method PUT is not allowed")
}

func TestErrorHandler_ValidatorFields(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	verr := validator.New().Var("Gold", "oneof=TrialLicense BusinessLicense")
	require.Error(t, verr)

	problem := handler.ErrorToProblem(fmt.Errorf("save: %w", verr), httptest.NewRequest(http.MethodPost, "/api/license/licenses", nil))
	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, TypeValidation, problem.Type)
	require.Contains(t, problem.Extensions, "errors")
	assert.Len(t, problem.Extensions["errors"], 1)
	assert.Equal(t, "VALIDATION_FAILED", problem.Extensions["error_code"])
}

func TestErrorHandler_ValidationExtension(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	problem := handler.ErrorToProblem(ErrInvalidPayload, httptest.NewRequest(http.MethodPost, "/bridge", nil))
	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, TypeValidation, problem.Type)
	assert.NotContains(t, problem.Extensions, "errors")
}
