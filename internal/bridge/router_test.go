package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	apperrors "licensebridge/internal/errors"
	"licensebridge/internal/shared/testutil"
	"licensebridge/pkg/contracts/domain"
)

type echoRequest struct {
	Text string `json:"text"`
}

type echoResponse struct {
	Echo string `json:"echo"`
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	r := NewRouter(logger, nil)
	r.Handle("test/echo", Typed(func(ctx context.Context, req echoRequest) (echoResponse, error) {
		return echoResponse{Echo: req.Text}, nil
	}))
	r.Handle("test/missing", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return nil, apperrors.ErrLicenseNotFound
	})
	r.Handle("test/panic", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		panic("secret internals")
	})
	return r
}

func mustRequest(t *testing.T, channel string, args interface{}) Request {
	t.Helper()
	req, err := NewRequest(channel, args)
	require.NoError(t, err)
	return req
}

func TestRouterDispatch(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		req      Request
		wantCode string
		wantEcho string
	}{
		{
			name:     "typed handler",
			req:      mustRequest(t, "test/echo", echoRequest{Text: "hello"}),
			wantEcho: "hello",
		},
		{
			name:     "null payload",
			req:      Request{ID: "0b8f6a3e-3f0a-4a8e-9b64-2c1f8f1c5d2e", Channel: "test/echo", Payload: json.RawMessage("null")},
			wantEcho: "",
		},
		{
			name:     "malformed payload",
			req:      Request{ID: "0b8f6a3e-3f0a-4a8e-9b64-2c1f8f1c5d2e", Channel: "test/echo", Payload: json.RawMessage(`[1,2]`)},
			wantCode: domain.ErrCodeInvalidPayload,
		},
		{
			name:     "unknown channel",
			req:      mustRequest(t, "test/nope", nil),
			wantCode: domain.ErrCodeUnknownChannel,
		},
		{
			name:     "handler error",
			req:      mustRequest(t, "test/missing", nil),
			wantCode: domain.ErrCodeLicenseNotFound,
		},
		{
			name:     "invalid envelope",
			req:      Request{ID: "not-a-uuid", Channel: "test/echo"},
			wantCode: domain.ErrCodeInvalidPayload,
		},
		{
			name:     "missing channel",
			req:      Request{ID: "0b8f6a3e-3f0a-4a8e-9b64-2c1f8f1c5d2e"},
			wantCode: domain.ErrCodeInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := r.Dispatch(ctx, tt.req)
			assert.Equal(t, tt.req.ID, resp.ID)

			if tt.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
				assert.Empty(t, resp.Result)
				return
			}

			require.Nil(t, resp.Error)
			var out echoResponse
			require.NoError(t, json.Unmarshal(resp.Result, &out))
			assert.Equal(t, tt.wantEcho, out.Echo)
		})
	}
}

func TestRouterRecoversPanics(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	r := NewRouter(logger, nil)
	r.Handle("test/panic", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		panic("secret internals")
	})

	resp := r.Dispatch(context.Background(), mustRequest(t, "test/panic", nil))

	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.ErrCodeInternal, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "secret internals")
	assert.True(t, handler.ContainsMessage("handler panic"))
	assert.True(t, handler.ContainsAttr("component", "bridge_router"))
}

func TestRouterChannels(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, []string{"test/echo", "test/missing", "test/panic"}, r.Channels())

	r.Handle("test/echo", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return "replaced", nil
	})
	assert.Len(t, r.Channels(), 3)

	resp := r.Dispatch(context.Background(), mustRequest(t, "test/echo", nil))
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `"replaced"`, string(resp.Result))
}

func TestRemoteErrorUnwrapsToSentinel(t *testing.T) {
	err := error(&RemoteError{Code: domain.ErrCodeTrialAlreadyUsed, Message: "trial license already used"})

	assert.True(t, errors.Is(err, apperrors.ErrTrialAlreadyUsed))
	assert.False(t, errors.Is(err, apperrors.ErrLicenseNotFound))
	assert.Equal(t, "TRIAL_ALREADY_USED: trial license already used", err.Error())

	unknown := &RemoteError{Code: "SOMETHING_NEW", Message: "?"}
	assert.Nil(t, unknown.Unwrap())
}

func TestResponseDecode(t *testing.T) {
	var out echoResponse
	require.NoError(t, Response{Result: json.RawMessage(`{"echo":"x"}`)}.decode(&out))
	assert.Equal(t, "x", out.Echo)

	require.NoError(t, Response{}.decode(&out), "empty result leaves out untouched")
	require.NoError(t, Response{Result: json.RawMessage(`{"echo":"y"}`)}.decode(nil))

	err := Response{Result: json.RawMessage(`{"echo":`)}.decode(&out)
	assert.Error(t, err)

	err = Response{Error: &RemoteError{Code: domain.ErrCodeRateLimited, Message: "slow down"}}.decode(&out)
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
}

func TestRouterMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	logger, _ := testutil.NewTestLogger(t)
	r := NewRouter(logger, metrics)
	r.Handle("test/echo", Typed(func(ctx context.Context, req echoRequest) (echoResponse, error) {
		return echoResponse{Echo: req.Text}, nil
	}))

	ctx := context.Background()
	r.Dispatch(ctx, mustRequest(t, "test/echo", echoRequest{Text: "a"}))
	r.Dispatch(ctx, mustRequest(t, "test/echo", echoRequest{Text: "b"}))
	r.Dispatch(ctx, mustRequest(t, "test/unknown", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "bridge_requests_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				counts[outcome.AsString()] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(2), counts["ok"])
	assert.Equal(t, int64(1), counts[domain.ErrCodeUnknownChannel])
}

func TestLocalClient(t *testing.T) {
	client := NewLocalClient(newTestRouter(t))
	ctx := context.Background()

	var out echoResponse
	require.NoError(t, client.Send(ctx, "test/echo", echoRequest{Text: "local"}, &out))
	assert.Equal(t, "local", out.Echo)

	err := client.Send(ctx, "test/missing", nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrLicenseNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = client.Send(cancelled, "test/echo", nil, &out)
	assert.ErrorIs(t, err, context.Canceled)

	err = client.Send(ctx, "test/echo", func() {}, &out)
	assert.Error(t, err, "unencodable args fail before dispatch")
}
