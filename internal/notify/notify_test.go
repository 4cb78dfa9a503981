package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"licensebridge/pkg/contracts/events"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, name string, data interface{}) error {
	args := m.Called(ctx, name, data)
	return args.Error(0)
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(&buf)

	require.NoError(t, console.Info(context.Background(), "Your 14 day free trial has started, enjoy!"))
	require.NoError(t, console.Info(context.Background(), "second"))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "info")
	assert.Contains(t, lines[0], "Your 14 day free trial has started, enjoy!")
	assert.NotContains(t, buf.String(), "\x1b[", "no escape codes when not writing to a terminal")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, console.Info(ctx, "late"), context.Canceled)
}

func TestHubNotifier(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, events.Notification, events.NotificationData{Level: "info", Message: "hello"}).
		Return(nil).Once()

	require.NoError(t, NewHubNotifier(pub).Info(context.Background(), "hello"))
	pub.AssertExpectations(t)

	data, err := json.Marshal(events.NotificationData{Level: "info", Message: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":"info","message":"hello"}`, string(data))
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &Recorder{}
	failing := &Recorder{Err: errors.New("sink down")}

	err := Multi{ok, failing, ok}.Info(context.Background(), "msg")
	assert.EqualError(t, err, "sink down")
	assert.Equal(t, []string{"msg", "msg"}, ok.Messages())
	assert.Empty(t, failing.Messages())

	assert.NoError(t, Multi{}.Info(context.Background(), "nothing"))
}
