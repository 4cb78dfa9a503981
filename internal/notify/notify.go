// Package notify delivers user-facing notifications to a terminal, to connected
// event subscribers, or to memory for tests.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"licensebridge/internal/websocket"
	"licensebridge/pkg/contracts/events"
)

// Notifier shows an informational message to the user
type Notifier interface {
	Info(ctx context.Context, msg string) error
}

// Console prints notifications to a terminal
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	badge   lipgloss.Style
	message lipgloss.Style
}

// NewConsole renders for w; colours are dropped when w is not a terminal
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w: w,
		badge: r.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color("#2563eb")).
			Padding(0, 1).
			Bold(true),
		message: r.NewStyle().
			Foreground(lipgloss.Color("#93c5fd")).
			PaddingLeft(1),
	}
}

func (c *Console) Info(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, c.badge.Render("info")+c.message.Render(msg))
	return err
}

// HubNotifier broadcasts notifications as events to every hub subscriber
type HubNotifier struct {
	publisher websocket.Publisher
}

func NewHubNotifier(p websocket.Publisher) *HubNotifier {
	return &HubNotifier{publisher: p}
}

func (h *HubNotifier) Info(ctx context.Context, msg string) error {
	return h.publisher.Publish(ctx, events.Notification, events.NotificationData{
		Level:   "info",
		Message: msg,
	})
}

// Multi sends to every notifier and joins their errors
type Multi []Notifier

func (m Multi) Info(ctx context.Context, msg string) error {
	var errs []error
	for _, n := range m {
		if err := n.Info(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every message in memory
type Recorder struct {
	mu       sync.Mutex
	messages []string
	// Err, when set, is returned instead of recording
	Err error
}

func (r *Recorder) Info(_ context.Context, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}
