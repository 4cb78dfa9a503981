package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Record is one captured log line. Attribute keys inside groups are joined with
// dots, the way the JSON handler nests them.
type Record struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogCapture is a slog.Handler that keeps every record in memory and echoes it to
// the test log. Handlers derived through WithAttrs or WithGroup share the buffer.
type LogCapture struct {
	buf    *recordBuffer
	attrs  []slog.Attr
	prefix string
	t      testing.TB
}

type recordBuffer struct {
	mu      sync.Mutex
	records []Record
}

// NewTestLogger returns a logger writing into a fresh capture
func NewTestLogger(t testing.TB) (*slog.Logger, *LogCapture) {
	c := &LogCapture{buf: &recordBuffer{}, t: t}
	return slog.New(c), c
}

func (c *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

func (c *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(c.attrs)+r.NumAttrs())
	for _, a := range c.attrs {
		flatten(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, c.prefix, a)
		return true
	})

	c.buf.mu.Lock()
	c.buf.records = append(c.buf.records, Record{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: attrs})
	c.buf.mu.Unlock()

	if c.t != nil {
		c.t.Logf("%s %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (c *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *c
	next.attrs = make([]slog.Attr, 0, len(c.attrs)+len(attrs))
	next.attrs = append(next.attrs, c.attrs...)
	for _, a := range attrs {
		if c.prefix != "" {
			a.Key = c.prefix + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (c *LogCapture) WithGroup(name string) slog.Handler {
	if name == "" {
		return c
	}
	next := *c
	next.prefix = c.prefix + name + "."
	return &next
}

func flatten(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(dst, p, ga)
		}
		return
	}
	dst[prefix+a.Key] = v.Any()
}

// GetRecords returns a copy of every captured record
func (c *LogCapture) GetRecords() []Record {
	c.buf.mu.Lock()
	defer c.buf.mu.Unlock()
	return append([]Record(nil), c.buf.records...)
}

func (c *LogCapture) GetRecordsByLevel(level slog.Level) []Record {
	var out []Record
	for _, r := range c.GetRecords() {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

// ContainsMessage reports a record whose message contains substr
func (c *LogCapture) ContainsMessage(substr string) bool {
	for _, r := range c.GetRecords() {
		if strings.Contains(r.Message, substr) {
			return true
		}
	}
	return false
}

// ContainsAttr reports a record carrying key with exactly value. Integers are
// captured as int64.
func (c *LogCapture) ContainsAttr(key string, value any) bool {
	for _, r := range c.GetRecords() {
		if v, ok := r.Attrs[key]; ok && v == value {
			return true
		}
	}
	return false
}

func (c *LogCapture) Count() int {
	c.buf.mu.Lock()
	defer c.buf.mu.Unlock()
	return len(c.buf.records)
}

func (c *LogCapture) Clear() {
	c.buf.mu.Lock()
	c.buf.records = nil
	c.buf.mu.Unlock()
}

// TestingT is the part of testing.TB the assertion helpers need
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
}

// AssertLogContains fails t unless a record at level has a message containing substr
func AssertLogContains(t TestingT, c *LogCapture, level slog.Level, substr string) bool {
	t.Helper()
	var seen []string
	for _, r := range c.GetRecordsByLevel(level) {
		if strings.Contains(r.Message, substr) {
			return true
		}
		seen = append(seen, r.Message)
	}
	return assert.Failf(t, "log message not found", "no %s record contains %q; got %q", level, substr, seen)
}

// AssertLogAttr fails t unless some record carries key=value
func AssertLogAttr(t TestingT, c *LogCapture, key string, value any) bool {
	t.Helper()
	if c.ContainsAttr(key, value) {
		return true
	}
	return assert.Failf(t, "log attribute not found", "no record carries %s=%v", key, value)
}
