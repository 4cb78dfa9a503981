package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"licensebridge/internal/config"
)

// The daemon logs through one process-wide logger. Command line tools build their
// own with NewLogger so their stdout stays clean.
var (
	loggerMu sync.RWMutex
	logger   *slog.Logger
	logFile  *os.File
)

// redactedKeys are attribute keys whose values never reach the log output in clear
var redactedKeys = map[string]struct{}{
	"license_key": {},
	"token":       {},
}

// InitializeLogger builds the global JSON logger from cfg and installs it as the
// slog default. Later calls return the logger built by the first one.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if logger != nil {
		return logger, nil
	}

	out, file, err := logOutput(cfg)
	if err != nil {
		return nil, err
	}

	logger = slog.New(newTraceHandler(out, parseLogLevel(cfg.Level), true))
	logFile = file
	slog.SetDefault(logger)
	return logger, nil
}

// GetLogger returns the global logger, or the slog default before initialization
func GetLogger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// NewLogger returns a standalone JSON logger writing to w
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(newTraceHandler(w, parseLogLevel(level), false))
}

// CloseLogFile closes the log file opened for "file" or "both" output
func CloseLogFile() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ResetLoggerForTesting drops the global logger so the next InitializeLogger
// builds a fresh one
func ResetLoggerForTesting() {
	_ = CloseLogFile()
	loggerMu.Lock()
	logger = nil
	loggerMu.Unlock()
}

func logOutput(cfg config.LoggingConfig) (io.Writer, *os.File, error) {
	switch strings.ToLower(cfg.Output) {
	case "file", "both":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		if strings.EqualFold(cfg.Output, "both") {
			return io.MultiWriter(os.Stderr, file), file, nil
		}
		return file, file, nil
	default:
		return os.Stderr, nil, nil
	}
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return file, nil
}

// traceHandler adds the request trace id and the active span id to every record
type traceHandler struct {
	slog.Handler
}

func newTraceHandler(w io.Writer, level slog.Level, addSource bool) *traceHandler {
	return &traceHandler{Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource:   addSource,
		Level:       level,
		ReplaceAttr: redactAttr,
	})}
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID := GetTraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(slog.String("span_id", sc.SpanID().String()))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[a.Key]; ok && a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, MaskSecret(a.Value.String()))
	}
	return a
}

// MaskSecret keeps the first and last four characters of s. Values of eight
// characters or fewer are replaced entirely.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
