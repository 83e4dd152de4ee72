// Package logger configures the application slog logger and carries request scoped loggers in
// request contexts.
//
// dev and test environments log coloured text through tint; prod and staging log JSON.
// Output can additionally be written to a size rotated file.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

type options struct {
	logFile    string
	maxSizeMB  int
	maxBackups int
	output     io.Writer
}

// Option configures InitLogger.
type Option func(*options)

// WithLogFile also writes logs, as JSON, to path. The file is rotated when it reaches maxSizeMB
// and at most maxBackups old files are kept.
func WithLogFile(path string, maxSizeMB, maxBackups int) Option {
	return func(o *options) {
		o.logFile = path
		o.maxSizeMB = maxSizeMB
		o.maxBackups = maxBackups
	}
}

// WithOutput replaces stdout as the console destination.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// InitLogger creates the application logger and installs it as the slog default.
func InitLogger(level slog.Level, environment string, opts ...Option) *slog.Logger {
	o := options{output: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	var console slog.Handler
	switch environment {
	case "prod", "staging":
		console = slog.NewJSONHandler(o.output, &slog.HandlerOptions{Level: level})
	default:
		console = tint.NewHandler(o.output, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}

	handler := console
	if o.logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    o.maxSizeMB,
			MaxBackups: o.maxBackups,
			Compress:   true,
		}
		handler = &fanoutHandler{handlers: []slog.Handler{
			console,
			slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: level}),
		}}
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// ParseLogLevel converts a LOG_LEVEL value to a slog level. Unknown values map to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// fanoutHandler sends every record to all of its handlers.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: handlers}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &fanoutHandler{handlers: handlers}
}

type contextKey int

const (
	loggerKey contextKey = iota
	attrsKey
)

// requestAttrs collects attributes for the final request log line.
type requestAttrs struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

// ContextWithLogger returns a context carrying l and an empty attribute collector.
func ContextWithLogger(ctx context.Context, l *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, loggerKey, l)
	return context.WithValue(ctx, attrsKey, &requestAttrs{})
}

// ContextRequestLogger returns the request logger stored in ctx, or the default logger.
func ContextRequestLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// ContextWithLogAttrs adds attributes to the final request log line. It does nothing when ctx was
// not created by ContextWithLogger.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	ra, ok := ctx.Value(attrsKey).(*requestAttrs)
	if !ok {
		return
	}
	ra.mu.Lock()
	ra.attrs = append(ra.attrs, attrs...)
	ra.mu.Unlock()
}

// contextLogAttrs returns the attributes collected for the request.
func contextLogAttrs(ctx context.Context) []slog.Attr {
	ra, ok := ctx.Value(attrsKey).(*requestAttrs)
	if !ok {
		return nil
	}
	ra.mu.Lock()
	defer ra.mu.Unlock()
	return append([]slog.Attr(nil), ra.attrs...)
}
