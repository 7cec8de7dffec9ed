// Package logger is the process-wide structured logger. It wraps log/slog
// with a colored text format for terminals, a JSON format for collectors and
// request-scoped fields carried in the context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

// sink is where records are written.
type sink struct {
	w      io.Writer
	closer io.Closer // non-nil for files opened by Init
	color  bool
}

var (
	level  = new(slog.LevelVar)
	format atomic.Value // "text" or "json"

	mu      sync.Mutex
	out     = sink{w: os.Stdout, color: isTerminal(os.Stdout.Fd())}
	current atomic.Pointer[slog.Logger]
)

func init() {
	format.Store("text")
	rebuild()
}

// rebuild swaps in a logger for the current sink and format. The level is
// shared through the LevelVar, so level changes need no rebuild.
func rebuild() {
	mu.Lock()
	s := out
	mu.Unlock()

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if f, _ := format.Load().(string); f == "json" {
		h = slog.NewJSONHandler(s.w, opts)
	} else {
		h = newTextHandler(s.w, opts, s.color)
	}
	current.Store(slog.New(contextHandler{next: h}))
}

// setSink replaces the output and closes the previous log file, if any.
func setSink(s sink) {
	mu.Lock()
	prev := out
	out = s
	mu.Unlock()

	rebuild()
	if prev.closer != nil {
		_ = prev.closer.Close()
	}
}

// Init initializes the logger with the given configuration.
// Output can be "stdout", "stderr", or a file path appended to.
func Init(cfg Config) error {
	if cfg.Output != "" {
		switch strings.ToLower(cfg.Output) {
		case "stdout":
			setSink(sink{w: os.Stdout, color: isTerminal(os.Stdout.Fd())})
		case "stderr":
			setSink(sink{w: os.Stderr, color: isTerminal(os.Stderr.Fd())})
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
			}
			setSink(sink{w: f, closer: f})
		}
	}

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	return nil
}

// InitWithWriter sends logs to w. Used by tests.
func InitWithWriter(w io.Writer, lvl, fmtName string, enableColor bool) {
	setSink(sink{w: w, color: enableColor})
	if lvl != "" {
		SetLevel(lvl)
	}
	if fmtName != "" {
		SetFormat(fmtName)
	}
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR (any case) to a slog level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		level.Set(l)
	}
}

// SetFormat switches between text and json. Unknown names are ignored.
func SetFormat(name string) {
	name = strings.ToLower(name)
	if name != "text" && name != "json" {
		return
	}
	format.Store(name)
	rebuild()
}

func log(ctx context.Context, lvl slog.Level, msg string, args []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	l := current.Load()
	if !l.Enabled(ctx, lvl) {
		return
	}
	l.Log(ctx, lvl, msg, args...)
}

// Debug logs at debug level.
// Usage: Debug("message", "key1", value1, Store("v1"))
func Debug(msg string, args ...any) { log(context.Background(), slog.LevelDebug, msg, args) }

// Info logs at info level.
func Info(msg string, args ...any) { log(context.Background(), slog.LevelInfo, msg, args) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { log(context.Background(), slog.LevelWarn, msg, args) }

// Error logs at error level.
func Error(msg string, args ...any) { log(context.Background(), slog.LevelError, msg, args) }

// DebugCtx logs at debug level with the LogContext and active span of ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) { log(ctx, slog.LevelDebug, msg, args) }

// InfoCtx logs at info level with context fields.
func InfoCtx(ctx context.Context, msg string, args ...any) { log(ctx, slog.LevelInfo, msg, args) }

// WarnCtx logs at warn level with context fields.
func WarnCtx(ctx context.Context, msg string, args ...any) { log(ctx, slog.LevelWarn, msg, args) }

// ErrorCtx logs at error level with context fields.
func ErrorCtx(ctx context.Context, msg string, args ...any) { log(ctx, slog.LevelError, msg, args) }

// With returns a logger with pre-bound attributes.
func With(args ...any) *slog.Logger {
	return current.Load().With(args...)
}

// Duration returns the time since start in milliseconds.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
