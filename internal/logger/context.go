package logger

import (
	"context"
	"log/slog"
	"time"
)

type logContextKey struct{}

// LogContext carries request-scoped fields. The *Ctx functions, and any
// handler built by Init, emit them ahead of the record's own attributes.
// A LogContext is never mutated once attached; the With methods copy.
type LogContext struct {
	TraceID    string
	SpanID     string
	RequestID  string
	Operation  string
	Store      string
	RemoteAddr string
	StartTime  time.Time
}

func NewLogContext(requestID string) *LogContext {
	return &LogContext{RequestID: requestID, StartTime: time.Now()}
}

func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey{}, lc)
}

// FromContext returns the LogContext attached to ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey{}).(*LogContext)
	return lc
}

// Clone returns a shallow copy; nil stays nil.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// with copies lc and applies set to the copy. Methods on a nil LogContext
// return nil so callers can chain without checking.
func (lc *LogContext) with(set func(*LogContext)) *LogContext {
	c := lc.Clone()
	if c != nil {
		set(c)
	}
	return c
}

func (lc *LogContext) WithOperation(op string) *LogContext {
	return lc.with(func(c *LogContext) { c.Operation = op })
}

func (lc *LogContext) WithStore(name string) *LogContext {
	return lc.with(func(c *LogContext) { c.Store = name })
}

func (lc *LogContext) WithRemoteAddr(addr string) *LogContext {
	return lc.with(func(c *LogContext) { c.RemoteAddr = addr })
}

func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	return lc.with(func(c *LogContext) { c.TraceID, c.SpanID = traceID, spanID })
}

// DurationMs is the time since StartTime in milliseconds, or 0 when unset.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000
}

// attrs returns the non-empty request fields, trace ids excluded.
func (lc *LogContext) attrs() []slog.Attr {
	if lc == nil {
		return nil
	}
	var out []slog.Attr
	for _, f := range []struct {
		v    string
		attr func(string) slog.Attr
	}{
		{lc.RequestID, RequestID},
		{lc.Operation, Operation},
		{lc.Store, Store},
		{lc.RemoteAddr, RemoteAddr},
	} {
		if f.v != "" {
			out = append(out, f.attr(f.v))
		}
	}
	return out
}
