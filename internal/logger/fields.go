package logger

import (
	"log/slog"
	"time"
)

// Standard field keys. Using the same key everywhere keeps log queries simple.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Request
	KeyRequestID  = "request_id"
	KeyOperation  = "op"
	KeyRemoteAddr = "remote_addr"
	KeyDurationMs = "duration_ms"

	// Stores
	KeyStore    = "store"
	KeyKind     = "kind"
	KeyCategory = "category"
	KeyState    = "state"
	KeyStores   = "stores"

	// Vectors
	KeyVectorID  = "vector_id"
	KeyDimension = "dimension"
	KeyK         = "k"
	KeyCount     = "count"
	KeyMetric    = "metric"

	// Errors
	KeyError     = "error"
	KeyErrorCode = "error_code"
)

// ----------------------------------------------------------------------------
// Attribute helpers
// ----------------------------------------------------------------------------

func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }
func SpanID(id string) slog.Attr  { return slog.String(KeySpanID, id) }

func RequestID(id string) slog.Attr { return slog.String(KeyRequestID, id) }

// Operation is the orchestrator operation name (add_vector, search_vector, ...).
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }

func Store(name string) slog.Attr    { return slog.String(KeyStore, name) }
func Kind(kind string) slog.Attr     { return slog.String(KeyKind, kind) }
func Category(c string) slog.Attr    { return slog.String(KeyCategory, c) }
func State(state string) slog.Attr   { return slog.String(KeyState, state) }
func Stores(names []string) slog.Attr { return slog.Any(KeyStores, names) }

func VectorID(id string) slog.Attr   { return slog.String(KeyVectorID, id) }
func Dimension(n int) slog.Attr      { return slog.Int(KeyDimension, n) }
func K(k int) slog.Attr              { return slog.Int(KeyK, k) }
func Count(n int) slog.Attr          { return slog.Int(KeyCount, n) }
func Metric(name string) slog.Attr   { return slog.String(KeyMetric, name) }

// DurationMs records a duration in fractional milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Elapsed records the time since start in milliseconds.
func Elapsed(start time.Time) slog.Attr { return DurationMs(Duration(start)) }

// Err returns an error attribute, or an empty attribute (dropped by handlers)
// for a nil error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func ErrorCode(code string) slog.Attr { return slog.String(KeyErrorCode, code) }
