package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for orchestrator spans.
const (
	AttrRequestID = "dittovec.request_id"
	AttrOperation = "dittovec.operation"
	AttrTargets   = "dittovec.targets"
	AttrStores    = "dittovec.store_count"
	AttrK         = "dittovec.k"
	AttrDimension = "dittovec.dimension"
	AttrFederated = "dittovec.federated"

	AttrStoreName     = "store.name"
	AttrStoreKind     = "store.kind"
	AttrStoreCategory = "store.category"
	AttrStoreState    = "store.state"
	AttrFullScan      = "store.full_scan"

	AttrErrorCode = "error.code"
	AttrResults   = "result.count"
)

// Span names.
const (
	SpanExecute   = "orchestrator.execute"
	SpanFederated = "orchestrator.federated_search"
	SpanInit      = "connection.init"
	SpanProbe     = "probe.run"
)

func RequestID(id string) attribute.KeyValue    { return attribute.String(AttrRequestID, id) }
func Operation(op string) attribute.KeyValue    { return attribute.String(AttrOperation, op) }
func Targets(names []string) attribute.KeyValue { return attribute.StringSlice(AttrTargets, names) }
func StoreCount(n int) attribute.KeyValue       { return attribute.Int(AttrStores, n) }
func K(k int) attribute.KeyValue                { return attribute.Int(AttrK, k) }
func Dimension(n int) attribute.KeyValue        { return attribute.Int(AttrDimension, n) }
func Federated(b bool) attribute.KeyValue       { return attribute.Bool(AttrFederated, b) }

func StoreName(name string) attribute.KeyValue { return attribute.String(AttrStoreName, name) }
func StoreKind(kind string) attribute.KeyValue { return attribute.String(AttrStoreKind, kind) }
func StoreCategory(c string) attribute.KeyValue {
	return attribute.String(AttrStoreCategory, c)
}
func StoreState(s string) attribute.KeyValue { return attribute.String(AttrStoreState, s) }
func FullScan(b bool) attribute.KeyValue     { return attribute.Bool(AttrFullScan, b) }

func ErrorCode(code string) attribute.KeyValue { return attribute.String(AttrErrorCode, code) }
func Results(n int) attribute.KeyValue         { return attribute.Int(AttrResults, n) }

// StartExecuteSpan starts the root span of one dispatched request.
func StartExecuteSpan(ctx context.Context, op, requestID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Operation(op), RequestID(requestID)}, attrs...)
	return StartSpan(ctx, SpanExecute, trace.WithAttributes(all...))
}

// StartStoreSpan starts the span of one backend call. The span is named
// "store.<op>", e.g. store.search_vector.
func StartStoreSpan(ctx context.Context, op, storeName, kind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{StoreName(storeName), StoreKind(kind)}, attrs...)
	return StartSpan(ctx, "store."+strings.ToLower(op), trace.WithAttributes(all...))
}

// StartInitSpan starts the span of one backend open.
func StartInitSpan(ctx context.Context, storeName, kind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{StoreName(storeName), StoreKind(kind)}, attrs...)
	return StartSpan(ctx, SpanInit, trace.WithAttributes(all...))
}
