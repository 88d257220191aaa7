// Package tracer provides a lightweight tracing abstraction for the
// settlement services.
//
// The interface avoids a direct OpenTelemetry dependency in the service
// packages while still letting production deployments emit distributed
// traces. Purchases fan out to member registries, so the spans here are
// what ties a settlement to the remote quote calls it caused.
//
// Implementations:
//   - NoopTracer: For tests (zero overhead)
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"math"
	"strconv"
	"time"
)

// Span represents an active trace span.
// Spans track the execution of a single operation and can record errors and events.
type Span interface {
	// End completes the span, recording any error that occurred.
	// If err is non-nil, the span is marked as failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	// SetAttributes adds key-value pairs to the span.
	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans for distributed tracing.
// Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span with the given name and attributes.
	// The returned context contains the new span and should be passed to child operations.
	// The span must be ended by calling Span.End().
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Uint64 creates an attribute for amounts and identifiers. Values above
// the int64 range are rendered as strings to avoid silent truncation.
func Uint64(key string, value uint64) Attribute {
	if value > math.MaxInt64 {
		return Attribute{Key: key, Value: strconv.FormatUint(value, 10)}
	}
	return Attribute{Key: key, Value: int64(value)}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names used by the settlement services.
const (
	SpanPoolPurchase  = "pool.purchase"
	SpanMemberQueries = "pool.member_queries"
	SpanRegistryQuote = "registry.quote"
	SpanServiceUse    = "ledger.use_service"
)

// Attribute keys used by the settlement services.
const (
	AttrPoolID      = "pool_id"
	AttrServiceID   = "service_id"
	AttrRegistry    = "registry"
	AttrBuyer       = "buyer"
	AttrCharged     = "charged"
	AttrMemberCount = "member_count"
	AttrStrict      = "strict"
)

// Event names used by the settlement services.
const (
	EventRefundIssued  = "refund.issued"
	EventAccessGranted = "access.granted"
)
