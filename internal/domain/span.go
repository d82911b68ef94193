package domain

import "time"

// Span is a finished span record handed to the exporter by a tracer.
// The exporter never mutates it.
type Span struct {
	// TraceIDHigh and TraceIDLow form the 128-bit trace id
	TraceIDHigh uint64 `json:"trace_id_high,omitempty"`
	TraceIDLow  uint64 `json:"trace_id_low"`

	SpanID       uint64 `json:"span_id"`
	ParentSpanID uint64 `json:"parent_span_id,omitempty"`

	OperationName string `json:"operation_name"`

	// Flags carries the sampled/debug bits
	Flags int32 `json:"flags,omitempty"`

	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`

	// Tags values may be string, bool, integer, float or []byte
	Tags map[string]any `json:"tags,omitempty"`

	Logs       []LogRecord `json:"logs,omitempty"`
	References []Reference `json:"references,omitempty"`
}

// LogRecord is a timestamped set of fields attached to a span.
type LogRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields"`
}

// ReferenceType describes the causal relationship of a span reference.
type ReferenceType string

const (
	ChildOf     ReferenceType = "child_of"
	FollowsFrom ReferenceType = "follows_from"
)

// Reference points at another span.
type Reference struct {
	Type        ReferenceType `json:"type"`
	TraceIDHigh uint64        `json:"trace_id_high,omitempty"`
	TraceIDLow  uint64        `json:"trace_id_low"`
	SpanID      uint64        `json:"span_id"`
}
