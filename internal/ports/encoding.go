package ports

import (
	"context"

	"github.com/uber/jaeger-client-go/thrift"
	"github.com/uber/jaeger-client-go/thrift-gen/jaeger"

	"github.com/bft-labs/spanship/internal/domain"
)

// Measurer encodes an entity and returns its encoded size and bytes.
// Implementations reuse an internal buffer and are not safe for concurrent use.
type Measurer interface {
	Measure(ctx context.Context, entity thrift.TStruct) (int, []byte, error)
}

// ThriftBuilder converts tracer records into Jaeger thrift structures.
type ThriftBuilder interface {
	// BuildProcess builds the process block for a tracer context.
	BuildProcess(tc *domain.TracerContext) *jaeger.Process

	// BuildSpan builds the thrift span for a finished span record.
	BuildSpan(span *domain.Span) *jaeger.Span
}
