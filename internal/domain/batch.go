package domain

import "github.com/uber/jaeger-client-go/thrift-gen/jaeger"

// ProcessMetadata is the encoded process block of a tracer context.
// Its size is the baseline cost of every batch.
type ProcessMetadata struct {
	Thrift  *jaeger.Process
	Encoded []byte
	Size    int
}

// SpanEncoding is one span after thrift encoding.
type SpanEncoding struct {
	Thrift  *jaeger.Span
	Encoded []byte
	Size    int
}

// Batch is a sealed group of span encodings ready for delivery.
// A batch is never modified after it is sealed.
type Batch struct {
	Process *ProcessMetadata
	Spans   []SpanEncoding
}

// NewBatch seals process and spans into a batch. The span slice is copied so
// the caller may reuse its backing array.
func NewBatch(process *ProcessMetadata, spans []SpanEncoding) *Batch {
	sealed := make([]SpanEncoding, len(spans))
	copy(sealed, spans)
	return &Batch{Process: process, Spans: sealed}
}

// SpanCount returns the number of spans in the batch.
func (b *Batch) SpanCount() int {
	return len(b.Spans)
}

// Empty returns true if the batch has no spans.
func (b *Batch) Empty() bool {
	return len(b.Spans) == 0
}

// SpanBytes returns the encoded size of the spans alone.
func (b *Batch) SpanBytes() int {
	total := 0
	for _, s := range b.Spans {
		total += s.Size
	}
	return total
}

// Size returns the encoded size of the process block plus all spans.
func (b *Batch) Size() int {
	total := b.SpanBytes()
	if b.Process != nil {
		total += b.Process.Size
	}
	return total
}

// Thrift returns the batch as a jaeger thrift Batch for transports that
// re-serialize it.
func (b *Batch) Thrift() *jaeger.Batch {
	spans := make([]*jaeger.Span, len(b.Spans))
	for i, s := range b.Spans {
		spans[i] = s.Thrift
	}
	var process *jaeger.Process
	if b.Process != nil {
		process = b.Process.Thrift
	}
	return &jaeger.Batch{Process: process, Spans: spans}
}
