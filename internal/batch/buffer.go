package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/uber/jaeger-client-go/utils"

	"github.com/bft-labs/spanship/internal/domain"
	"github.com/bft-labs/spanship/internal/ports"
	"github.com/bft-labs/spanship/pkg/log"
)

const (
	// DefaultMaxPacketSize is the Jaeger agent's UDP packet ceiling.
	DefaultMaxPacketSize = utils.UDPPacketMaxLength

	// DefaultEmitBatchOverhead is the envelope cost of one emitBatch call.
	DefaultEmitBatchOverhead = 30
)

// Config sizes a Buffer. Zero values select the defaults.
type Config struct {
	MaxPacketSize     int
	EmitBatchOverhead int
}

// MaxSpanBytes returns the per-batch ceiling, MaxPacketSize - EmitBatchOverhead.
func (c Config) MaxSpanBytes() (int, error) {
	packet := c.MaxPacketSize
	if packet == 0 {
		packet = DefaultMaxPacketSize
	}
	overhead := c.EmitBatchOverhead
	if overhead == 0 {
		overhead = DefaultEmitBatchOverhead
	}
	if overhead < 0 {
		return 0, fmt.Errorf("%w: emit batch overhead %d is negative", domain.ErrInvalidConfig, overhead)
	}
	if packet <= overhead {
		return 0, fmt.Errorf("%w: max packet size %d must exceed emit batch overhead %d",
			domain.ErrInvalidConfig, packet, overhead)
	}
	return packet - overhead, nil
}

// Buffer accumulates encoded spans and seals them into size-bounded batches.
// It is not safe for concurrent use.
type Buffer struct {
	measurer ports.Measurer
	builder  ports.ThriftBuilder
	metrics  ports.Metrics
	logger   ports.Logger
	queue    *Queue

	maxSpanBytes int
	runningSize  int
	baselineSize int
	process      *domain.ProcessMetadata
	pending      []domain.SpanEncoding
	dropped      int

	onSeal func(ctx context.Context)
}

// NewBuffer creates a buffer. metrics and logger may be nil.
func NewBuffer(
	cfg Config,
	measurer ports.Measurer,
	builder ports.ThriftBuilder,
	metrics ports.Metrics,
	logger ports.Logger,
) (*Buffer, error) {
	maxSpanBytes, err := cfg.MaxSpanBytes()
	if err != nil {
		return nil, err
	}
	if measurer == nil || builder == nil {
		return nil, errors.New("batch: measurer and builder are required")
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &Buffer{
		measurer:     measurer,
		builder:      builder,
		metrics:      metrics,
		logger:       log.OrNoop(logger),
		queue:        NewQueue(),
		maxSpanBytes: maxSpanBytes,
	}, nil
}

// Append encodes the spans of tc and applies the capacity policy to each.
// Every call ends by sealing whatever is pending, so the queue always holds
// at least one batch afterwards, even when tc has no spans.
//
// It returns the number of batches sealed by this call. A value above one
// means a span crossed the ceiling.
func (b *Buffer) Append(ctx context.Context, tc *domain.TracerContext) (int, error) {
	if tc == nil {
		return 0, errors.New("batch: nil tracer context")
	}
	if err := b.ensureProcess(ctx, tc); err != nil {
		return 0, err
	}

	if b.runningSize == b.baselineSize {
		b.pending = b.pending[:0]
	}

	sealed := 0
	for _, span := range tc.Spans {
		if span == nil {
			b.dropped++
			b.metrics.SpanDropped(ports.DropNil)
			b.logger.Debug("dropping span: nil")
			continue
		}

		enc, err := b.encodeSpan(ctx, span)
		if err != nil {
			b.dropped++
			b.metrics.EncodingError()
			b.metrics.SpanDropped(ports.DropEncoding)
			b.logger.Warn("dropping span: encoding failed",
				ports.String("operation", span.OperationName),
				ports.Err(err),
			)
			continue
		}

		if enc.Size > b.maxSpanBytes {
			b.dropped++
			b.metrics.SpanDropped(ports.DropOversize)
			b.logger.Debug("dropping span: larger than max span bytes",
				ports.String("operation", span.OperationName),
				ports.Int("size", enc.Size),
				ports.Int("max_span_bytes", b.maxSpanBytes),
				ports.Err(domain.ErrOversizeSpan),
			)
			continue
		}

		b.metrics.SpansAppended(1)
		b.runningSize += enc.Size
		b.pending = append(b.pending, enc)

		if b.runningSize > b.maxSpanBytes {
			b.seal()
			sealed++
			if b.onSeal != nil {
				b.onSeal(ctx)
			}
		}
	}

	b.seal()
	return sealed + 1, nil
}

// ensureProcess builds and measures the process block on first use of tc and
// makes it the baseline of the buffer.
func (b *Buffer) ensureProcess(ctx context.Context, tc *domain.TracerContext) error {
	if tc.Process == nil {
		process := b.builder.BuildProcess(tc)
		size, encoded, err := b.measurer.Measure(ctx, process)
		if err != nil {
			b.metrics.EncodingError()
			return fmt.Errorf("measure process: %w", err)
		}
		tc.Process = &domain.ProcessMetadata{Thrift: process, Encoded: encoded, Size: size}
	}

	if tc.Process != b.process {
		b.process = tc.Process
		b.baselineSize = tc.Process.Size
		b.runningSize = tc.Process.Size
	}
	return nil
}

func (b *Buffer) encodeSpan(ctx context.Context, span *domain.Span) (domain.SpanEncoding, error) {
	thriftSpan := b.builder.BuildSpan(span)
	size, encoded, err := b.measurer.Measure(ctx, thriftSpan)
	if err != nil {
		return domain.SpanEncoding{}, err
	}
	return domain.SpanEncoding{Thrift: thriftSpan, Encoded: encoded, Size: size}, nil
}

func (b *Buffer) seal() {
	sealed := domain.NewBatch(b.process, b.pending)
	b.queue.Push(sealed)
	b.pending = b.pending[:0]
	b.metrics.BatchSealed(sealed.Size())
}

// OnSeal registers fn to run right after a span pushes the running size over
// the ceiling and the batch is sealed. The trailing seal at the end of Append
// does not trigger it. fn may call Reset.
func (b *Buffer) OnSeal(fn func(ctx context.Context)) {
	b.onSeal = fn
}

// Reset returns the running size to the process baseline and empties the
// queue. The process block stays cached.
func (b *Buffer) Reset() {
	b.runningSize = b.baselineSize
	b.queue.DrainAll()
}

// Queue returns the queue of sealed batches.
func (b *Buffer) Queue() *Queue {
	return b.queue
}

// RunningSize returns the current running encoded size.
func (b *Buffer) RunningSize() int {
	return b.runningSize
}

// BaselineSize returns the encoded size of the cached process block.
func (b *Buffer) BaselineSize() int {
	return b.baselineSize
}

// MaxSpanBytes returns the per-batch ceiling.
func (b *Buffer) MaxSpanBytes() int {
	return b.maxSpanBytes
}

// Dropped returns the number of spans dropped since the buffer was created.
func (b *Buffer) Dropped() int {
	return b.dropped
}

// Pending returns the number of spans accumulated but not yet sealed.
func (b *Buffer) Pending() int {
	return len(b.pending)
}
