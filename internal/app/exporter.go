package app

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/bft-labs/spanship/internal/batch"
	"github.com/bft-labs/spanship/internal/domain"
	"github.com/bft-labs/spanship/internal/ports"
	"github.com/bft-labs/spanship/pkg/log"
)

// ExporterConfig configures an Exporter.
type ExporterConfig struct {
	Batch           batch.Config
	DeliveryTimeout time.Duration

	// FlushOnSeal flushes as soon as a span overflows the current batch,
	// before the rest of the context is appended.
	FlushOnSeal bool
}

// Exporter is the tracer-facing entry point: it batches appended contexts
// and flushes them to a sink. Append and Flush are serialized.
type Exporter struct {
	mu      sync.Mutex
	buffer  *batch.Buffer
	flusher *Flusher
	logger  ports.Logger
}

// NewExporter wires a buffer and flusher around factory.
// metrics, logger and clock may be nil.
func NewExporter(
	cfg ExporterConfig,
	measurer ports.Measurer,
	builder ports.ThriftBuilder,
	factory ports.SinkFactory,
	metrics ports.Metrics,
	logger ports.Logger,
	clock clockz.Clock,
) (*Exporter, error) {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if clock == nil {
		clock = clockz.RealClock
	}
	logger = log.OrNoop(logger)

	buffer, err := batch.NewBuffer(cfg.Batch, measurer, builder, metrics, logger)
	if err != nil {
		return nil, err
	}

	e := &Exporter{
		buffer:  buffer,
		flusher: NewFlusher(buffer, factory, metrics, logger, clock, cfg.DeliveryTimeout),
		logger:  logger,
	}

	if cfg.FlushOnSeal {
		buffer.OnSeal(func(ctx context.Context) {
			// Failures are already logged and counted by the flusher.
			_, _ = e.flusher.Flush(ctx)
		})
	}

	return e, nil
}

// Append adds the spans of tc to the pending batch. It always returns true:
// spans that cannot be encoded or exceed the packet ceiling are dropped and
// counted instead of being reported to the tracer.
func (e *Exporter) Append(ctx context.Context, tc *domain.TracerContext) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.buffer.Append(ctx, tc); err != nil {
		e.logger.Warn("append failed", ports.Err(err))
	}
	return true
}

// Flush delivers all sealed batches and returns the number of spans the sink
// accepted. The error joins every failed delivery.
func (e *Exporter) Flush(ctx context.Context) (int, error) {
	result, err := e.FlushReport(ctx)
	return result.Delivered, err
}

// FlushReport is Flush with the full per-flush accounting.
func (e *Exporter) FlushReport(ctx context.Context) (domain.FlushResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flusher.Flush(ctx)
}

// Close flushes whatever is still queued. The exporter stays usable.
func (e *Exporter) Close(ctx context.Context) error {
	_, err := e.Flush(ctx)
	return err
}

// Dropped returns the number of spans dropped before batching.
func (e *Exporter) Dropped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Dropped()
}

// RunningSize returns the encoded size of the process block plus pending spans.
func (e *Exporter) RunningSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.RunningSize()
}

// Queued returns the number of sealed batches awaiting flush.
func (e *Exporter) Queued() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Queue().Len()
}
