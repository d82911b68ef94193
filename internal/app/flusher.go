package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/bft-labs/spanship/internal/batch"
	"github.com/bft-labs/spanship/internal/domain"
	"github.com/bft-labs/spanship/internal/ports"
)

// Flusher delivers every queued batch to a sink and resets the buffer.
type Flusher struct {
	buffer  *batch.Buffer
	factory ports.SinkFactory
	metrics ports.Metrics
	logger  ports.Logger
	clock   clockz.Clock
	timeout time.Duration
}

// NewFlusher creates a flusher for buffer. A zero timeout leaves delivery
// bounded only by the caller's context.
func NewFlusher(
	buffer *batch.Buffer,
	factory ports.SinkFactory,
	metrics ports.Metrics,
	logger ports.Logger,
	clock clockz.Clock,
	timeout time.Duration,
) *Flusher {
	return &Flusher{
		buffer:  buffer,
		factory: factory,
		metrics: metrics,
		logger:  logger,
		clock:   clock,
		timeout: timeout,
	}
}

// Flush drains the queue and hands each batch to a freshly opened sink, in
// seal order. A failed batch is counted and reported but does not stop the
// remaining ones. The buffer is reset afterwards whatever the outcome.
func (f *Flusher) Flush(ctx context.Context) (domain.FlushResult, error) {
	queue := f.buffer.Queue()
	if queue.Len() == 0 {
		return domain.FlushResult{}, nil
	}

	start := f.clock.Now()
	batches := queue.DrainAll()
	sinkName := f.factory.Name()

	var result domain.FlushResult
	var errs []error

	for i, b := range batches {
		spans := b.SpanCount()
		result.Batches++
		result.Attempted += spans

		if err := f.deliver(ctx, b); err != nil {
			result.Failed += spans
			f.metrics.DeliveryFailed(sinkName, spans)
			f.logger.Warn("batch delivery failed",
				ports.String("sink", sinkName),
				ports.Int("batch", i),
				ports.Int("spans", spans),
				ports.Err(err),
			)
			errs = append(errs, fmt.Errorf("batch %d: %w: %w", i, domain.ErrDelivery, err))
			continue
		}

		result.Delivered += spans
		f.metrics.BatchDelivered(sinkName, spans)
	}

	f.buffer.Reset()
	f.metrics.Flushed(result)

	f.logger.Info("flushed",
		ports.String("sink", sinkName),
		ports.Int("batches", result.Batches),
		ports.Int("delivered", result.Delivered),
		ports.Int("failed", result.Failed),
		ports.Duration("duration", f.clock.Since(start)),
	)

	return result, errors.Join(errs...)
}

// deliver acquires a sink for one batch and always releases it.
func (f *Flusher) deliver(ctx context.Context, b *domain.Batch) (err error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()

	sink, err := f.factory.Open(ctx)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			f.logger.Warn("close sink", ports.String("sink", f.factory.Name()), ports.Err(cerr))
		}
	}()

	return sink.Deliver(ctx, b)
}
