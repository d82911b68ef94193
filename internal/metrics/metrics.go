// Package metrics exposes batching and delivery counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/spanship/internal/domain"
	"github.com/bft-labs/spanship/internal/ports"
)

const namespace = "spanship"

// Metrics holds all Prometheus metrics for the exporter.
type Metrics struct {
	SpansAppendedTotal    prometheus.Counter
	SpansDroppedTotal     *prometheus.CounterVec
	EncodingErrorsTotal   prometheus.Counter
	BatchesSealedTotal    prometheus.Counter
	BatchesDeliveredTotal *prometheus.CounterVec
	DeliveryErrorsTotal   *prometheus.CounterVec
	SpansFlushedTotal     *prometheus.CounterVec
	BatchBytes            prometheus.Histogram
}

var _ ports.Metrics = (*Metrics)(nil)

// New creates and registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SpansAppendedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spans_appended_total",
			Help:      "Spans accepted into a pending batch",
		}),
		SpansDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spans_dropped_total",
			Help:      "Spans dropped before batching, by reason",
		}, []string{"reason"}),
		EncodingErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoding_errors_total",
			Help:      "Spans or process blocks that failed thrift encoding",
		}),
		BatchesSealedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_sealed_total",
			Help:      "Batches sealed and queued for delivery",
		}),
		BatchesDeliveredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_delivered_total",
			Help:      "Batches accepted by a sink",
		}, []string{"sink"}),
		DeliveryErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_errors_total",
			Help:      "Batches a sink failed to accept",
		}, []string{"sink"}),
		SpansFlushedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spans_flushed_total",
			Help:      "Spans handed to a sink during flush, by result",
		}, []string{"result"}),
		BatchBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_bytes",
			Help:      "Encoded size of sealed batches in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}),
	}

	reg.MustRegister(
		m.SpansAppendedTotal,
		m.SpansDroppedTotal,
		m.EncodingErrorsTotal,
		m.BatchesSealedTotal,
		m.BatchesDeliveredTotal,
		m.DeliveryErrorsTotal,
		m.SpansFlushedTotal,
		m.BatchBytes,
	)

	// Pre-create label values so the series exist before the first event.
	m.SpansDroppedTotal.WithLabelValues(ports.DropOversize)
	m.SpansDroppedTotal.WithLabelValues(ports.DropEncoding)
	m.SpansDroppedTotal.WithLabelValues(ports.DropNil)
	m.SpansFlushedTotal.WithLabelValues("delivered")
	m.SpansFlushedTotal.WithLabelValues("failed")

	return m
}

func (m *Metrics) SpansAppended(n int) {
	m.SpansAppendedTotal.Add(float64(n))
}

func (m *Metrics) SpanDropped(reason string) {
	m.SpansDroppedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) EncodingError() {
	m.EncodingErrorsTotal.Inc()
}

func (m *Metrics) BatchSealed(sizeBytes int) {
	m.BatchesSealedTotal.Inc()
	m.BatchBytes.Observe(float64(sizeBytes))
}

func (m *Metrics) BatchDelivered(sink string, _ int) {
	m.BatchesDeliveredTotal.WithLabelValues(sink).Inc()
}

func (m *Metrics) DeliveryFailed(sink string, _ int) {
	m.DeliveryErrorsTotal.WithLabelValues(sink).Inc()
}

func (m *Metrics) Flushed(result domain.FlushResult) {
	m.SpansFlushedTotal.WithLabelValues("delivered").Add(float64(result.Delivered))
	m.SpansFlushedTotal.WithLabelValues("failed").Add(float64(result.Failed))
}
