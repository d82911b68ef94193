package ports

import "github.com/bft-labs/spanship/internal/domain"

// Drop reasons reported to Metrics.SpanDropped.
const (
	DropOversize = "oversize"
	DropEncoding = "encoding"
	DropNil      = "nil"
)

// Metrics records batching and delivery outcomes.
type Metrics interface {
	SpansAppended(n int)
	SpanDropped(reason string)
	EncodingError()
	BatchSealed(sizeBytes int)
	BatchDelivered(sink string, spans int)
	DeliveryFailed(sink string, spans int)
	Flushed(result domain.FlushResult)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) SpansAppended(int)          {}
func (NopMetrics) SpanDropped(string)         {}
func (NopMetrics) EncodingError()             {}
func (NopMetrics) BatchSealed(int)            {}
func (NopMetrics) BatchDelivered(string, int) {}
func (NopMetrics) DeliveryFailed(string, int) {}
func (NopMetrics) Flushed(domain.FlushResult) {}
