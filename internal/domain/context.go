package domain

// TracerContext is one emission from a tracer: the process identity shared by
// all of its spans and the spans finished since the last emission.
//
// Process is filled in by the batch buffer on the first append and reused for
// the lifetime of the context, so the process block is measured only once.
type TracerContext struct {
	ServiceName string            `json:"service_name"`
	Tags        map[string]string `json:"tags,omitempty"`
	Spans       []*Span           `json:"spans"`

	Process *ProcessMetadata `json:"-"`
}
