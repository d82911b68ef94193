package state

import "time"

// State is the cumulative shipping record persisted between runs.
// It is saved after every flush.
type State struct {
	// SpansFlushed counts spans a sink accepted
	SpansFlushed uint64 `json:"spans_flushed"`

	// SpansFailed counts spans in batches a sink rejected
	SpansFailed uint64 `json:"spans_failed"`

	// SpansDropped counts spans dropped before batching (oversize or unencodable)
	SpansDropped uint64 `json:"spans_dropped"`

	// BatchesFlushed counts batches handed to a sink, delivered or not
	BatchesFlushed uint64 `json:"batches_flushed"`

	// LastFlushAt is the time of the last flush that sent anything
	LastFlushAt time.Time `json:"last_flush_at"`

	// LastFile is the last spool file retired after shipping
	LastFile string `json:"last_file,omitempty"`
}

// IsEmpty returns true if nothing was ever flushed.
func (s State) IsEmpty() bool {
	return s.BatchesFlushed == 0 && s.LastFlushAt.IsZero()
}

// RecordFlush folds the outcome of one flush into the state.
func (s *State) RecordFlush(batches, delivered, failed int, at time.Time) {
	s.BatchesFlushed += uint64(batches)
	s.SpansFlushed += uint64(delivered)
	s.SpansFailed += uint64(failed)
	s.LastFlushAt = at
}
