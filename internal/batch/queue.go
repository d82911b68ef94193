package batch

import "github.com/bft-labs/spanship/internal/domain"

// Queue holds sealed batches awaiting delivery, in seal order.
// It has no capacity limit; the buffer bounds each batch instead.
type Queue struct {
	batches []*domain.Batch
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a sealed batch.
func (q *Queue) Push(b *domain.Batch) {
	q.batches = append(q.batches, b)
}

// DrainAll returns every queued batch and empties the queue.
func (q *Queue) DrainAll() []*domain.Batch {
	drained := q.batches
	q.batches = nil
	return drained
}

// Len returns the number of queued batches.
func (q *Queue) Len() int {
	return len(q.batches)
}

// SpanCount returns the number of spans across all queued batches.
func (q *Queue) SpanCount() int {
	total := 0
	for _, b := range q.batches {
		total += b.SpanCount()
	}
	return total
}
