// Package batch implements size-bounded span batching.
//
// An [Accountant] measures the thrift-compact size of each entity. A [Buffer]
// tracks the running encoded size of the current accumulation against
// MaxSpanBytes and seals batches into a [Queue] as the ceiling is crossed.
// Flushing the queue is the caller's job (see internal/app).
//
// # Sealing order
//
// The buffer adds a span's size to the running total first and only then
// compares against the ceiling. The span that crosses the ceiling is sealed
// as the last member of the outgoing batch, and the running total is not
// reset at seal time, only when the queue is flushed. Once the total is over
// the ceiling every following span is therefore sealed on its own until the
// next flush. Changing this changes batch contents.
package batch
