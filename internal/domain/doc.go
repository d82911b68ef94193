// Package domain contains the core entities and value objects for spanship.
//
// This package is the innermost layer of the exporter. It holds no logging,
// transport or filesystem concerns, only the records that flow through the
// batching pipeline and the rules attached to them.
//
// # Entities
//
//   - [TracerContext]: one emission from a tracer (process identity + finished spans)
//   - [Span]: a finished span record as produced by the tracing collaborator
//   - [ProcessMetadata]: the cached, encoded process block shared by every batch
//   - [SpanEncoding]: one span after thrift encoding, with its byte size
//   - [Batch]: a sealed group of span encodings plus process metadata
//   - [FlushResult]: the outcome of one flush cycle
//
// Thrift structures come from the Jaeger thrift model; they are data, not
// transport, so the domain is allowed to carry them.
package domain
