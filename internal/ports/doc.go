// Package ports defines the interfaces that connect the batching core to its
// collaborators.
//
// # Port Interfaces
//
//   - [Measurer]: encodes an entity and reports its byte size
//   - [ThriftBuilder]: turns tracer records into Jaeger thrift structures
//   - [Sink] / [SinkFactory]: delivers one sealed batch per acquired sink
//   - [ContextSource]: yields tracer contexts to ship
//   - [Metrics]: counts drops, seals and delivery outcomes
//   - [Logger]: structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// The core packages (internal/batch, internal/app) depend only on these
// interfaces; internal/adapters and internal/metrics implement them.
package ports
