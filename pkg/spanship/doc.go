// Package spanship provides an embeddable Jaeger span exporter.
//
// Spanship encodes finished spans with the thrift compact protocol, packs
// them into batches that fit a single emitBatch packet and delivers each
// batch to a sink: the Jaeger agent over UDP, a collector over HTTP, or
// hour-bucketed trace log files.
//
// # Basic Usage
//
//	s, err := spanship.New(spanship.Config{AgentHostPort: "jaeger-agent:6831"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s.Append(ctx, &spanship.TracerContext{ServiceName: "checkout", Spans: spans})
//	if _, err := s.Flush(ctx); err != nil {
//	    log.Printf("flush: %v", err)
//	}
//
// # Spool Shipping
//
// With Config.SpoolDir set, [Spanship.Start] runs a background loop that
// reads newline-delimited JSON tracer contexts from *.ndjson files, flushes
// them and renames each shipped file to *.done. Producers should write to a
// temporary name and rename into place. Running totals are kept in
// status.json under Config.StateDir.
//
// # Batch Sizing
//
// The encoded size of a batch is the process block plus its spans. A batch
// is sealed by the span that takes it over MaxPacketSize minus
// EmitBatchOverhead. Spans larger than that limit on their own are dropped
// and counted; [Spanship.Dropped] reports the total.
//
// # Lifecycle States
//
// An instance is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. Use [Spanship.Status] to query it.
package spanship
