// Package log provides the logging abstraction used across spanship.
//
// Components log through the [Logger] interface so that the exporter can be
// embedded in a host application without imposing a logging library. A
// zerolog adapter is provided for the CLI, and a no-op logger is the default
// for library use.
//
//	logger := log.NewZerologAdapter(log.InfoLevel)
//	logger.Info("flushed", log.Int("spans", n))
//
// Implement [Logger] to route exporter logs into an existing pipeline.
package log
