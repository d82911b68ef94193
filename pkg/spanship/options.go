package spanship

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zoobzio/clockz"

	"github.com/bft-labs/spanship/internal/domain"
	"github.com/bft-labs/spanship/internal/ports"
	"github.com/bft-labs/spanship/pkg/log"
)

// Re-exported types so hosts only need this package.
type (
	// TracerContext is one tracer's process and the spans it finished.
	TracerContext = domain.TracerContext

	// Span is a finished span.
	Span = domain.Span

	// LogRecord is a timestamped span log.
	LogRecord = domain.LogRecord

	// Reference links a span to another span.
	Reference = domain.Reference

	// Batch is a sealed batch handed to a Sink.
	Batch = domain.Batch

	// Sink delivers one batch.
	Sink = ports.Sink

	// SinkFactory opens a Sink per batch.
	SinkFactory = ports.SinkFactory

	// HTTPClient is the interface for making HTTP requests.
	// *http.Client satisfies this interface.
	HTTPClient = ports.HTTPClient

	// Logger is the interface for structured logging.
	Logger = log.Logger

	// LogField is a structured log field.
	LogField = log.Field
)

// Errors returned by the public API. Check with errors.Is.
var (
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrDelivery        = domain.ErrDelivery
)

// Option configures optional behavior of Spanship.
type Option func(*options)

type options struct {
	httpClient   ports.HTTPClient
	logger       ports.Logger
	eventHandler EventHandler
	sinkFactory  ports.SinkFactory
	registerer   prometheus.Registerer
	clock        clockz.Clock
	retention    *RetentionConfig
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		clock:  clockz.RealClock,
	}
}

// WithHTTPClient sets the client used by the http sink.
// If not provided, a client with Config.HTTPTimeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for lifecycle and flush events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithSinkFactory replaces the sink selected by Config.Sink.
func WithSinkFactory(factory SinkFactory) Option {
	return func(o *options) {
		o.sinkFactory = factory
	}
}

// WithRegisterer registers the exporter metrics on reg.
// Without it metrics are collected but not exposed.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithClock sets the clock used for scheduling and file buckets.
func WithClock(clock clockz.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}
