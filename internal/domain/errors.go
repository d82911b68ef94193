package domain

import "errors"

// Domain errors represent error conditions in the spanship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrEncoding is returned when an entity could not be thrift-encoded.
	ErrEncoding = errors.New("spanship: encoding failed")

	// ErrOversizeSpan marks a span whose encoded size exceeds the batch ceiling.
	// Such spans are dropped and counted, never returned to the caller.
	ErrOversizeSpan = errors.New("spanship: span exceeds max span bytes")

	// ErrDelivery is returned when a sink failed to accept a batch.
	ErrDelivery = errors.New("spanship: delivery failed")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("spanship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("spanship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("spanship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("spanship: invalid configuration")
)
