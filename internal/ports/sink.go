package ports

import (
	"context"

	"github.com/bft-labs/spanship/internal/domain"
)

// Sink delivers sealed batches to a destination. A sink is acquired for a
// single batch and closed right after, on success and on failure alike.
type Sink interface {
	// Deliver hands the batch to the destination.
	// Returns nil when the destination accepted the batch.
	Deliver(ctx context.Context, batch *domain.Batch) error

	// Close releases the connection or file handle.
	Close() error
}

// SinkFactory acquires a fresh Sink per batch.
type SinkFactory interface {
	// Open acquires a sink. The caller must Close it.
	Open(ctx context.Context) (Sink, error)

	// Name identifies the destination kind for logs and metrics (udp, http, file).
	Name() string
}
