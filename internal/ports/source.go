package ports

import (
	"context"
	"io"

	"github.com/bft-labs/spanship/internal/domain"
)

// ContextSource yields tracer contexts to be shipped.
type ContextSource interface {
	// Next returns the next tracer context.
	// Returns io.EOF when nothing is available right now (poll and retry).
	Next(ctx context.Context) (*domain.TracerContext, error)

	// Commit marks everything returned so far as shipped, so the source may
	// retire its inputs. It returns the name of the last input retired, or ""
	// when nothing was retired.
	Commit(ctx context.Context) (string, error)

	// Close releases all resources held by the source.
	Close() error
}

// ErrNoMoreContexts indicates the source is drained for now.
var ErrNoMoreContexts = io.EOF
