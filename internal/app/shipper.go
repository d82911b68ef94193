package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/bft-labs/spanship/internal/domain"
	"github.com/bft-labs/spanship/internal/ports"
	"github.com/bft-labs/spanship/pkg/log"
	"github.com/bft-labs/spanship/pkg/state"
)

// ShipperConfig contains configuration for the shipping loop.
type ShipperConfig struct {
	// PollInterval is how long to wait for new input once the source is drained
	PollInterval time.Duration

	// FlushInterval forces a flush while input keeps arriving. Zero flushes
	// only when the source is drained.
	FlushInterval time.Duration

	// Once drains the source a single time and returns
	Once bool
}

// FlushObserver is notified after every flush that delivered or failed
// at least one batch.
type FlushObserver interface {
	OnFlush(result domain.FlushResult, duration time.Duration, err error)
}

// Shipper pulls tracer contexts from a source into an exporter, flushes on a
// schedule, retires shipped inputs and keeps running totals.
type Shipper struct {
	config    ShipperConfig
	source    ports.ContextSource
	exporter  *Exporter
	stateRepo state.Repository
	logger    ports.Logger
	clock     clockz.Clock
	observer  FlushObserver
	wake      chan struct{}

	mu          sync.Mutex
	stats       state.State
	baseDropped uint64
}

// NewShipper creates a shipper. logger, clock and observer may be nil.
func NewShipper(
	config ShipperConfig,
	source ports.ContextSource,
	exporter *Exporter,
	stateRepo state.Repository,
	logger ports.Logger,
	clock clockz.Clock,
	observer FlushObserver,
) *Shipper {
	if clock == nil {
		clock = clockz.RealClock
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	return &Shipper{
		config:    config,
		source:    source,
		exporter:  exporter,
		stateRepo: stateRepo,
		logger:    log.OrNoop(logger),
		clock:     clock,
		observer:  observer,
		wake:      make(chan struct{}, 1),
	}
}

// Notify wakes the shipper if it is waiting for input. It never blocks.
func (s *Shipper) Notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stats returns the running totals, including those loaded at startup.
func (s *Shipper) Stats() state.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run executes the shipping loop until ctx is canceled or, in Once mode,
// the source is drained. Whatever is still queued is flushed before return.
func (s *Shipper) Run(ctx context.Context) error {
	loaded, err := s.stateRepo.Load(ctx)
	if err != nil {
		s.logger.Error("failed to load state", ports.Err(err))
		// Continue with empty totals
	}
	s.mu.Lock()
	s.stats = loaded
	s.baseDropped = loaded.SpansDropped
	s.mu.Unlock()

	defer s.source.Close()

	bo := newBackoff(DefaultBackoffInitial, DefaultBackoffMax)
	lastFlush := s.clock.Now()

	for {
		if ctx.Err() != nil {
			s.finalFlush(ctx)
			return ctx.Err()
		}

		tc, err := s.source.Next(ctx)
		if err != nil {
			if errors.Is(err, ports.ErrNoMoreContexts) {
				bo.Reset()
				s.flush(ctx)
				lastFlush = s.clock.Now()

				if s.config.Once {
					return nil
				}
				s.wait(ctx, s.config.PollInterval)
				continue
			}
			if ctx.Err() != nil {
				continue
			}

			s.logger.Error("read error", ports.Err(err))
			s.wait(ctx, bo.Next())
			continue
		}

		bo.Reset()
		s.exporter.Append(ctx, tc)

		if s.config.FlushInterval > 0 && s.clock.Since(lastFlush) >= s.config.FlushInterval {
			s.flush(ctx)
			lastFlush = s.clock.Now()
		}
	}
}

// wait blocks for d, until Notify is called, or until ctx is done.
func (s *Shipper) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-s.wake:
	case <-s.clock.After(d):
	}
}

// finalFlush ships what is left after ctx was canceled. Delivery is still
// bounded by the exporter's delivery timeout.
func (s *Shipper) finalFlush(ctx context.Context) {
	s.flush(context.WithoutCancel(ctx))
}

// flush delivers queued batches, then retires the inputs they came from.
// Inputs are retired even when delivery failed; lost spans show up in the
// failed total.
func (s *Shipper) flush(ctx context.Context) {
	start := s.clock.Now()
	result, flushErr := s.exporter.FlushReport(ctx)

	last, err := s.source.Commit(ctx)
	if err != nil {
		s.logger.Error("failed to retire input", ports.Err(err))
	}

	if result.Batches == 0 && last == "" {
		return
	}

	s.mu.Lock()
	if result.Batches > 0 {
		s.stats.RecordFlush(result.Batches, result.Delivered, result.Failed, s.clock.Now())
	}
	s.stats.SpansDropped = s.baseDropped + uint64(s.exporter.Dropped())
	if last != "" {
		s.stats.LastFile = last
	}
	snapshot := s.stats
	s.mu.Unlock()

	if err := s.stateRepo.Save(ctx, snapshot); err != nil {
		s.logger.Error("failed to save state", ports.Err(err))
	}

	if s.observer != nil && result.Batches > 0 {
		s.observer.OnFlush(result, s.clock.Since(start), flushErr)
	}
}
