package app

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/bft-labs/spanship/internal/domain"
	"github.com/bft-labs/spanship/internal/ports"
	"github.com/bft-labs/spanship/pkg/log"
)

// ShutdownTimeout bounds how long Stop waits for the shipper to drain.
const ShutdownTimeout = 30 * time.Second

// Phase is the lifecycle phase of a running exporter.
type Phase int

const (
	PhaseStopped Phase = iota
	PhaseStarting
	PhaseRunning
	PhaseStopping
	PhaseCrashed
)

func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "Stopped"
	case PhaseStarting:
		return "Starting"
	case PhaseRunning:
		return "Running"
	case PhaseStopping:
		return "Stopping"
	case PhaseCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// transitions lists the phases reachable from each phase.
var transitions = map[Phase][]Phase{
	PhaseStopped:  {PhaseStarting},
	PhaseStarting: {PhaseRunning, PhaseStopping, PhaseCrashed},
	PhaseRunning:  {PhaseStopping, PhaseCrashed},
	PhaseStopping: {PhaseStopped, PhaseCrashed},
	PhaseCrashed:  {PhaseStarting},
}

// PhaseObserver is notified after every successful transition.
type PhaseObserver interface {
	OnPhaseChange(previous, current Phase, reason string)
}

// Lifecycle guards phase transitions and tracks background workers.
type Lifecycle struct {
	mu       sync.RWMutex
	phase    Phase
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   ports.Logger
	observer PhaseObserver
	clock    clockz.Clock
}

// NewLifecycle creates a lifecycle in PhaseStopped. observer and clock may be nil.
func NewLifecycle(logger ports.Logger, observer PhaseObserver, clock clockz.Clock) *Lifecycle {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Lifecycle{
		phase:    PhaseStopped,
		logger:   log.OrNoop(logger),
		observer: observer,
		clock:    clock,
	}
}

// Phase returns the current phase.
func (l *Lifecycle) Phase() Phase {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phase
}

// TransitionTo moves to next if the move is allowed from the current phase.
// Moving out of a stopped or crashed phase to anything but Starting returns
// ErrNotRunning; any other disallowed move returns ErrAlreadyRunning.
func (l *Lifecycle) TransitionTo(next Phase, reason string) error {
	l.mu.Lock()
	prev := l.phase
	if !allowed(prev, next) {
		l.mu.Unlock()
		if prev == PhaseStopped || prev == PhaseCrashed {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}
	l.phase = next
	l.mu.Unlock()

	if l.observer != nil {
		l.observer.OnPhaseChange(prev, next, reason)
	}

	l.logger.Info("phase transition",
		ports.String("from", prev.String()),
		ports.String("to", next.String()),
		ports.String("reason", reason),
	)
	return nil
}

func allowed(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// CanStart returns true if the lifecycle may enter PhaseStarting.
func (l *Lifecycle) CanStart() bool {
	p := l.Phase()
	return p == PhaseStopped || p == PhaseCrashed
}

// CanStop returns true if the lifecycle may enter PhaseStopping.
func (l *Lifecycle) CanStop() bool {
	p := l.Phase()
	return p == PhaseRunning || p == PhaseStarting
}

// SetCancel stores the function that stops the workers.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel stops the workers. It is safe to call before SetCancel.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Go runs fn as a tracked worker.
func (l *Lifecycle) Go(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

// WaitWithTimeout waits for all workers to return.
// Returns ErrShutdownTimeout if they are still running after timeout.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-l.clock.After(timeout):
		l.logger.Warn("shutdown timeout, forcing exit",
			ports.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
