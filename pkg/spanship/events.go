package spanship

import (
	"time"

	"github.com/bft-labs/spanship/internal/app"
	"github.com/bft-labs/spanship/internal/domain"
)

// State is the lifecycle state of a Spanship instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// StateChangeEvent is emitted after every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// FlushEvent is emitted after the shipping loop flushed at least one batch.
type FlushEvent struct {
	Batches   int
	Delivered int
	Failed    int
	Duration  time.Duration

	// Err joins the delivery failures of this flush, if any.
	Err error
}

// EventHandler receives notifications from a Spanship instance.
// Methods are called synchronously and should return quickly.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnFlush(event FlushEvent)
}

// BaseEventHandler implements EventHandler with no-ops.
// Embed it to override only the events you care about.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnFlush(FlushEvent)             {}

// eventEmitter adapts EventHandler to the internal observers.
type eventEmitter struct {
	handler EventHandler
}

func (e *eventEmitter) OnPhaseChange(previous, current app.Phase, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertPhase(previous),
		Current:  convertPhase(current),
		Reason:   reason,
	})
}

func (e *eventEmitter) OnFlush(result domain.FlushResult, duration time.Duration, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnFlush(FlushEvent{
		Batches:   result.Batches,
		Delivered: result.Delivered,
		Failed:    result.Failed,
		Duration:  duration,
		Err:       err,
	})
}

func convertPhase(p app.Phase) State {
	switch p {
	case app.PhaseStopped:
		return StateStopped
	case app.PhaseStarting:
		return StateStarting
	case app.PhaseRunning:
		return StateRunning
	case app.PhaseStopping:
		return StateStopping
	case app.PhaseCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
