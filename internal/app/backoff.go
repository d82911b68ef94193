package app

import (
	"math/rand"
	"time"
)

// Default backoff bounds for spool read errors.
const (
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 10 * time.Second
)

// backoff grows the wait between retries exponentially with ±20% jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
	rng     *rand.Rand
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the wait before the next retry and doubles the base for the
// one after.
func (b *backoff) Next() time.Duration {
	jitter := float64(b.current) * 0.2 * (b.rng.Float64()*2 - 1)
	wait := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return wait
}

// Reset returns to the initial wait.
func (b *backoff) Reset() {
	b.current = b.initial
}
