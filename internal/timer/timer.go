// Package timer provides the cancellable single-shot countdown that gates
// delayed mission starts.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidDuration is returned when a countdown is started with a
// non-positive duration.
var ErrInvalidDuration = errors.New("delay must be greater than zero")

// DelayTimer is a restartable single-shot countdown. At most one countdown
// is live at a time and a cancelled or superseded countdown never runs its
// callback.
type DelayTimer struct {
	clock Clock

	mu         sync.Mutex
	generation uint64
	pending    Stopper
	inProgress bool
}

// New creates an idle DelayTimer. A nil clock uses SystemClock.
func New(clock Clock) *DelayTimer {
	if clock == nil {
		clock = SystemClock
	}
	return &DelayTimer{clock: clock}
}

// Start begins a countdown of d, cancelling any countdown already in flight.
// onComplete runs exactly once on natural expiry.
func (t *DelayTimer) Start(d time.Duration, onComplete func()) error {
	if d <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidDuration, d)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()

	t.generation++
	generation := t.generation
	t.inProgress = true
	t.pending = t.clock.AfterFunc(d, func() {
		t.fire(generation, onComplete)
	})
	return nil
}

// Cancel aborts the countdown in flight. It is a no-op when idle.
func (t *DelayTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

// InProgress reports whether a countdown is pending.
func (t *DelayTimer) InProgress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inProgress
}

func (t *DelayTimer) cancelLocked() {
	if !t.inProgress {
		return
	}
	if t.pending != nil {
		t.pending.Stop()
	}
	// Bumping the generation invalidates a callback that already left the
	// clock but has not acquired the lock yet.
	t.generation++
	t.pending = nil
	t.inProgress = false
}

func (t *DelayTimer) fire(generation uint64, onComplete func()) {
	t.mu.Lock()
	if generation != t.generation || !t.inProgress {
		t.mu.Unlock()
		return
	}
	t.inProgress = false
	t.pending = nil
	t.mu.Unlock()

	if onComplete != nil {
		onComplete()
	}
}
