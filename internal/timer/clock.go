package timer

import (
	"sort"
	"sync"
	"time"
)

// Stopper cancels a scheduled callback. Stop reports whether the call
// prevented the callback from running.
type Stopper interface {
	Stop() bool
}

// Clock schedules callbacks after an elapsed duration.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func(d time.Duration, f func()) Stopper

// AfterFunc implements Clock.
func (fn ClockFunc) AfterFunc(d time.Duration, f func()) Stopper {
	return fn(d, f)
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// SystemClock runs callbacks on runtime timers.
var SystemClock Clock = systemClock{}

// ManualClock is a deterministic Clock whose time only moves on Advance.
// Callbacks run on the goroutine that calls Advance.
type ManualClock struct {
	mu      sync.Mutex
	elapsed time.Duration
	seq     uint64
	timers  []*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Duration
	seq      uint64
	f        func()
	done     bool
}

// NewManualClock returns a clock at elapsed time zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// AfterFunc implements Clock.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &manualTimer{
		clock:    c,
		deadline: c.elapsed + d,
		seq:      c.seq,
		f:        f,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, running every callback whose
// deadline falls inside the window in deadline order.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.elapsed + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.elapsed = target
			c.compactLocked()
			c.mu.Unlock()
			return
		}
		next.done = true
		c.elapsed = next.deadline
		c.mu.Unlock()

		next.f()
	}
}

// Elapsed returns the total time advanced so far.
func (c *ManualClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Pending returns the number of scheduled callbacks that have not run or been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, t := range c.timers {
		if !t.done {
			count++
		}
	}
	return count
}

func (c *ManualClock) nextDueLocked(target time.Duration) *manualTimer {
	due := make([]*manualTimer, 0)
	for _, t := range c.timers {
		if !t.done && t.deadline <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline == due[j].deadline {
			return due[i].seq < due[j].seq
		}
		return due[i].deadline < due[j].deadline
	})
	return due[0]
}

func (c *ManualClock) compactLocked() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.done {
			live = append(live, t)
		}
	}
	c.timers = live
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	return true
}
