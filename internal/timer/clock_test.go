package timer

import (
	"testing"
	"time"
)

func TestManualClockOrdersCallbacks(t *testing.T) {
	clock := NewManualClock()

	var order []string
	clock.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	clock.AfterFunc(time.Second, func() { order = append(order, "a") })
	clock.AfterFunc(time.Second, func() { order = append(order, "b") })

	clock.Advance(5 * time.Second)

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("unexpected order: %v", order)
	}
	if clock.Elapsed() != 5*time.Second {
		t.Fatalf("expected elapsed 5s, got %v", clock.Elapsed())
	}
}

func TestManualClockRunsCallbacksScheduledDuringAdvance(t *testing.T) {
	clock := NewManualClock()

	fired := 0
	clock.AfterFunc(time.Second, func() {
		fired++
		clock.AfterFunc(time.Second, func() { fired++ })
	})

	clock.Advance(2 * time.Second)
	if fired != 2 {
		t.Fatalf("expected nested callback to run, fired=%d", fired)
	}
}

func TestManualClockStop(t *testing.T) {
	clock := NewManualClock()

	fired := false
	s := clock.AfterFunc(time.Second, func() { fired = true })
	if !s.Stop() {
		t.Fatal("expected first Stop to report true")
	}
	if s.Stop() {
		t.Fatal("expected second Stop to report false")
	}

	clock.Advance(time.Minute)
	if fired {
		t.Fatal("stopped callback fired")
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", clock.Pending())
	}
}
