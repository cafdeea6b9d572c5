package timer

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartRejectsNonPositiveDuration(t *testing.T) {
	dt := New(NewManualClock())

	for _, d := range []time.Duration{0, -time.Second} {
		fired := false
		err := dt.Start(d, func() { fired = true })
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrInvalidDuration))
		require.False(t, fired)
		require.False(t, dt.InProgress())
	}
}

func TestCallbackFiresOnceAfterDuration(t *testing.T) {
	clock := NewManualClock()
	dt := New(clock)

	var calls int32
	require.NoError(t, dt.Start(5*time.Second, func() { atomic.AddInt32(&calls, 1) }))
	require.True(t, dt.InProgress())

	clock.Advance(4 * time.Second)
	require.Equal(t, int32(0), atomic.LoadInt32(&calls))
	require.True(t, dt.InProgress())

	clock.Advance(time.Second)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.False(t, dt.InProgress())

	clock.Advance(time.Minute)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCancelPreventsCallback(t *testing.T) {
	clock := NewManualClock()
	dt := New(clock)

	fired := false
	require.NoError(t, dt.Start(time.Second, func() { fired = true }))
	dt.Cancel()
	require.False(t, dt.InProgress())

	clock.Advance(10 * time.Second)
	require.False(t, fired)
	require.Equal(t, 0, clock.Pending())
}

func TestCancelWhenIdleIsNoop(t *testing.T) {
	dt := New(NewManualClock())
	dt.Cancel()
	dt.Cancel()
	require.False(t, dt.InProgress())
}

func TestRestartSupersedesPreviousCountdown(t *testing.T) {
	clock := NewManualClock()
	dt := New(clock)

	var first, second int32
	require.NoError(t, dt.Start(3*time.Second, func() { atomic.AddInt32(&first, 1) }))
	clock.Advance(2 * time.Second)
	require.NoError(t, dt.Start(3*time.Second, func() { atomic.AddInt32(&second, 1) }))

	// The first deadline passes without firing.
	clock.Advance(2 * time.Second)
	require.Equal(t, int32(0), atomic.LoadInt32(&first))
	require.Equal(t, int32(0), atomic.LoadInt32(&second))

	clock.Advance(time.Second)
	require.Equal(t, int32(0), atomic.LoadInt32(&first))
	require.Equal(t, int32(1), atomic.LoadInt32(&second))
}

// staleClock hands back the callback so a test can run it after the timer
// was cancelled, simulating a runtime timer that already fired.
type staleClock struct {
	callbacks []func()
}

type noopStopper struct{}

func (noopStopper) Stop() bool { return false }

func (c *staleClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.callbacks = append(c.callbacks, f)
	return noopStopper{}
}

func TestLateCallbackAfterCancelDoesNotFire(t *testing.T) {
	clock := &staleClock{}
	dt := New(clock)

	fired := false
	require.NoError(t, dt.Start(time.Second, func() { fired = true }))
	dt.Cancel()

	clock.callbacks[0]()
	require.False(t, fired)
}

func TestLateCallbackAfterRestartDoesNotFire(t *testing.T) {
	clock := &staleClock{}
	dt := New(clock)

	var first, second int
	require.NoError(t, dt.Start(time.Second, func() { first++ }))
	require.NoError(t, dt.Start(time.Second, func() { second++ }))

	clock.callbacks[0]()
	require.Equal(t, 0, first)
	require.True(t, dt.InProgress())

	clock.callbacks[1]()
	require.Equal(t, 1, second)
	require.False(t, dt.InProgress())
}

func TestSystemClockFires(t *testing.T) {
	dt := New(nil)

	var fired atomic.Bool
	require.NoError(t, dt.Start(10*time.Millisecond, func() { fired.Store(true) }))
	require.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
	require.False(t, dt.InProgress())
}
