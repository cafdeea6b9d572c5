package mission

import (
	"testing"
	"time"

	"github.com/opencode-ai/missionctl/internal/models"
	"github.com/opencode-ai/missionctl/internal/timer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestController(clock timer.Clock) *Controller {
	return NewController(WithClock(clock), WithLogger(zerolog.Nop()))
}

// recorder captures every notification in arrival order.
type recorder struct {
	calls []string
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnStateChanged: func(s models.MissionState) { r.calls = append(r.calls, "changed:"+string(s)) },
		OnStarted:      func() { r.calls = append(r.calls, "started") },
		OnPointReached: func() { r.calls = append(r.calls, "point") },
		OnFinished:     func() { r.calls = append(r.calls, "finished") },
	}
}

func TestFinishBeforeStartIsNoop(t *testing.T) {
	c := newTestController(timer.NewManualClock())
	rec := &recorder{}
	c.Subscribe(rec.handlers())

	c.Finish()

	require.Equal(t, models.MissionStateWaiting, c.State())
	require.Empty(t, rec.calls)
}

func TestStartWithoutDelayIsSynchronous(t *testing.T) {
	c := newTestController(timer.NewManualClock())
	rec := &recorder{}
	c.Subscribe(rec.handlers())

	c.Start(0, nil)

	require.Equal(t, models.MissionStateStarted, c.State())
	require.Equal(t, []string{"changed:started", "started"}, rec.calls)
}

func TestFinishEmitsStateChangedThenPointThenFinished(t *testing.T) {
	c := newTestController(timer.NewManualClock())
	rec := &recorder{}
	c.Start(0, nil)
	c.Subscribe(rec.handlers())

	c.Finish()

	require.Equal(t, models.MissionStateFinished, c.State())
	require.Equal(t, []string{"changed:finished", "point", "finished"}, rec.calls)
}

func TestInvalidTransitionsAreAbsorbed(t *testing.T) {
	c := newTestController(timer.NewManualClock())
	c.Start(0, nil)

	rec := &recorder{}
	c.Subscribe(rec.handlers())

	c.Start(0, nil)
	require.Equal(t, models.MissionStateStarted, c.State())

	c.Finish()
	c.Finish()
	c.Start(0, nil)
	require.Equal(t, models.MissionStateFinished, c.State())
	require.Equal(t, []string{"changed:finished", "point", "finished"}, rec.calls)
}

func TestDelayedStartWaitsForFullDelay(t *testing.T) {
	clock := timer.NewManualClock()
	c := newTestController(clock)

	elapsed := 0
	c.Start(5*time.Second, func() { elapsed++ })
	require.Equal(t, models.MissionStateWaiting, c.State())
	require.True(t, c.Pending())

	clock.Advance(5*time.Second - time.Millisecond)
	require.Equal(t, models.MissionStateWaiting, c.State())
	require.Equal(t, 0, elapsed)

	clock.Advance(time.Millisecond)
	require.Equal(t, models.MissionStateStarted, c.State())
	require.Equal(t, 1, elapsed)
	require.False(t, c.Pending())
}

func TestDelayElapsedCallbackRunsBeforeTransition(t *testing.T) {
	clock := timer.NewManualClock()
	c := newTestController(clock)

	var stateAtCallback models.MissionState
	c.Start(time.Second, func() { stateAtCallback = c.State() })
	clock.Advance(time.Second)

	require.Equal(t, models.MissionStateWaiting, stateAtCallback)
	require.Equal(t, models.MissionStateStarted, c.State())
}

func TestCancelledDelayedStartStaysWaiting(t *testing.T) {
	clock := timer.NewManualClock()
	c := newTestController(clock)
	rec := &recorder{}
	c.Subscribe(rec.handlers())

	c.Start(5*time.Second, nil)
	clock.Advance(2 * time.Second)
	c.CancelStart()
	clock.Advance(time.Hour)

	require.Equal(t, models.MissionStateWaiting, c.State())
	require.Empty(t, rec.calls)

	// A new Start is allowed after cancellation.
	c.Start(0, nil)
	require.Equal(t, models.MissionStateStarted, c.State())
}

func TestRepeatedDelayedStartRestartsCountdown(t *testing.T) {
	clock := timer.NewManualClock()
	c := newTestController(clock)

	started := 0
	c.Subscribe(Handlers{OnStarted: func() { started++ }})

	c.Start(3*time.Second, nil)
	clock.Advance(2 * time.Second)
	c.Start(3*time.Second, nil)

	clock.Advance(2 * time.Second)
	require.Equal(t, models.MissionStateWaiting, c.State())

	clock.Advance(time.Second)
	require.Equal(t, models.MissionStateStarted, c.State())

	clock.Advance(time.Minute)
	require.Equal(t, 1, started)
}

func TestStartFromDelayCallbackLeavesNoCountdown(t *testing.T) {
	clock := timer.NewManualClock()
	c := newTestController(clock)

	started := 0
	c.Subscribe(Handlers{OnStarted: func() { started++ }})

	calls := 0
	var onElapsed func()
	onElapsed = func() {
		calls++
		c.Start(time.Second, onElapsed)
	}

	c.Start(time.Second, onElapsed)
	clock.Advance(time.Second)

	require.Equal(t, models.MissionStateStarted, c.State())
	require.False(t, c.Pending())
	require.Equal(t, 0, clock.Pending())

	clock.Advance(time.Minute)
	require.Equal(t, 1, calls)
	require.Equal(t, 1, started)
}

func TestImmediateStartCancelsPendingDelay(t *testing.T) {
	clock := timer.NewManualClock()
	c := newTestController(clock)

	elapsed := 0
	c.Start(3*time.Second, func() { elapsed++ })
	c.Start(0, nil)
	clock.Advance(time.Minute)

	require.Equal(t, models.MissionStateStarted, c.State())
	require.Equal(t, 0, elapsed)
}

func TestUnsubscribeIsIdempotentAndExact(t *testing.T) {
	c := newTestController(timer.NewManualClock())

	var first, second int
	sub := c.Subscribe(Handlers{OnStarted: func() { first++ }})
	c.Subscribe(Handlers{OnStarted: func() { second++ }})

	sub.Unsubscribe()
	sub.Unsubscribe()

	c.Start(0, nil)
	require.Equal(t, 0, first)
	require.Equal(t, 1, second)
}

func TestCloseCancelsTimerAndDropsHandlers(t *testing.T) {
	clock := timer.NewManualClock()
	c := newTestController(clock)

	calls := 0
	c.Subscribe(Handlers{OnStateChanged: func(models.MissionState) { calls++ }})
	c.Start(time.Second, nil)
	c.Close()
	clock.Advance(time.Minute)

	require.Equal(t, models.MissionStateWaiting, c.State())
	require.Equal(t, 0, calls)
	require.Equal(t, 0, clock.Pending())
}
