package mission

import (
	"sync"
	"time"

	"github.com/opencode-ai/missionctl/internal/logging"
	"github.com/opencode-ai/missionctl/internal/models"
	"github.com/opencode-ai/missionctl/internal/timer"
	"github.com/rs/zerolog"
)

// Controller is the standard Realization: a Waiting -> Started -> Finished
// state machine with an optional cancellable start delay.
//
// Invalid transition requests (Start when not Waiting, Finish when not
// Started) are absorbed as no-ops.
type Controller struct {
	mu     sync.Mutex
	state  models.MissionState
	closed bool

	timer    *timer.DelayTimer
	handlers handlerSet
	logger   zerolog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock sets the clock used for delayed starts.
func WithClock(clock timer.Clock) ControllerOption {
	return func(c *Controller) {
		c.timer = timer.New(clock)
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a Controller in the Waiting state.
func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		state:  models.MissionStateWaiting,
		logger: logging.Component("mission"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timer == nil {
		c.timer = timer.New(nil)
	}
	return c
}

// State implements Realization.
func (c *Controller) State() models.MissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending reports whether a delayed start is counting down.
func (c *Controller) Pending() bool {
	return c.timer.InProgress()
}

// Start implements Realization. Calling Start again while a delayed start is
// pending restarts the countdown.
func (c *Controller) Start(delay time.Duration, onDelayElapsed func()) {
	c.mu.Lock()
	if c.closed || c.state != models.MissionStateWaiting {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug().Str("state", string(state)).Msg("start ignored")
		return
	}
	c.mu.Unlock()

	if delay <= 0 {
		c.timer.Cancel()
		c.startImmediately()
		return
	}

	err := c.timer.Start(delay, func() {
		if !c.waiting() {
			return
		}
		if onDelayElapsed != nil {
			onDelayElapsed()
		}
		c.startImmediately()
	})
	if err != nil {
		c.logger.Error().Err(err).Dur("delay", delay).Msg("failed to schedule delayed start")
		return
	}
	c.logger.Debug().Dur("delay", delay).Msg("delayed start scheduled")
}

// CancelStart aborts a pending delayed start. The mission stays Waiting.
func (c *Controller) CancelStart() {
	c.timer.Cancel()
}

// Finish implements Realization.
func (c *Controller) Finish() {
	c.transition(models.MissionStateStarted, models.MissionStateFinished)
}

// Subscribe implements Realization.
func (c *Controller) Subscribe(h Handlers) Subscription {
	return c.handlers.add(h)
}

// Close implements Realization.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.timer.Cancel()
	c.handlers.clear()
}

func (c *Controller) waiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.state == models.MissionStateWaiting
}

func (c *Controller) startImmediately() {
	c.transition(models.MissionStateWaiting, models.MissionStateStarted)
}

func (c *Controller) transition(from, to models.MissionState) {
	c.mu.Lock()
	if c.closed || c.state != from {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug().
			Str("state", string(state)).
			Str("requested", string(to)).
			Msg("transition ignored")
		return
	}
	c.state = to
	c.mu.Unlock()

	// A countdown restarted from onDelayElapsed must not outlive Waiting.
	if from == models.MissionStateWaiting {
		c.timer.Cancel()
	}

	c.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("mission state changed")
	c.emit(to)
}

// emit notifies subscribers: every state-changed handler first, then the
// state-specific ones.
func (c *Controller) emit(state models.MissionState) {
	subscribers := c.handlers.snapshot()

	for _, h := range subscribers {
		if h.OnStateChanged != nil {
			h.OnStateChanged(state)
		}
	}

	switch state {
	case models.MissionStateStarted:
		for _, h := range subscribers {
			if h.OnStarted != nil {
				h.OnStarted()
			}
		}
	case models.MissionStateFinished:
		for _, h := range subscribers {
			if h.OnPointReached != nil {
				h.OnPointReached()
			}
		}
		for _, h := range subscribers {
			if h.OnFinished != nil {
				h.OnFinished()
			}
		}
	}
}
