package engine

import (
	"time"

	"github.com/opencode-ai/missionctl/internal/logging"
	"github.com/opencode-ai/missionctl/internal/timer"
	"github.com/rs/zerolog"
)

// Option configures sequences built by NewSequence and Build.
type Option func(*options)

type options struct {
	clock  timer.Clock
	logger zerolog.Logger
	now    func() time.Time
}

func defaultOptions() options {
	return options{
		clock:  timer.SystemClock,
		logger: logging.Component("engine"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets the clock used for delayed mission starts.
func WithClock(clock timer.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the engine logger. Mission realizations receive a child
// logger tagged with their sequence and mission id.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithNow sets the timestamp source for snapshots.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
