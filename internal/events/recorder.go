package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/opencode-ai/missionctl/internal/engine"
	"github.com/opencode-ai/missionctl/internal/logging"
	"github.com/opencode-ai/missionctl/internal/mission"
	"github.com/opencode-ai/missionctl/internal/models"
	"github.com/rs/zerolog"
)

// DefaultBufferSize is the journal queue capacity used when none is given.
const DefaultBufferSize = 256

type record func(ctx context.Context, repo Repository) error

// Recorder observes a registry and writes lifecycle events to a Repository
// from its own goroutine, so journal I/O never runs under engine locks.
type Recorder struct {
	repo   Repository
	logger zerolog.Logger
	queue  chan record

	mu       sync.Mutex
	registry *engine.Registry
	started  map[int]bool

	dropped atomic.Int64
	written atomic.Int64
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Recorder{
		repo:    repo,
		logger:  logging.Component("journal"),
		queue:   make(chan record, bufferSize),
		started: make(map[int]bool),
	}
}

// SetLogger replaces the recorder logger.
func (r *Recorder) SetLogger(logger zerolog.Logger) {
	r.logger = logger
}

// Attach subscribes the recorder to every sequence in reg.
func (r *Recorder) Attach(reg *engine.Registry) mission.Subscription {
	r.mu.Lock()
	r.registry = reg
	r.mu.Unlock()
	return reg.Subscribe(r.Observe)
}

// Observe queues the journal entries for one mission state change.
// It never blocks; entries are dropped when the queue is full.
func (r *Recorder) Observe(m models.MissionSnapshot) {
	r.enqueue(func(ctx context.Context, repo Repository) error {
		return LogMissionStateChanged(ctx, repo, m)
	})

	progress := models.SequenceProgressPayload{
		SequenceIndex: m.SequenceIndex,
		SequenceName:  m.SequenceName,
		Total:         m.SequenceSize,
	}

	switch m.State {
	case models.MissionStateStarted:
		r.mu.Lock()
		first := !r.started[m.SequenceIndex]
		r.started[m.SequenceIndex] = true
		r.mu.Unlock()

		if first {
			r.enqueue(func(ctx context.Context, repo Repository) error {
				return LogSequenceProgress(ctx, repo, models.EventTypeSequenceStarted, progress)
			})
		}

	case models.MissionStateFinished:
		stats, ok := r.sequenceStats(m.SequenceIndex)
		if !ok || stats.Waiting > 0 || stats.Started > 0 {
			return
		}
		progress.Finished = stats.Finished
		r.enqueue(func(ctx context.Context, repo Repository) error {
			return LogSequenceProgress(ctx, repo, models.EventTypeSequenceCompleted, progress)
		})
	}
}

// RecordRejection queues a request.rejected entry.
func (r *Recorder) RecordRejection(request string, sequenceIndex int, reason error) {
	if reason == nil {
		return
	}
	r.enqueue(func(ctx context.Context, repo Repository) error {
		return LogRequestRejected(ctx, repo, request, sequenceIndex, reason)
	})
}

// Run writes queued entries until ctx is cancelled, then drains what is
// already queued.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case rec := <-r.queue:
			r.write(ctx, rec)
		}
	}
}

// Written returns how many entries were persisted.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

// Dropped returns how many entries were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) drain() {
	ctx := context.Background()
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec record) {
	if err := rec(ctx, r.repo); err != nil {
		r.logger.Warn().Err(err).Msg("failed to write journal entry")
		return
	}
	r.written.Add(1)
}

func (r *Recorder) enqueue(rec record) {
	select {
	case r.queue <- rec:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.logger.Warn().Int64("dropped", n).Msg("journal queue full; dropping entries")
		}
	}
}

func (r *Recorder) sequenceStats(index int) (engine.Stats, bool) {
	r.mu.Lock()
	reg := r.registry
	r.mu.Unlock()

	if reg == nil {
		return engine.Stats{}, false
	}
	seq, err := reg.Sequence(index)
	if err != nil {
		return engine.Stats{}, false
	}
	return seq.Stats(), true
}
