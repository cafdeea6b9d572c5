// Package scheduler provides the single-writer request loop that serializes
// every mutation of the mission engine onto one goroutine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opencode-ai/missionctl/internal/logging"
	"github.com/opencode-ai/missionctl/internal/timer"
	"github.com/rs/zerolog"
)

// Scheduler errors.
var (
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
	ErrSchedulerNotRunning     = errors.New("scheduler not running")
	ErrQueueFull               = errors.New("request queue is full")
	ErrUnknownRequest          = errors.New("unknown request kind")
)

// Config contains scheduler configuration.
type Config struct {
	// QueueSize is the capacity of the request queue.
	// Default: 64.
	QueueSize int

	// RequestTimeout is the maximum time Submit waits for a reply.
	// Default: 5 seconds.
	RequestTimeout time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:      64,
		RequestTimeout: 5 * time.Second,
	}
}

// Target is the engine surface the loop drives. *engine.Registry satisfies it.
type Target interface {
	StartSequence(index int) error
	FinishCurrentMissionInSequence(index int) error
}

// RequestKind identifies an inbound request.
type RequestKind string

const (
	RequestStartSequence RequestKind = "start_sequence"
	RequestFinishMission RequestKind = "finish_mission"
)

// Request is an inbound trigger addressed to a sequence by index.
type Request struct {
	Kind          RequestKind
	SequenceIndex int
}

func (r Request) String() string {
	return fmt.Sprintf("%s(%d)", r.Kind, r.SequenceIndex)
}

// Result records how the loop handled a request.
type Result struct {
	// Request is the request that was handled.
	Request Request

	// Err is the engine's rejection, if any.
	Err error

	// Timestamp is when handling began.
	Timestamp time.Time

	// Duration is how long handling took.
	Duration time.Duration
}

// Success reports whether the engine accepted the request.
func (r Result) Success() bool {
	return r.Err == nil
}

// Stats contains scheduler statistics.
type Stats struct {
	// Running indicates if the loop is active.
	Running bool

	// Paused indicates if request handling is held.
	Paused bool

	// StartedAt is when the loop was started.
	StartedAt *time.Time

	// TotalRequests is the number of requests handled.
	TotalRequests int64

	// AcceptedRequests is the number of requests the engine accepted.
	AcceptedRequests int64

	// RejectedRequests is the number of requests the engine rejected.
	RejectedRequests int64

	// TimersFired is the number of timer callbacks run on the loop.
	TimersFired int64

	// AbandonedRequests is the number of requests dropped because the
	// caller stopped waiting before the loop reached them.
	AbandonedRequests int64

	// LastRequestAt is when the last request was handled.
	LastRequestAt *time.Time
}

// Waited-on envelopes move from pending to claimed (the loop runs them) or
// to abandoned (the caller gave up). Exactly one side wins.
const (
	envelopePending int32 = iota
	envelopeClaimed
	envelopeAbandoned
)

type envelope struct {
	request *Request
	fn      func()
	timer   bool
	reply   chan Result
	done    chan struct{}
	claim   *atomic.Int32 // nil for Post and timer envelopes
}

func newClaim() *atomic.Int32 {
	return new(atomic.Int32)
}

// Scheduler owns the loop goroutine.
type Scheduler struct {
	config Config
	target Target
	logger zerolog.Logger

	// Runtime state
	mu       sync.RWMutex
	running  bool
	paused   bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	requests chan envelope
	resumeCh chan struct{}
	held     []envelope

	// Stats
	stats    Stats
	statsMu  sync.RWMutex
	resultCh chan Result
}

// New creates a new Scheduler.
func New(config Config, target Target) *Scheduler {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}

	return &Scheduler{
		config:   config,
		target:   target,
		logger:   logging.Component("scheduler"),
		requests: make(chan envelope, config.QueueSize),
		resumeCh: make(chan struct{}, 1),
		resultCh: make(chan Result, 100),
	}
}

// SetTarget replaces the engine the loop drives. Call before Start.
func (s *Scheduler) SetTarget(target Target) {
	s.target = target
}

// SetLogger replaces the scheduler logger. Call before Start.
func (s *Scheduler) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

// Start begins the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.paused = false

	now := time.Now().UTC()
	s.statsMu.Lock()
	s.stats.Running = true
	s.stats.Paused = false
	s.stats.StartedAt = &now
	s.statsMu.Unlock()

	s.logger.Info().
		Int("queue_size", s.config.QueueSize).
		Dur("request_timeout", s.config.RequestTimeout).
		Msg("scheduler starting")

	s.wg.Add(1)
	go s.runLoop(s.ctx)

	return nil
}

// Stop halts the loop and waits for it to exit. Queued requests are dropped.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}

	s.logger.Info().Msg("scheduler stopping")

	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()

	s.statsMu.Lock()
	s.stats.Running = false
	s.statsMu.Unlock()

	s.logger.Info().Msg("scheduler stopped")
	return nil
}

// Pause holds request and timer handling until Resume. Work submitted while
// paused is queued, not dropped, unless its caller stops waiting first.
func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrSchedulerNotRunning
	}
	if s.paused {
		return nil // Already paused
	}

	s.paused = true
	s.statsMu.Lock()
	s.stats.Paused = true
	s.statsMu.Unlock()

	s.logger.Info().Msg("scheduler paused")
	return nil
}

// Resume releases held work.
func (s *Scheduler) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrSchedulerNotRunning
	}
	if !s.paused {
		return nil // Already running
	}

	s.paused = false
	s.statsMu.Lock()
	s.stats.Paused = false
	s.statsMu.Unlock()

	select {
	case s.resumeCh <- struct{}{}:
	default:
	}

	s.logger.Info().Msg("scheduler resumed")
	return nil
}

// Submit queues a request and waits for the loop to handle it.
// The returned error is a scheduler error; the engine's verdict is Result.Err.
// When Submit returns an error the request has had no effect and never will.
func (s *Scheduler) Submit(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	env := envelope{request: &req, reply: make(chan Result, 1), claim: newClaim()}
	loopCtx, err := s.enqueue(ctx, env)
	if err != nil {
		return Result{Request: req}, err
	}

	select {
	case result := <-env.reply:
		return result, nil
	case <-loopCtx.Done():
		if env.claim.CompareAndSwap(envelopePending, envelopeAbandoned) {
			return Result{Request: req}, ErrSchedulerNotRunning
		}
	case <-ctx.Done():
		if env.claim.CompareAndSwap(envelopePending, envelopeAbandoned) {
			return Result{Request: req}, fmt.Errorf("waiting for %s: %w", req, ctx.Err())
		}
	}
	// The loop claimed the request first; its result stands.
	return <-env.reply, nil
}

// Post queues a request without waiting. It fails fast when the queue is full.
func (s *Scheduler) Post(req Request) error {
	loopCtx, err := s.loopContext()
	if err != nil {
		return err
	}

	select {
	case s.requests <- envelope{request: &req}:
		s.logger.Debug().Str("request", req.String()).Msg("request posted")
		return nil
	case <-loopCtx.Done():
		return ErrSchedulerNotRunning
	default:
		return ErrQueueFull
	}
}

// Do runs fn on the loop goroutine and waits for it to return.
// An error means fn never ran.
func (s *Scheduler) Do(ctx context.Context, fn func()) error {
	env := envelope{fn: fn, done: make(chan struct{}), claim: newClaim()}
	loopCtx, err := s.enqueue(ctx, env)
	if err != nil {
		return err
	}

	select {
	case <-env.done:
		return nil
	case <-loopCtx.Done():
		if env.claim.CompareAndSwap(envelopePending, envelopeAbandoned) {
			return ErrSchedulerNotRunning
		}
	case <-ctx.Done():
		if env.claim.CompareAndSwap(envelopePending, envelopeAbandoned) {
			return ctx.Err()
		}
	}
	<-env.done
	return nil
}

// Clock returns a timer.Clock whose callbacks run on the loop goroutine
// rather than on runtime timer goroutines.
func (s *Scheduler) Clock() timer.Clock {
	return timer.ClockFunc(func(d time.Duration, f func()) timer.Stopper {
		return time.AfterFunc(d, func() {
			loopCtx, err := s.loopContext()
			if err != nil {
				s.logger.Debug().Msg("timer fired after scheduler stopped; dropped")
				return
			}
			select {
			case s.requests <- envelope{fn: f, timer: true}:
			case <-loopCtx.Done():
			}
		})
	})
}

// Stats returns current scheduler statistics.
func (s *Scheduler) Stats() Stats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

// Results returns the channel of handled requests.
// Consumers should read from this channel to receive notifications; results
// are dropped when nobody keeps up.
func (s *Scheduler) Results() <-chan Result {
	return s.resultCh
}

func (s *Scheduler) loopContext() (context.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return nil, ErrSchedulerNotRunning
	}
	return s.ctx, nil
}

func (s *Scheduler) enqueue(ctx context.Context, env envelope) (context.Context, error) {
	loopCtx, err := s.loopContext()
	if err != nil {
		return nil, err
	}

	select {
	case s.requests <- env:
		return loopCtx, nil
	case <-loopCtx.Done():
		return nil, ErrSchedulerNotRunning
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Scheduler) isPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// runLoop is the only goroutine that touches the target.
func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.held = nil
			return

		case env := <-s.requests:
			if s.isPaused() {
				s.held = append(s.held, env)
				continue
			}
			s.flushHeld()
			s.process(env)

		case <-s.resumeCh:
			s.flushHeld()
		}
	}
}

// flushHeld processes work queued while paused, in arrival order.
func (s *Scheduler) flushHeld() {
	held := s.held
	s.held = nil
	for _, env := range held {
		s.process(env)
	}
}

func (s *Scheduler) process(env envelope) {
	if env.claim != nil && !env.claim.CompareAndSwap(envelopePending, envelopeClaimed) {
		if env.request != nil {
			s.statsMu.Lock()
			s.stats.AbandonedRequests++
			s.statsMu.Unlock()
			s.logger.Info().Str("request", env.request.String()).Msg("caller stopped waiting; request dropped")
		}
		return
	}

	switch {
	case env.request != nil:
		result := s.handle(*env.request)
		if env.reply != nil {
			env.reply <- result
		}

	case env.fn != nil:
		env.fn()
		if env.timer {
			s.statsMu.Lock()
			s.stats.TimersFired++
			s.statsMu.Unlock()
		}
		if env.done != nil {
			close(env.done)
		}
	}
}

// handle applies one request to the target.
func (s *Scheduler) handle(req Request) Result {
	result := Result{Request: req, Timestamp: time.Now().UTC()}
	startTime := time.Now()

	switch {
	case s.target == nil:
		result.Err = errors.New("no target configured")
	case req.Kind == RequestStartSequence:
		result.Err = s.target.StartSequence(req.SequenceIndex)
	case req.Kind == RequestFinishMission:
		result.Err = s.target.FinishCurrentMissionInSequence(req.SequenceIndex)
	default:
		result.Err = fmt.Errorf("%w: %q", ErrUnknownRequest, req.Kind)
	}
	result.Duration = time.Since(startTime)

	if result.Err != nil {
		s.logger.Info().
			Err(result.Err).
			Str("request", string(req.Kind)).
			Int("sequence", req.SequenceIndex).
			Msg("request rejected")
	} else {
		s.logger.Debug().
			Str("request", string(req.Kind)).
			Int("sequence", req.SequenceIndex).
			Msg("request handled")
	}

	s.recordResult(result)
	return result
}

// recordResult records a handled request in stats.
func (s *Scheduler) recordResult(result Result) {
	s.statsMu.Lock()
	s.stats.TotalRequests++
	if result.Success() {
		s.stats.AcceptedRequests++
	} else {
		s.stats.RejectedRequests++
	}
	now := result.Timestamp
	s.stats.LastRequestAt = &now
	s.statsMu.Unlock()

	// Send to result channel (non-blocking)
	select {
	case s.resultCh <- result:
	default:
		// Channel full, drop result
	}
}
