// Package engine implements mission sequencing: ordered missions advanced by
// a cursor, and the registry that dispatches requests to sequences by index.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opencode-ai/missionctl/internal/mission"
	"github.com/opencode-ai/missionctl/internal/models"
	"github.com/rs/zerolog"
)

// SequenceSpec is the construction-time description of a sequence.
type SequenceSpec struct {
	Name string

	// TotalDelay, when positive, replaces every mission's start delay.
	TotalDelay time.Duration

	// Missions in execution order.
	Missions []mission.Data
}

// Stats are advisory counters kept in step with mission events. They are
// never consulted for control decisions.
type Stats struct {
	Total    int `json:"total"`
	Waiting  int `json:"waiting"`
	Started  int `json:"started"`
	Finished int `json:"finished"`
}

// SequenceSnapshot is a point-in-time view of a whole sequence.
type SequenceSnapshot struct {
	Index     int                      `json:"index"`
	Name      string                   `json:"name"`
	Cursor    int                      `json:"cursor"`
	Started   bool                     `json:"started"`
	Completed bool                     `json:"completed"`
	Stats     Stats                    `json:"stats"`
	Missions  []models.MissionSnapshot `json:"missions"`
}

type entry struct {
	index       int
	data        mission.Data
	realization mission.Realization // nil when the kind could not be resolved
	sub         mission.Subscription
}

// Sequence is an ordered list of missions with a cursor. At most one mission
// is active at a time; finishing it starts the next one.
type Sequence struct {
	index   int
	name    string
	entries []*entry
	logger  zerolog.Logger
	now     func() time.Time

	// mu serializes StartNewMission and FinishCurrentMission.
	mu      sync.Mutex
	cursor  int
	current *entry
	started bool

	statsMu sync.Mutex
	stats   Stats

	// Mission events raised while an operation holds mu are queued and
	// delivered in order once no operation holds it.
	outboxMu   sync.Mutex
	outbox     []models.MissionSnapshot
	holding    int
	delivering bool

	observers observerSet
}

// NewSequence builds a sequence from spec. Missions whose kind cannot be
// resolved by factory keep their position but stay inert.
func NewSequence(index int, spec SequenceSpec, factory *mission.Factory, opts ...Option) *Sequence {
	o := buildOptions(opts)
	if factory == nil {
		factory = mission.NewStandardFactory()
	}

	s := &Sequence{
		index:   index,
		name:    spec.Name,
		entries: make([]*entry, 0, len(spec.Missions)),
		logger:  o.logger.With().Int("sequence", index).Str("sequence_name", spec.Name).Logger(),
		now:     o.now,
		cursor:  -1,
	}

	for i, data := range spec.Missions {
		if spec.TotalDelay > 0 {
			data.Delay = spec.TotalDelay
		}
		e := &entry{index: i, data: data}
		s.entries = append(s.entries, e)

		missionLogger := s.logger.With().Str("mission_id", data.ID).Int("index", i).Logger()
		realization, err := factory.Resolve(data.Kind, mission.Options{Clock: o.clock, Logger: &missionLogger})
		if err != nil {
			missionLogger.Error().Err(err).Str("kind", data.Kind).Msg("mission realization unavailable; mission is inert")
			continue
		}
		e.realization = realization
		e.sub = realization.Subscribe(mission.Handlers{
			OnStarted:  func() { s.onMissionStarted(e) },
			OnFinished: func() { s.onMissionFinished(e) },
		})
		s.stats.Waiting++
	}
	s.stats.Total = len(s.entries)

	return s
}

// Index returns the sequence's position in its registry.
func (s *Sequence) Index() int { return s.index }

// Name returns the authored sequence name.
func (s *Sequence) Name() string { return s.name }

// Len returns the number of missions.
func (s *Sequence) Len() int { return len(s.entries) }

// Cursor returns the index of the active mission, or -1 before the first start.
func (s *Sequence) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Started reports whether StartNewMission has ever succeeded.
func (s *Sequence) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Completed reports whether every mission has been consumed.
func (s *Sequence) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedLocked()
}

func (s *Sequence) completedLocked() bool {
	if s.current != nil {
		return false
	}
	return s.cursor >= len(s.entries)-1
}

// Current returns a snapshot of the active mission.
func (s *Sequence) Current() (models.MissionSnapshot, bool) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current == nil {
		return models.MissionSnapshot{}, false
	}
	return s.snapshotOf(current, current.realization.State()), true
}

// Mission returns a snapshot of the mission at index i.
func (s *Sequence) Mission(i int) (models.MissionSnapshot, error) {
	if i < 0 || i >= len(s.entries) {
		return models.MissionSnapshot{}, fmt.Errorf("%w: %d", ErrMissionIndexOutOfRange, i)
	}
	e := s.entries[i]
	return s.snapshotOf(e, stateOf(e)), nil
}

// Realization returns the realization bound to mission i, or nil if inert.
func (s *Sequence) Realization(i int) mission.Realization {
	if i < 0 || i >= len(s.entries) {
		return nil
	}
	return s.entries[i].realization
}

// Stats returns a copy of the aggregate counters.
func (s *Sequence) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Snapshot returns a view of the sequence and all its missions.
func (s *Sequence) Snapshot() SequenceSnapshot {
	s.mu.Lock()
	snap := SequenceSnapshot{
		Index:     s.index,
		Name:      s.name,
		Cursor:    s.cursor,
		Started:   s.started,
		Completed: s.completedLocked(),
	}
	s.mu.Unlock()

	snap.Stats = s.Stats()
	snap.Missions = make([]models.MissionSnapshot, 0, len(s.entries))
	for _, e := range s.entries {
		snap.Missions = append(snap.Missions, s.snapshotOf(e, stateOf(e)))
	}
	return snap
}

// OnCurrentMissionStateChanged registers an observer that runs after the
// counters are updated for every mission start or finish. Observers are
// never invoked while the sequence lock is held, so they may read the
// sequence or issue further requests.
func (s *Sequence) OnCurrentMissionStateChanged(fn Observer) mission.Subscription {
	return s.observers.add(fn)
}

// StartNewMission starts the mission after the cursor. Inert missions are
// passed over. ErrSequenceComplete is returned once no missions remain.
func (s *Sequence) StartNewMission() error {
	s.lock()
	defer s.unlock()
	return s.startNextLocked()
}

// FinishCurrentMission finishes the active mission and advances to the next.
// It is a no-op when no mission is current.
func (s *Sequence) FinishCurrentMission() error {
	s.lock()
	defer s.unlock()

	if s.current == nil {
		return nil
	}

	current := s.current
	if state := current.realization.State(); state != models.MissionStateStarted {
		s.logger.Info().
			Str("mission_id", current.data.ID).
			Str("state", string(state)).
			Msg("there is no started mission to finish")
		return ErrNothingToFinish
	}

	current.realization.Finish()
	s.current = nil

	err := s.startNextLocked()
	if errors.Is(err, ErrSequenceComplete) {
		return nil
	}
	return err
}

// Close unsubscribes from every mission and tears the missions down.
func (s *Sequence) Close() {
	for _, e := range s.entries {
		if e.sub != nil {
			e.sub.Unsubscribe()
		}
		if e.realization != nil {
			e.realization.Close()
		}
	}
	s.observers.clear()
}

func (s *Sequence) startNextLocked() error {
	for {
		next := s.cursor + 1
		if next >= len(s.entries) {
			s.logger.Info().Int("cursor", s.cursor).Msg("sequence completed")
			return ErrSequenceComplete
		}

		err := s.startAtLocked(next)
		if errors.Is(err, ErrMissingRealization) {
			continue
		}
		return err
	}
}

func (s *Sequence) startAtLocked(index int) error {
	if index < 0 || index >= len(s.entries) {
		s.logger.Error().Int("index", index).Msg("mission pointer is out of range")
		return fmt.Errorf("%w: %d", ErrMissionIndexOutOfRange, index)
	}

	if s.current != nil {
		switch s.current.realization.State() {
		case models.MissionStateStarted:
			s.logger.Info().Str("mission_id", s.current.data.ID).Msg("complete the current mission before starting the next")
			return ErrMissionActive
		case models.MissionStateFinished:
			// Unreachable while FinishCurrentMission clears current before
			// advancing; kept so a finished mission is never silently skipped.
			s.logger.Info().Str("mission_id", s.current.data.ID).Msg("wait until the next mission has been started")
			return ErrAwaitingAdvance
		case models.MissionStateWaiting:
			s.logger.Info().Str("mission_id", s.current.data.ID).Msg("current mission has not started yet")
			return ErrMissionPending
		}
	}

	e := s.entries[index]
	s.cursor = index
	s.started = true

	if e.realization == nil {
		s.current = nil
		s.logger.Error().Str("mission_id", e.data.ID).Int("index", index).Msg("skipping inert mission")
		return fmt.Errorf("%w: mission %q", ErrMissingRealization, e.data.ID)
	}

	s.current = e
	s.logger.Info().
		Str("mission_id", e.data.ID).
		Int("index", index).
		Dur("delay", e.data.Delay).
		Msg("starting mission")
	e.realization.Start(e.data.Delay, nil)
	return nil
}

func (s *Sequence) onMissionStarted(e *entry) {
	s.statsMu.Lock()
	s.stats.Started++
	if s.stats.Waiting > 0 {
		s.stats.Waiting--
	}
	s.statsMu.Unlock()

	s.publish(s.snapshotOf(e, models.MissionStateStarted))
}

func (s *Sequence) onMissionFinished(e *entry) {
	s.statsMu.Lock()
	s.stats.Finished++
	if s.stats.Started > 0 {
		s.stats.Started--
	}
	s.statsMu.Unlock()

	s.publish(s.snapshotOf(e, models.MissionStateFinished))
}

// lock takes mu for an operation that may raise mission events.
func (s *Sequence) lock() {
	s.mu.Lock()
	s.outboxMu.Lock()
	s.holding++
	s.outboxMu.Unlock()
}

// unlock releases mu and delivers the events the operation raised.
func (s *Sequence) unlock() {
	s.mu.Unlock()
	s.outboxMu.Lock()
	s.holding--
	s.drainLocked()
}

func (s *Sequence) publish(snapshot models.MissionSnapshot) {
	s.outboxMu.Lock()
	s.outbox = append(s.outbox, snapshot)
	s.drainLocked()
}

// drainLocked is called with outboxMu held and returns with it released.
// Only one goroutine delivers at a time; events queued meanwhile, including
// those raised by observers themselves, are picked up by the same loop.
func (s *Sequence) drainLocked() {
	if s.holding > 0 || s.delivering {
		s.outboxMu.Unlock()
		return
	}
	s.delivering = true
	for len(s.outbox) > 0 {
		snapshot := s.outbox[0]
		s.outbox = s.outbox[1:]
		s.outboxMu.Unlock()

		s.observers.notify(snapshot)

		s.outboxMu.Lock()
	}
	s.outbox = nil
	s.delivering = false
	s.outboxMu.Unlock()
}

func (s *Sequence) snapshotOf(e *entry, state models.MissionState) models.MissionSnapshot {
	return models.MissionSnapshot{
		SequenceIndex: s.index,
		SequenceName:  s.name,
		SequenceSize:  len(s.entries),
		Index:         e.index,
		ID:            e.data.ID,
		Name:          e.data.Name,
		Description:   e.data.Description,
		State:         state,
		Timestamp:     s.now(),
	}
}

func stateOf(e *entry) models.MissionState {
	if e.realization == nil {
		return models.MissionStateWaiting
	}
	return e.realization.State()
}
