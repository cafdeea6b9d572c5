package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/opencode-ai/missionctl/internal/mission"
	"github.com/opencode-ai/missionctl/internal/models"
	"github.com/opencode-ai/missionctl/internal/timer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, clock timer.Clock, specs ...SequenceSpec) *Registry {
	t.Helper()
	reg := Build(specs, mission.NewStandardFactory(), WithClock(clock), WithLogger(zerolog.Nop()))
	t.Cleanup(reg.Close)
	return reg
}

func TestRegistryStartAndFinishThreeMissions(t *testing.T) {
	reg := newTestRegistry(t, timer.NewManualClock(), SequenceSpec{Name: "a", Missions: missions(3, 0)})
	seq, err := reg.Sequence(0)
	require.NoError(t, err)

	require.NoError(t, reg.StartSequence(0))
	require.Equal(t, models.MissionStateStarted, states(seq)[0])

	require.NoError(t, reg.FinishCurrentMissionInSequence(0))
	require.Equal(t, models.MissionStateFinished, states(seq)[0])
	require.Equal(t, models.MissionStateStarted, states(seq)[1])
	require.Equal(t, 1, seq.Cursor())
}

func TestRegistryDelayedSingleMission(t *testing.T) {
	clock := timer.NewManualClock()
	reg := newTestRegistry(t, clock, SequenceSpec{Name: "b", Missions: missions(1, 5*time.Second)})
	seq, _ := reg.Sequence(0)

	require.NoError(t, reg.StartSequence(0))
	require.Equal(t, models.MissionStateWaiting, states(seq)[0])

	clock.Advance(5 * time.Second)
	require.Equal(t, models.MissionStateStarted, states(seq)[0])
}

func TestRegistryFinishBeforeStartIsNoop(t *testing.T) {
	reg := newTestRegistry(t, timer.NewManualClock(), SequenceSpec{Missions: missions(2, 0)})

	events := 0
	reg.Subscribe(func(models.MissionSnapshot) { events++ })

	require.NoError(t, reg.FinishCurrentMissionInSequence(0))
	require.Equal(t, 0, events)
}

func TestRegistryRejectsOutOfRangeIndex(t *testing.T) {
	reg := newTestRegistry(t, timer.NewManualClock(),
		SequenceSpec{Name: "a", Missions: missions(2, 0)},
		SequenceSpec{Name: "b", Missions: missions(2, 0)},
	)
	before := reg.Snapshot()

	for _, index := range []int{-1, 2, 100} {
		err := reg.StartSequence(index)
		require.True(t, errors.Is(err, ErrSequenceIndexOutOfRange), "index %d: %v", index, err)

		err = reg.FinishCurrentMissionInSequence(index)
		require.True(t, errors.Is(err, ErrSequenceIndexOutOfRange), "index %d: %v", index, err)

		_, err = reg.Sequence(index)
		require.True(t, errors.Is(err, ErrSequenceIndexOutOfRange))
	}

	after := reg.Snapshot()
	require.Equal(t, len(before), len(after))
	for i := range before {
		require.Equal(t, before[i].Cursor, after[i].Cursor)
		require.Equal(t, before[i].Started, after[i].Started)
		require.Equal(t, before[i].Stats, after[i].Stats)
	}
}

func TestRegistryStartSequenceOnlyOnce(t *testing.T) {
	reg := newTestRegistry(t, timer.NewManualClock(), SequenceSpec{Missions: missions(3, 0)})
	seq, _ := reg.Sequence(0)

	require.NoError(t, reg.StartSequence(0))
	require.NoError(t, reg.FinishCurrentMissionInSequence(0))

	err := reg.StartSequence(0)
	require.True(t, errors.Is(err, ErrSequenceAlreadyStarted), "got %v", err)
	require.Equal(t, 1, seq.Cursor())
}

func TestRegistrySequencesAreIndependent(t *testing.T) {
	reg := newTestRegistry(t, timer.NewManualClock(),
		SequenceSpec{Name: "a", Missions: missions(2, 0)},
		SequenceSpec{Name: "b", Missions: missions(2, 0)},
	)

	require.NoError(t, reg.StartSequence(1))

	a, _ := reg.Sequence(0)
	b, _ := reg.Sequence(1)
	require.False(t, a.Started())
	require.True(t, b.Started())
	require.Equal(t, 1, b.Index())
	require.Equal(t, "b", b.Name())
}

func TestRegistrySubscribeFansIn(t *testing.T) {
	reg := newTestRegistry(t, timer.NewManualClock(),
		SequenceSpec{Name: "a", Missions: missions(1, 0)},
		SequenceSpec{Name: "b", Missions: missions(1, 0)},
	)

	var seen []string
	sub := reg.Subscribe(func(m models.MissionSnapshot) {
		seen = append(seen, m.SequenceName+":"+string(m.State))
	})

	require.NoError(t, reg.StartSequence(0))
	require.NoError(t, reg.StartSequence(1))
	require.Equal(t, []string{"a:started", "b:started"}, seen)

	sub.Unsubscribe()
	require.NoError(t, reg.FinishCurrentMissionInSequence(0))
	require.Len(t, seen, 2)
}

func TestRegistryCloseCancelsTimers(t *testing.T) {
	clock := timer.NewManualClock()
	reg := Build([]SequenceSpec{{Missions: missions(1, time.Second)}}, nil, WithClock(clock), WithLogger(zerolog.Nop()))

	require.NoError(t, reg.StartSequence(0))
	reg.Close()
	clock.Advance(time.Minute)

	seq, _ := reg.Sequence(0)
	require.Equal(t, models.MissionStateWaiting, states(seq)[0])
}
