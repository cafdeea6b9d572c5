package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opencode-ai/missionctl/internal/engine"
	"github.com/opencode-ai/missionctl/internal/mission"
	"github.com/opencode-ai/missionctl/internal/models"
	"github.com/opencode-ai/missionctl/internal/timer"
	"github.com/rs/zerolog"
)

func runRecorder(t *testing.T, rec *Recorder) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rec.Run(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("recorder did not stop")
		}
	}
}

func TestRecorderJournalsSequenceLifecycle(t *testing.T) {
	repo := &fakeRepo{}
	rec := NewRecorder(repo, 0)
	rec.SetLogger(zerolog.Nop())

	reg := engine.Build([]engine.SequenceSpec{{
		Name: "pair",
		Missions: []mission.Data{
			{ID: "one", Name: "One"},
			{ID: "two", Name: "Two"},
		},
	}}, nil, engine.WithClock(timer.NewManualClock()), engine.WithLogger(zerolog.Nop()))
	defer reg.Close()

	sub := rec.Attach(reg)
	defer sub.Unsubscribe()
	stop := runRecorder(t, rec)

	if err := reg.StartSequence(0); err != nil {
		t.Fatalf("StartSequence: %v", err)
	}
	if err := reg.FinishCurrentMissionInSequence(0); err != nil {
		t.Fatalf("finish 1: %v", err)
	}
	if err := reg.FinishCurrentMissionInSequence(0); err != nil {
		t.Fatalf("finish 2: %v", err)
	}
	stop()

	want := []models.EventType{
		models.EventTypeMissionStarted,
		models.EventTypeSequenceStarted,
		models.EventTypeMissionFinished,
		models.EventTypeMissionStarted,
		models.EventTypeMissionFinished,
		models.EventTypeSequenceCompleted,
	}
	got := repo.types()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s (all: %v)", i, want[i], got[i], got)
		}
	}
	if rec.Written() != int64(len(want)) {
		t.Fatalf("expected %d written, got %d", len(want), rec.Written())
	}
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	rec := NewRecorder(&fakeRepo{}, 1)
	rec.SetLogger(zerolog.Nop())

	// No Run goroutine: the first entry fills the queue.
	rec.RecordRejection("start_sequence", 0, errors.New("a"))
	rec.RecordRejection("start_sequence", 0, errors.New("b"))
	rec.RecordRejection("start_sequence", 0, nil)

	if rec.Dropped() != 1 {
		t.Fatalf("expected 1 dropped entry, got %d", rec.Dropped())
	}
}

func TestRecorderLogsWriteFailures(t *testing.T) {
	repo := &fakeRepo{err: errors.New("disk full")}
	rec := NewRecorder(repo, 4)
	rec.SetLogger(zerolog.Nop())

	rec.RecordRejection("finish_mission", 1, errors.New("nothing to finish"))
	stop := runRecorder(t, rec)
	stop()

	if rec.Written() != 0 {
		t.Fatalf("expected no writes, got %d", rec.Written())
	}
}
