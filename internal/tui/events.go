package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/opencode-ai/missionctl/internal/engine"
	"github.com/opencode-ai/missionctl/internal/models"
	"github.com/opencode-ai/missionctl/internal/scheduler"
)

// MissionChangedMsg carries a mission state change into the program.
type MissionChangedMsg struct {
	Snapshot models.MissionSnapshot
}

// SnapshotMsg replaces the model's view of every sequence.
type SnapshotMsg struct {
	Sequences []engine.SequenceSnapshot
	Err       error
}

// RequestResultMsg reports the outcome of a submitted request.
type RequestResultMsg struct {
	Result scheduler.Result
	Err    error
}

// PauseToggledMsg reports the loop's paused state after a toggle.
type PauseToggledMsg struct {
	Paused bool
	Err    error
}

// AdvancedMsg reports that simulated time moved forward.
type AdvancedMsg struct {
	By  time.Duration
	Err error
}

// missionForwarder bridges engine observers to the program.
type missionForwarder struct {
	program *tea.Program
}

// Observe implements engine.Observer. Update never waits on the request
// loop, so a blocking Send here cannot deadlock it.
func (f *missionForwarder) Observe(m models.MissionSnapshot) {
	if f.program != nil {
		f.program.Send(MissionChangedMsg{Snapshot: m})
	}
}

func loadSnapshot(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		snaps, err := ctrl.Snapshot(context.Background())
		return SnapshotMsg{Sequences: snaps, Err: err}
	}
}

func submitRequest(ctrl Controller, req scheduler.Request) tea.Cmd {
	return func() tea.Msg {
		result, err := ctrl.Submit(context.Background(), req)
		return RequestResultMsg{Result: result, Err: err}
	}
}

func togglePause(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		paused, err := ctrl.TogglePause()
		return PauseToggledMsg{Paused: paused, Err: err}
	}
}

func advanceTime(ctrl Controller, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.Advance(context.Background(), d)
		return AdvancedMsg{By: d, Err: err}
	}
}
