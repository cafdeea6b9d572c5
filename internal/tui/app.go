// Package tui implements the missionctl terminal dashboard.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/opencode-ai/missionctl/internal/engine"
	"github.com/opencode-ai/missionctl/internal/models"
	"github.com/opencode-ai/missionctl/internal/scheduler"
	"github.com/opencode-ai/missionctl/internal/styles"
	"github.com/opencode-ai/missionctl/internal/timer"
)

// Controller is what the dashboard drives.
type Controller interface {
	Submit(ctx context.Context, req scheduler.Request) (scheduler.Result, error)
	Snapshot(ctx context.Context) ([]engine.SequenceSnapshot, error)
	TogglePause() (bool, error)
	Advance(ctx context.Context, d time.Duration) error
	Simulated() bool
}

// LoopController drives a registry through a running scheduler.
type LoopController struct {
	Scheduler *scheduler.Scheduler
	Registry  *engine.Registry
	// Manual is set when time is simulated.
	Manual *timer.ManualClock
}

func (c *LoopController) Submit(ctx context.Context, req scheduler.Request) (scheduler.Result, error) {
	return c.Scheduler.Submit(ctx, req)
}

func (c *LoopController) Snapshot(ctx context.Context) ([]engine.SequenceSnapshot, error) {
	var snaps []engine.SequenceSnapshot
	err := c.Scheduler.Do(ctx, func() { snaps = c.Registry.Snapshot() })
	return snaps, err
}

func (c *LoopController) TogglePause() (bool, error) {
	if c.Scheduler.Stats().Paused {
		return false, c.Scheduler.Resume()
	}
	return true, c.Scheduler.Pause()
}

func (c *LoopController) Advance(ctx context.Context, d time.Duration) error {
	if c.Manual == nil {
		return errors.New("time is not simulated")
	}
	return c.Scheduler.Do(ctx, func() { c.Manual.Advance(d) })
}

func (c *LoopController) Simulated() bool {
	return c.Manual != nil
}

// Run launches the dashboard and blocks until it quits or ctx ends.
func Run(ctx context.Context, ctrl *LoopController, styleSet styles.Styles) error {
	program := tea.NewProgram(initialModel(ctrl, styleSet), tea.WithAltScreen(), tea.WithContext(ctx))

	forwarder := &missionForwarder{program: program}
	sub := ctrl.Registry.Subscribe(forwarder.Observe)
	defer sub.Unsubscribe()

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type model struct {
	ctrl   Controller
	width  int
	height int
	styles styles.Styles

	sequences []engine.SequenceSnapshot
	selected  int
	paused    bool
	status    string
	statusErr bool

	lastUpdated time.Time
	now         time.Time
}

const (
	minWidth    = 60
	minHeight   = 12
	advanceStep = time.Second
)

func initialModel(ctrl Controller, styleSet styles.Styles) model {
	return model{
		ctrl:   ctrl,
		styles: styleSet,
		now:    time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(loadSnapshot(m.ctrl), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	case SnapshotMsg:
		if msg.Err != nil {
			m.setStatus(msg.Err.Error(), true)
			return m, nil
		}
		m.sequences = msg.Sequences
		m.lastUpdated = m.now
		if m.selected >= len(m.sequences) {
			m.selected = max(len(m.sequences)-1, 0)
		}
	case MissionChangedMsg:
		m.applyMission(msg.Snapshot)
		return m, loadSnapshot(m.ctrl)
	case RequestResultMsg:
		switch {
		case msg.Err != nil:
			m.setStatus(msg.Err.Error(), true)
		case !msg.Result.Success():
			m.setStatus("rejected: "+msg.Result.Err.Error(), true)
		default:
			m.setStatus(fmt.Sprintf("%s %d accepted", msg.Result.Request.Kind, msg.Result.Request.SequenceIndex), false)
		}
		return m, loadSnapshot(m.ctrl)
	case PauseToggledMsg:
		if msg.Err != nil {
			m.setStatus(msg.Err.Error(), true)
			return m, nil
		}
		m.paused = msg.Paused
		if m.paused {
			m.setStatus("requests held", false)
		} else {
			m.setStatus("requests released", false)
		}
	case AdvancedMsg:
		if msg.Err != nil {
			m.setStatus(msg.Err.Error(), true)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("advanced %s", msg.By), false)
		return m, loadSnapshot(m.ctrl)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.sequences)-1 {
			m.selected++
		}
	case "s", "enter":
		return m, submitRequest(m.ctrl, scheduler.Request{Kind: scheduler.RequestStartSequence, SequenceIndex: m.selected})
	case "f":
		return m, submitRequest(m.ctrl, scheduler.Request{Kind: scheduler.RequestFinishMission, SequenceIndex: m.selected})
	case "p":
		return m, togglePause(m.ctrl)
	case "w":
		if !m.ctrl.Simulated() {
			m.setStatus("time is not simulated", true)
			return m, nil
		}
		return m, advanceTime(m.ctrl, advanceStep)
	case "r":
		return m, loadSnapshot(m.ctrl)
	}
	return m, nil
}

// applyMission patches a single mission so the view updates before the
// follow-up snapshot arrives.
func (m *model) applyMission(snap models.MissionSnapshot) {
	if snap.SequenceIndex < 0 || snap.SequenceIndex >= len(m.sequences) {
		return
	}
	seq := &m.sequences[snap.SequenceIndex]
	if snap.Index < 0 || snap.Index >= len(seq.Missions) {
		return
	}
	seq.Missions[snap.Index] = snap
	m.setStatus(fmt.Sprintf("%s: %s %s", seq.Name, snap.Name, strings.ToLower(snap.State.String())), false)
}

func (m *model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m model) View() string {
	if m.width > 0 && m.height > 0 {
		if m.width < minWidth || m.height < minHeight {
			return fmt.Sprintf("%s\n", joinLines(m.smallViewLines()))
		}
	}

	title := "missionctl"
	if m.paused {
		title += " (paused)"
	}
	lines := []string{
		m.styles.Title.Render(title),
		"",
	}

	lines = append(lines, m.sequenceLines()...)
	lines = append(lines, "", m.statusLine())
	lines = append(lines, "", m.styles.Muted.Render(m.lastUpdatedLine()))

	shortcuts := "Shortcuts: q quit | j/k select | s start | f finish | p pause | r refresh"
	if m.ctrl != nil && m.ctrl.Simulated() {
		shortcuts += " | w +1s"
	}
	lines = append(lines, "", m.styles.Muted.Render(shortcuts))

	return fmt.Sprintf("%s\n", joinLines(lines))
}

func (m model) sequenceLines() []string {
	if len(m.sequences) == 0 {
		return []string{m.styles.Muted.Render("No sequences loaded.")}
	}

	var lines []string
	for i, seq := range m.sequences {
		cursor := "  "
		nameStyle := m.styles.Text
		if i == m.selected {
			cursor = m.styles.Accent.Render("> ")
			nameStyle = m.styles.Accent
		}
		lines = append(lines, fmt.Sprintf("%s%s %s",
			cursor,
			nameStyle.Render(fmt.Sprintf("%d %s", seq.Index, seq.Name)),
			styles.RenderProgress(m.styles, seq.Stats.Finished, seq.Stats.Total),
		))

		if i != m.selected {
			continue
		}
		for _, mission := range seq.Missions {
			marker := "   "
			if mission.Index == seq.Cursor && !seq.Completed {
				marker = " * "
			}
			lines = append(lines, fmt.Sprintf("  %s%s %s",
				marker,
				m.styles.Text.Render(mission.Name),
				styles.RenderMissionStateBadge(m.styles, mission.State),
			))
		}
	}
	return lines
}

func (m model) statusLine() string {
	if m.status == "" {
		return m.styles.Muted.Render("Ready.")
	}
	if m.statusErr {
		return m.styles.Warning.Render(m.status)
	}
	return m.styles.Text.Render(m.status)
}

func (m model) smallViewLines() []string {
	message := fmt.Sprintf("Terminal too small (%dx%d).", m.width, m.height)
	hint := fmt.Sprintf("Resize to at least %dx%d.", minWidth, minHeight)

	return []string{
		m.styles.Warning.Render(message),
		m.styles.Muted.Render(hint),
		m.styles.Muted.Render("Press q to quit."),
	}
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) lastUpdatedLine() string {
	if m.lastUpdated.IsZero() {
		return "Last updated: --"
	}
	return fmt.Sprintf("Last updated: %s", m.lastUpdated.Format("15:04:05"))
}
