package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/opencode-ai/missionctl/internal/models"
	"github.com/opencode-ai/missionctl/internal/styles"
)

// stateRenderer prints one line per mission state change.
type stateRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles styles.Styles
	json   bool
}

func newStateRenderer(out io.Writer, styleSet styles.Styles, asJSON bool) *stateRenderer {
	return &stateRenderer{out: out, styles: styleSet, json: asJSON}
}

// Observe implements engine.Observer.
func (r *stateRenderer) Observe(m models.MissionSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.json {
		data, err := json.Marshal(m)
		if err != nil {
			return
		}
		fmt.Fprintln(r.out, string(data))
		return
	}

	fmt.Fprintln(r.out, formatMissionLine(r.styles, m))
}

// setOutput swaps the destination, e.g. to the readline writer.
func (r *stateRenderer) setOutput(out io.Writer) {
	r.mu.Lock()
	r.out = out
	r.mu.Unlock()
}

func formatMissionLine(styleSet styles.Styles, m models.MissionSnapshot) string {
	sequence := m.SequenceName
	if sequence == "" {
		sequence = fmt.Sprintf("sequence %d", m.SequenceIndex)
	}
	name := m.Name
	if name == "" {
		name = m.ID
	}
	return fmt.Sprintf("%s %s %s %s",
		styleSet.Muted.Render(fmt.Sprintf("[%d:%s]", m.SequenceIndex, sequence)),
		styleSet.Muted.Render(fmt.Sprintf("%d/%d", m.Index+1, m.SequenceSize)),
		styleSet.Text.Render(name),
		styles.RenderMissionStateBadge(styleSet, m.State),
	)
}

// syncWriter serializes writes from the shell and the loop goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newSyncWriter(w io.Writer) *syncWriter {
	return &syncWriter{w: w}
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
