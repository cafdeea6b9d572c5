package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/opencode-ai/missionctl/internal/styles"
)

// columnGap is the number of spaces between columns.
const columnGap = 2

// writeTable aligns rows under headers. Column widths are measured on the
// visible text, so cells holding styled state badges line up with plain ones.
func writeTable(out io.Writer, headers []string, rows [][]string) error {
	lines := rows
	if len(headers) > 0 {
		lines = append([][]string{headers}, rows...)
	}

	widths := make([]int, 0)
	for _, row := range lines {
		for i, cell := range row {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for _, row := range lines {
		for i, cell := range row {
			b.WriteString(cell)
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+columnGap))
			}
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(out, b.String())
	return err
}

// statusCell colors a sequence status label for the status table.
func statusCell(styleSet styles.Styles, status string) string {
	switch status {
	case "running":
		return styleSet.StateStarted.Render(status)
	case "completed":
		return styleSet.StateFinished.Render(status)
	default:
		return styleSet.Muted.Render(status)
	}
}

func formatYesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
