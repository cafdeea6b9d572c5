package styles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/opencode-ai/missionctl/internal/models"
)

// RenderMissionStateBadge renders a mission state with icon and color.
func RenderMissionStateBadge(styleSet Styles, state models.MissionState) string {
	icon, label, style := stateDescriptor(styleSet, state)
	return style.Render(fmt.Sprintf("%s %s", icon, label))
}

// RenderProgress renders "finished/total" with a short bar.
func RenderProgress(styleSet Styles, finished, total int) string {
	const width = 10
	if total <= 0 {
		return styleSet.Muted.Render("[" + strings.Repeat(".", width) + "] 0/0")
	}
	if finished > total {
		finished = total
	}
	filled := finished * width / total
	bar := styleSet.Success.Render(strings.Repeat("#", filled)) +
		styleSet.Muted.Render(strings.Repeat(".", width-filled))
	return fmt.Sprintf("[%s] %d/%d", bar, finished, total)
}

func stateDescriptor(styleSet Styles, state models.MissionState) (string, string, lipgloss.Style) {
	switch state {
	case models.MissionStateWaiting:
		return "..", "Waiting", styleSet.StateWaiting
	case models.MissionStateStarted:
		return ">", "Started", styleSet.StateStarted
	case models.MissionStateFinished:
		return "OK", "Finished", styleSet.StateFinished
	default:
		return "-", normalizeStateLabel(state), styleSet.Muted
	}
}

func normalizeStateLabel(state models.MissionState) string {
	value := strings.TrimSpace(strings.ReplaceAll(string(state), "_", " "))
	if value == "" {
		return "Unknown"
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
