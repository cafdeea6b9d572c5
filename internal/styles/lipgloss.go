package styles

import "github.com/charmbracelet/lipgloss"

// Styles contains lipgloss styles derived from theme tokens.
type Styles struct {
	Theme         Theme
	Title         lipgloss.Style
	Text          lipgloss.Style
	Muted         lipgloss.Style
	Accent        lipgloss.Style
	Border        lipgloss.Style
	Success       lipgloss.Style
	Warning       lipgloss.Style
	Error         lipgloss.Style
	Info          lipgloss.Style
	StateWaiting  lipgloss.Style
	StateStarted  lipgloss.Style
	StateFinished lipgloss.Style
}

// DefaultStyles builds styles from the default theme.
func DefaultStyles() Styles {
	return BuildStyles(DefaultTheme)
}

// PlainStyles returns styles that render text unchanged, for pipes and
// terminals without color.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Theme:         Theme{Name: "plain"},
		Title:         plain,
		Text:          plain,
		Muted:         plain,
		Accent:        plain,
		Border:        plain,
		Success:       plain,
		Warning:       plain,
		Error:         plain,
		Info:          plain,
		StateWaiting:  plain,
		StateStarted:  plain,
		StateFinished: plain,
	}
}

// BuildStyles converts theme tokens into lipgloss styles.
func BuildStyles(theme Theme) Styles {
	tokens := theme.Tokens

	return Styles{
		Theme:         theme,
		Title:         lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Text)).Bold(true),
		Text:          lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Text)),
		Muted:         lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.TextMuted)),
		Accent:        lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Accent)),
		Border:        lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Border)),
		Success:       lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Success)),
		Warning:       lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Warning)),
		Error:         lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Error)),
		Info:          lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Info)),
		StateWaiting:  lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.TextMuted)),
		StateStarted:  lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Accent)).Bold(true),
		StateFinished: lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Success)),
	}
}

// Resolve picks styles for a theme name and color mode.
// Unknown theme names fall back to the default theme.
func Resolve(themeName string, color bool) Styles {
	if !color {
		return PlainStyles()
	}
	theme, ok := ThemeByName(themeName)
	if !ok {
		theme = DefaultTheme
	}
	return BuildStyles(theme)
}
