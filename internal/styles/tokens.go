// Package styles provides terminal themes and mission state rendering.
package styles

import (
	"sort"
	"strings"
)

// ThemeTokens defines the semantic color roles for terminal output.
type ThemeTokens struct {
	Text      string
	TextMuted string
	Border    string
	Accent    string
	Success   string
	Warning   string
	Error     string
	Info      string
}

// Theme bundles a palette with a name.
type Theme struct {
	Name   string
	Tokens ThemeTokens
}

// Themes lists available palettes by name.
var Themes = map[string]Theme{
	"default":       DefaultTheme,
	"high-contrast": HighContrastTheme,
}

// ThemeByName looks up a palette case-insensitively.
func ThemeByName(name string) (Theme, bool) {
	theme, ok := Themes[strings.ToLower(strings.TrimSpace(name))]
	return theme, ok
}

// ThemeNames returns the known palette names in sorted order.
func ThemeNames() []string {
	names := make([]string, 0, len(Themes))
	for name := range Themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
