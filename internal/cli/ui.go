package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opencode-ai/missionctl/internal/styles"
	"golang.org/x/term"
)

// PreflightError is returned when a command cannot run in the current
// environment. It carries a hint and a suggested next command.
type PreflightError struct {
	Message  string
	Hint     string
	NextStep string
}

func (e *PreflightError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}
	if e.NextStep != "" {
		b.WriteString("\n  try:  ")
		b.WriteString(e.NextStep)
	}
	return b.String()
}

func hasTTY() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// colorEnabled resolves ui.color against the terminal and NO_COLOR.
func colorEnabled() bool {
	if IsJSONOutput() || IsJSONLOutput() {
		return false
	}
	switch strings.ToLower(GetConfig().UI.Color) {
	case "always":
		return true
	case "never":
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return stdoutIsTerminal()
}

func currentStyles() styles.Styles {
	return styles.Resolve(GetConfig().UI.Theme, colorEnabled())
}

// PrintError reports a command failure, as a JSON object when JSON output is on.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	if IsJSONOutput() || IsJSONLOutput() {
		payload := map[string]string{"error": err.Error()}
		var preflight *PreflightError
		if errors.As(err, &preflight) {
			payload["error"] = preflight.Message
			if preflight.Hint != "" {
				payload["hint"] = preflight.Hint
			}
			if preflight.NextStep != "" {
				payload["next_step"] = preflight.NextStep
			}
		}
		_ = json.NewEncoder(w).Encode(payload)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
