package cli

import (
	"fmt"
	"io"
	"os"
	"time"
)

// progressOut receives progress lines. Stdout stays clean for tables and JSON.
var progressOut io.Writer = os.Stderr

// progressStep reports one slow CLI step, such as loading sequence files.
// A nil step is valid and prints nothing.
type progressStep struct {
	out     io.Writer
	started time.Time
}

func startProgress(label string) *progressStep {
	if !progressEnabled() {
		return nil
	}
	fmt.Fprintf(progressOut, "%s... ", label)
	return &progressStep{out: progressOut, started: time.Now()}
}

// Done ends the step with an optional summary, e.g. "3 loaded".
func (p *progressStep) Done(format string, args ...any) {
	if p == nil {
		return
	}
	elapsed := formatDuration(time.Since(p.started))
	if format == "" {
		fmt.Fprintf(p.out, "done (%s)\n", elapsed)
		return
	}
	fmt.Fprintf(p.out, "%s (%s)\n", fmt.Sprintf(format, args...), elapsed)
}

func (p *progressStep) Fail(err error) {
	if p == nil {
		return
	}
	elapsed := formatDuration(time.Since(p.started))
	if err != nil {
		fmt.Fprintf(p.out, "failed after %s: %v\n", elapsed, err)
		return
	}
	fmt.Fprintf(p.out, "failed after %s\n", elapsed)
}

func progressEnabled() bool {
	if IsJSONOutput() || IsJSONLOutput() || noProgress {
		return false
	}
	for _, name := range []string{"MISSIONCTL_NO_PROGRESS", "NO_PROGRESS"} {
		if _, ok := os.LookupEnv(name); ok {
			return false
		}
	}
	return true
}

// formatDuration rounds for display. It is also used for simulated time,
// which is never negative but may run to hours.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
