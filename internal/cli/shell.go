package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/opencode-ai/missionctl/internal/engine"
	"github.com/opencode-ai/missionctl/internal/models"
	"github.com/opencode-ai/missionctl/internal/scheduler"
	"github.com/opencode-ai/missionctl/internal/styles"
	"github.com/opencode-ai/missionctl/internal/timer"
)

var errQuit = errors.New("quit")

const shellHelp = `Commands:
  start <seq>        start the first mission of a sequence (index or name)
  finish <seq>       finish the active mission and advance
  status [seq]       show sequence progress
  missions <seq>     list the missions of a sequence
  wait <duration>    let time pass, e.g. "wait 2s"
  pause | resume     hold or release request handling
  stats              show request loop statistics
  help               show this help
  quit               leave the shell`

// shell executes command lines against the request loop.
type shell struct {
	sched  *scheduler.Scheduler
	reg    *engine.Registry
	styles styles.Styles
	json   bool

	// manual is set when time is simulated; wait advances it on the loop.
	manual *timer.ManualClock

	mu  sync.Mutex
	out io.Writer
}

func (s *shell) setOutput(out io.Writer) {
	s.mu.Lock()
	s.out = out
	s.mu.Unlock()
}

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *shell) output() io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// run reads lines until EOF, interrupt, quit or ctx cancellation.
func (s *shell) run(ctx context.Context, in lineReader) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := in.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}

		err = s.exec(ctx, line)
		switch {
		case err == nil:
		case errors.Is(err, errQuit):
			return nil
		case errors.Is(err, scheduler.ErrSchedulerNotRunning):
			return err
		default:
			s.printf("%s\n", s.styles.Error.Render("error: "+err.Error()))
		}
	}
}

// exec runs a single command line.
func (s *shell) exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	fields := strings.Fields(line)
	command, args := strings.ToLower(fields[0]), fields[1:]

	switch command {
	case "start":
		return s.request(ctx, scheduler.RequestStartSequence, args)
	case "finish":
		return s.request(ctx, scheduler.RequestFinishMission, args)
	case "status":
		return s.status(ctx, args)
	case "missions":
		return s.missions(ctx, args)
	case "wait":
		return s.wait(ctx, args)
	case "pause":
		return s.sched.Pause()
	case "resume":
		return s.sched.Resume()
	case "stats":
		return s.stats()
	case "help", "?":
		s.printf("%s\n", shellHelp)
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", command)
	}
}

func (s *shell) request(ctx context.Context, kind scheduler.RequestKind, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <seq>", requestVerb(kind))
	}
	index, err := s.resolveSequence(args[0])
	if err != nil {
		return err
	}

	result, err := s.sched.Submit(ctx, scheduler.Request{Kind: kind, SequenceIndex: index})
	if err != nil {
		return err
	}
	if !result.Success() {
		s.printf("%s\n", s.styles.Warning.Render("rejected: "+result.Err.Error()))
		return nil
	}

	if kind == scheduler.RequestStartSequence {
		var current models.MissionSnapshot
		var ok bool
		if err := s.sched.Do(ctx, func() { current, ok = s.currentOf(index) }); err != nil {
			return err
		}
		if ok && current.State == models.MissionStateWaiting {
			s.printf("%s\n", s.styles.Muted.Render(fmt.Sprintf("%q is waiting for its start delay", current.Name)))
		}
	}
	return nil
}

func (s *shell) currentOf(index int) (models.MissionSnapshot, bool) {
	seq, err := s.reg.Sequence(index)
	if err != nil {
		return models.MissionSnapshot{}, false
	}
	return seq.Current()
}

// resolveSequence accepts an index or a case-insensitive sequence name.
// Indices are passed through unchecked so the registry reports range errors.
func (s *shell) resolveSequence(arg string) (int, error) {
	if index, err := strconv.Atoi(arg); err == nil {
		return index, nil
	}
	for _, seq := range s.reg.Sequences() {
		if strings.EqualFold(seq.Name(), arg) {
			return seq.Index(), nil
		}
	}
	return 0, fmt.Errorf("unknown sequence %q", arg)
}

func (s *shell) snapshot(ctx context.Context) ([]engine.SequenceSnapshot, error) {
	var snaps []engine.SequenceSnapshot
	if err := s.sched.Do(ctx, func() { snaps = s.reg.Snapshot() }); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (s *shell) status(ctx context.Context, args []string) error {
	snaps, err := s.snapshot(ctx)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		index, err := s.resolveSequence(args[0])
		if err != nil {
			return err
		}
		if index < 0 || index >= len(snaps) {
			return fmt.Errorf("%w: %d", engine.ErrSequenceIndexOutOfRange, index)
		}
		snaps = snaps[index : index+1]
	}

	if s.json {
		return WriteOutput(s.output(), snaps)
	}

	rows := make([][]string, 0, len(snaps))
	for _, snap := range snaps {
		current := "-"
		if snap.Cursor >= 0 && snap.Cursor < len(snap.Missions) && !snap.Completed {
			m := snap.Missions[snap.Cursor]
			current = fmt.Sprintf("%s %s", m.Name, styles.RenderMissionStateBadge(s.styles, m.State))
		}
		rows = append(rows, []string{
			strconv.Itoa(snap.Index),
			snap.Name,
			statusCell(s.styles, sequenceStatus(snap)),
			current,
			styles.RenderProgress(s.styles, snap.Stats.Finished, snap.Stats.Total),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeTable(s.out, []string{"SEQ", "NAME", "STATUS", "CURRENT", "PROGRESS"}, rows)
}

func (s *shell) missions(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: missions <seq>")
	}
	index, err := s.resolveSequence(args[0])
	if err != nil {
		return err
	}
	snaps, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(snaps) {
		return fmt.Errorf("%w: %d", engine.ErrSequenceIndexOutOfRange, index)
	}
	snap := snaps[index]

	if s.json {
		return WriteOutput(s.output(), snap.Missions)
	}

	rows := make([][]string, 0, len(snap.Missions))
	for _, m := range snap.Missions {
		marker := ""
		if m.Index == snap.Cursor && !snap.Completed {
			marker = "*"
		}
		rows = append(rows, []string{
			marker + strconv.Itoa(m.Index),
			m.ID,
			m.Name,
			styles.RenderMissionStateBadge(s.styles, m.State),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeTable(s.out, []string{"#", "ID", "NAME", "STATE"}, rows)
}

func (s *shell) wait(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: wait <duration>")
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", args[0], err)
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative")
	}

	if s.manual != nil {
		return s.sched.Do(ctx, func() { s.manual.Advance(d) })
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (s *shell) stats() error {
	stats := s.sched.Stats()
	if s.json {
		return WriteOutput(s.output(), stats)
	}

	rows := [][]string{
		{"running", formatYesNo(stats.Running)},
		{"paused", formatYesNo(stats.Paused)},
		{"requests", strconv.FormatInt(stats.TotalRequests, 10)},
		{"accepted", strconv.FormatInt(stats.AcceptedRequests, 10)},
		{"rejected", strconv.FormatInt(stats.RejectedRequests, 10)},
		{"timers fired", strconv.FormatInt(stats.TimersFired, 10)},
		{"abandoned", strconv.FormatInt(stats.AbandonedRequests, 10)},
	}
	if s.manual != nil {
		rows = append(rows, []string{"simulated time", formatDuration(s.manual.Elapsed())})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeTable(s.out, nil, rows)
}

func sequenceStatus(snap engine.SequenceSnapshot) string {
	switch {
	case snap.Completed && snap.Started:
		return "completed"
	case snap.Completed:
		return "empty"
	case snap.Started:
		return "running"
	default:
		return "not started"
	}
}

func requestVerb(kind scheduler.RequestKind) string {
	if kind == scheduler.RequestFinishMission {
		return "finish"
	}
	return "start"
}

// lineReader yields command lines.
type lineReader interface {
	ReadLine() (string, error)
	Close() error
}

// promptReader reads from an interactive readline prompt.
type promptReader struct {
	rl   *readline.Instance
	once sync.Once
}

func newPromptReader() (*promptReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mission> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("start"),
			readline.PcItem("finish"),
			readline.PcItem("status"),
			readline.PcItem("missions"),
			readline.PcItem("wait"),
			readline.PcItem("pause"),
			readline.PcItem("resume"),
			readline.PcItem("stats"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, err
	}
	return &promptReader{rl: rl}, nil
}

func (p *promptReader) ReadLine() (string, error) {
	line, err := p.rl.Readline()
	return strings.TrimSpace(line), err
}

// Stdout returns a writer that prints above the prompt.
func (p *promptReader) Stdout() io.Writer {
	return p.rl.Stdout()
}

func (p *promptReader) Close() error {
	var err error
	p.once.Do(func() { err = p.rl.Close() })
	return err
}

// scanReader reads lines from a script or a pipe, echoing them when asked.
type scanReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	echo    func(line string)
	once    sync.Once
}

func newScanReader(r io.Reader, echo func(line string)) *scanReader {
	sr := &scanReader{scanner: bufio.NewScanner(r), echo: echo}
	if c, ok := r.(io.Closer); ok {
		sr.closer = c
	}
	return sr
}

func (r *scanReader) ReadLine() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	line := r.scanner.Text()
	if r.echo != nil {
		r.echo(line)
	}
	return line, nil
}

func (r *scanReader) Close() error {
	var err error
	r.once.Do(func() {
		if r.closer != nil && r.closer != os.Stdin {
			err = r.closer.Close()
		}
	})
	return err
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		return ""
	}
	dir = filepath.Join(dir, "missionctl")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}
