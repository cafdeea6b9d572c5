package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/opencode-ai/missionctl/internal/db"
	"github.com/opencode-ai/missionctl/internal/engine"
	"github.com/opencode-ai/missionctl/internal/events"
	"github.com/opencode-ai/missionctl/internal/logging"
	"github.com/opencode-ai/missionctl/internal/mission"
	"github.com/opencode-ai/missionctl/internal/scheduler"
	"github.com/opencode-ai/missionctl/internal/sequences"
	"github.com/opencode-ai/missionctl/internal/timer"
	"github.com/opencode-ai/missionctl/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	runScript    string
	runSimulated bool
	runFiles     []string
	runVars      []string
	runTags      []string
	runNoJournal bool
	runTUI       bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runScript, "script", "", "read shell commands from a file instead of the prompt")
	runCmd.Flags().BoolVar(&runSimulated, "simulated", false, "simulate time: delays elapse only through the wait command")
	runCmd.Flags().StringArrayVarP(&runFiles, "file", "f", nil, "load sequences from these files instead of the search paths")
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "template variable key=value (repeatable)")
	runCmd.Flags().StringSliceVar(&runTags, "tag", nil, "only load sequences with these tags")
	runCmd.Flags().BoolVar(&runNoJournal, "no-journal", false, "do not record events to the journal database")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "drive sequences from a full-screen dashboard instead of the shell")
}

var runCmd = &cobra.Command{
	Use:   "run [sequence...]",
	Short: "Drive sequences from an interactive shell",
	Long: `Load sequences and open a shell that starts sequences and finishes
missions. Sequence i in the registry is the i-th selected sequence; with no
arguments every resolved sequence is loaded in search-path order.`,
	Example: `  missionctl run
  missionctl run tutorial patrol
  missionctl run --simulated --script demo.txt
  missionctl run -f ./quest.yaml --var guide=Mara
  missionctl run --tui --simulated`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd.Context(), args)
	},
}

// session bundles everything a shell drives.
type session struct {
	registry *engine.Registry
	sched    *scheduler.Scheduler
	manual   *timer.ManualClock
}

// buildSession wires the engine to the request loop. With simulated time the
// engine uses a manual clock that only the loop advances.
func buildSession(specs []engine.SequenceSpec, cfg scheduler.Config, simulated bool) *session {
	sched := scheduler.New(cfg, nil)

	var clock timer.Clock = sched.Clock()
	var manual *timer.ManualClock
	if simulated {
		manual = timer.NewManualClock()
		clock = manual
	}

	reg := engine.Build(specs, mission.NewStandardFactory(), engine.WithClock(clock))
	sched.SetTarget(reg)

	return &session{registry: reg, sched: sched, manual: manual}
}

func loadRunSpecs(args []string) ([]engine.SequenceSpec, error) {
	var defs []*sequences.Definition
	var err error
	if len(runFiles) > 0 {
		defs, err = loadDefinitionFiles(runFiles)
	} else {
		defs, err = loadDefinitions(GetConfig())
	}
	if err != nil {
		return nil, err
	}

	defs = filterDefinitions(defs, runTags)
	defs, err = selectDefinitions(defs, args)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, &PreflightError{
			Message:  "no sequences to run",
			Hint:     "Add YAML files to .missionctl/sequences or enable missions.include_builtin",
			NextStep: "missionctl list",
		}
	}

	vars, err := parseVars(runVars)
	if err != nil {
		return nil, err
	}
	return sequences.RenderAll(defs, vars)
}

func runShell(parent context.Context, args []string) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg := GetConfig()
	logger := logging.Component("cli")

	specs, err := loadRunSpecs(args)
	if err != nil {
		return err
	}

	rt := buildSession(specs, scheduler.Config{
		QueueSize:      cfg.Scheduler.QueueSize,
		RequestTimeout: cfg.Scheduler.RequestTimeout,
	}, runSimulated)
	defer rt.registry.Close()

	if runTUI {
		if runScript != "" || !hasTTY() {
			return &PreflightError{
				Message:  "the dashboard needs an interactive terminal",
				Hint:     "Drop --tui to use the line shell",
				NextStep: "missionctl run",
			}
		}
	}

	out := newSyncWriter(os.Stdout)
	styleSet := currentStyles()
	renderer := newStateRenderer(out, styleSet, IsJSONOutput() || IsJSONLOutput())
	if !runTUI {
		renderSub := rt.registry.Subscribe(renderer.Observe)
		defer renderSub.Unsubscribe()
	}

	var recorder *events.Recorder
	if !runNoJournal && cfg.Database.Path != "" {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		recorder = events.NewRecorder(db.NewEventRepository(database), 0)
		journalSub := recorder.Attach(rt.registry)
		defer journalSub.Unsubscribe()
	}

	sh := &shell{
		sched:  rt.sched,
		reg:    rt.registry,
		styles: styleSet,
		json:   IsJSONOutput() || IsJSONLOutput(),
		manual: rt.manual,
		out:    out,
	}

	var in lineReader
	if !runTUI {
		in, err = openLineReader(sh, renderer)
		if err != nil {
			return err
		}
		defer in.Close()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if err := rt.sched.Start(gctx); err != nil {
		return err
	}

	logger.Debug().
		Int("sequences", rt.registry.Len()).
		Bool("simulated", runSimulated).
		Bool("journal", recorder != nil).
		Msg("shell starting")

	if runTUI {
		g.Go(func() error {
			defer cancel()
			return tui.Run(gctx, &tui.LoopController{
				Scheduler: rt.sched,
				Registry:  rt.registry,
				Manual:    rt.manual,
			}, styleSet)
		})
	} else {
		g.Go(func() error {
			defer cancel()
			return sh.run(gctx, in)
		})
		g.Go(func() error {
			<-gctx.Done()
			return in.Close()
		})
	}
	if recorder != nil {
		g.Go(func() error {
			return recorder.Run(gctx)
		})
		g.Go(func() error {
			return pumpRejections(gctx, rt.sched.Results(), recorder)
		})
	}

	if !runTUI && runScript == "" && IsInteractive() {
		sh.printf("%d sequence(s) loaded. Type help for commands.\n", rt.registry.Len())
	}

	err = g.Wait()
	if stopErr := rt.sched.Stop(); stopErr != nil && !errors.Is(stopErr, scheduler.ErrSchedulerNotRunning) {
		logger.Warn().Err(stopErr).Msg("scheduler stop failed")
	}
	if recorder != nil && recorder.Dropped() > 0 {
		logger.Warn().Int64("dropped", recorder.Dropped()).Msg("journal entries were dropped")
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openLineReader chooses between a script, an interactive prompt and stdin.
func openLineReader(sh *shell, renderer *stateRenderer) (lineReader, error) {
	if runScript != "" {
		f, err := os.Open(runScript)
		if err != nil {
			return nil, fmt.Errorf("open script: %w", err)
		}
		return newScanReader(f, func(line string) {
			if !sh.json {
				sh.printf("%s %s\n", sh.styles.Muted.Render(">"), line)
			}
		}), nil
	}

	if IsInteractive() {
		prompt, err := newPromptReader()
		if err != nil {
			return nil, fmt.Errorf("start prompt: %w", err)
		}
		stdout := newSyncWriter(prompt.Stdout())
		sh.setOutput(stdout)
		renderer.setOutput(stdout)
		return prompt, nil
	}

	return newScanReader(io.Reader(os.Stdin), nil), nil
}

// pumpRejections journals every request the engine refused.
func pumpRejections(ctx context.Context, results <-chan scheduler.Result, recorder *events.Recorder) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case result := <-results:
			if !result.Success() {
				recorder.RecordRejection(string(result.Request.Kind), result.Request.SequenceIndex, result.Err)
			}
		}
	}
}
