// Package cli implements the missionctl command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/opencode-ai/missionctl/internal/config"
	"github.com/opencode-ai/missionctl/internal/db"
	"github.com/opencode-ai/missionctl/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile        string
	logLevel       string
	logFormat      string
	dbPathFlag     string
	jsonOutput     bool
	jsonlOutput    bool
	noColor        bool
	nonInteractive bool
	noProgress     bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "missionctl",
	Short: "Drive ordered mission sequences",
	Long: `missionctl loads authored mission sequences and drives them through
waiting, started and finished, with optional start delays. Mission state
changes are rendered to the terminal and journaled to SQLite.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./missionctl.yaml or ~/.config/missionctl/missionctl.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "log format: console or json")
	flags.StringVar(&dbPathFlag, "db", "", "journal database path (empty string in config disables the journal)")
	flags.BoolVar(&jsonOutput, "json", false, "output JSON")
	flags.BoolVar(&jsonlOutput, "jsonl", false, "output JSON lines")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never prompt; read commands from stdin")
	flags.BoolVar(&noProgress, "no-progress", false, "disable progress output")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if cmd.Flags().Changed("db") {
		cfg.Database.Path = dbPathFlag
	}
	if noColor {
		cfg.UI.Color = "never"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	appConfig = cfg
	return nil
}

// GetConfig returns the loaded configuration, or defaults before loading.
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

// IsJSONOutput reports whether --json was given.
func IsJSONOutput() bool {
	return jsonOutput
}

// IsJSONLOutput reports whether --jsonl was given.
func IsJSONLOutput() bool {
	return jsonlOutput
}

// WriteOutput writes v as JSON, or as one JSON document per element with --jsonl.
func WriteOutput(w io.Writer, v any) error {
	if IsJSONLOutput() {
		enc := json.NewEncoder(w)
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice {
			for i := 0; i < rv.Len(); i++ {
				if err := enc.Encode(rv.Index(i).Interface()); err != nil {
					return err
				}
			}
			return nil
		}
		return enc.Encode(v)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openDatabase opens and migrates the journal database.
func openDatabase() (*db.DB, error) {
	path := strings.TrimSpace(GetConfig().Database.Path)
	if path == "" {
		return nil, &PreflightError{
			Message:  "journal database is disabled",
			Hint:     "Set database.path in the config file or pass --db",
			NextStep: "missionctl --db ~/.local/share/missionctl/journal.db events",
		}
	}

	database, err := db.Open(db.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Migrate(context.Background()); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return database, nil
}

func stdoutIsTerminal() bool {
	return isTerminal(os.Stdout)
}
