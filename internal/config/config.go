// Package config loads missionctl configuration through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. MISSIONCTL_LOGGING_LEVEL.
const EnvPrefix = "MISSIONCTL"

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Missions  MissionsConfig  `mapstructure:"missions"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	UI        UIConfig        `mapstructure:"ui"`
}

// DatabaseConfig configures the event journal.
type DatabaseConfig struct {
	// Path is the SQLite file. Empty disables the journal.
	Path string `mapstructure:"path"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MissionsConfig configures where sequence definitions are loaded from.
type MissionsConfig struct {
	// ProjectDir adds <ProjectDir>/.missionctl/sequences to the search paths.
	ProjectDir string `mapstructure:"project_dir"`

	// Dirs are extra directories searched before the default paths.
	Dirs []string `mapstructure:"dirs"`

	// IncludeBuiltin controls whether embedded sequences are appended.
	IncludeBuiltin bool `mapstructure:"include_builtin"`
}

// SchedulerConfig configures the request loop.
type SchedulerConfig struct {
	// QueueSize is the capacity of the request queue.
	QueueSize int `mapstructure:"queue_size"`

	// RequestTimeout bounds how long Submit waits for the loop.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// UIConfig configures terminal rendering.
type UIConfig struct {
	Theme string `mapstructure:"theme"`
	Color string `mapstructure:"color"` // auto, always, never
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	dbPath := ""
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dbPath = filepath.Join(home, ".local", "share", "missionctl", "journal.db")
	}

	return &Config{
		Database: DatabaseConfig{Path: dbPath},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		Missions: MissionsConfig{IncludeBuiltin: true},
		Scheduler: SchedulerConfig{
			QueueSize:      64,
			RequestTimeout: 5 * time.Second,
		},
		UI: UIConfig{Theme: "default", Color: "auto"},
	}
}

// Load reads configuration from path (optional) and the environment.
// An empty path searches ./missionctl.yaml and ~/.config/missionctl/missionctl.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("missionctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			v.AddConfigPath(filepath.Join(home, ".config", "missionctl"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("missions.project_dir", cfg.Missions.ProjectDir)
	v.SetDefault("missions.dirs", cfg.Missions.Dirs)
	v.SetDefault("missions.include_builtin", cfg.Missions.IncludeBuiltin)
	v.SetDefault("scheduler.queue_size", cfg.Scheduler.QueueSize)
	v.SetDefault("scheduler.request_timeout", cfg.Scheduler.RequestTimeout)
	v.SetDefault("ui.theme", cfg.UI.Theme)
	v.SetDefault("ui.color", cfg.UI.Color)
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid logging.format %q", c.Logging.Format)
	}
	if c.Scheduler.QueueSize <= 0 {
		return fmt.Errorf("scheduler.queue_size must be greater than 0")
	}
	if c.Scheduler.RequestTimeout <= 0 {
		return fmt.Errorf("scheduler.request_timeout must be greater than 0")
	}
	switch strings.ToLower(c.UI.Color) {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("invalid ui.color %q", c.UI.Color)
	}
	return nil
}
