package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Scheduler.QueueSize != 64 {
		t.Fatalf("expected queue size 64, got %d", cfg.Scheduler.QueueSize)
	}
	if !cfg.Missions.IncludeBuiltin {
		t.Fatal("expected builtins to be included by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missionctl.yaml")
	content := `logging:
  level: debug
  format: json
missions:
  dirs:
    - /tmp/sequences
scheduler:
  queue_size: 8
  request_timeout: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Scheduler.QueueSize != 8 {
		t.Fatalf("expected queue size 8, got %d", cfg.Scheduler.QueueSize)
	}
	if cfg.Scheduler.RequestTimeout != 250*time.Millisecond {
		t.Fatalf("expected 250ms timeout, got %v", cfg.Scheduler.RequestTimeout)
	}
	if len(cfg.Missions.Dirs) != 1 || cfg.Missions.Dirs[0] != "/tmp/sequences" {
		t.Fatalf("unexpected dirs: %v", cfg.Missions.Dirs)
	}
	if cfg.UI.Theme != "default" {
		t.Fatalf("expected default theme to survive, got %q", cfg.UI.Theme)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MISSIONCTL_LOGGING_LEVEL", "error")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Fatalf("expected env override, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  format: xml\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected invalid logging format to fail")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
