package sequences

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opencode-ai/missionctl/internal/mission"
	"github.com/opencode-ai/missionctl/internal/models"
)

func writeSequence(t *testing.T, dir, file, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write sequence: %v", err)
	}
	return path
}

func TestLoadDefinition(t *testing.T) {
	dir := t.TempDir()
	path := writeSequence(t, dir, "example.yaml", `name: example
description: Example sequence
missions:
  - id: first
    name: "Hello {{.hero}}"
  - name: Second
    delay: 1500ms
    kind: Standard
`)

	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("LoadDefinition: %v", err)
	}

	if def.Name != "example" {
		t.Fatalf("expected name example, got %q", def.Name)
	}
	if def.Source != path {
		t.Fatalf("expected source %q, got %q", path, def.Source)
	}
	if len(def.Missions) != 2 {
		t.Fatalf("expected 2 missions, got %d", len(def.Missions))
	}
	if def.Missions[1].ID == "" {
		t.Fatalf("expected generated id for second mission")
	}
	if got := def.Missions[1].DelayDuration(); got != 1500*time.Millisecond {
		t.Fatalf("expected delay 1.5s, got %v", got)
	}
	if got := def.Missions[1].Kind; got != "standard" {
		t.Fatalf("expected kind to be lowercased, got %q", got)
	}
}

func TestParseDefinitionRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "missions:\n  - name: a\n", "name is required"},
		{"no missions", "name: x\n", "missions are required"},
		{"negative delay", "name: x\nmissions:\n  - name: a\n    delay: -1s\n", "must not be negative"},
		{"bad delay", "name: x\nmissions:\n  - name: a\n    delay: soon\n", "invalid delay"},
		{"bad total delay", "name: x\ntotal_delay: later\nmissions:\n  - name: a\n", "invalid total_delay"},
		{"duplicate id", "name: x\nmissions:\n  - id: a\n    name: a\n  - id: a\n    name: b\n", "duplicate mission id"},
		{"mission name", "name: x\nmissions:\n  - id: a\n", "mission name is required"},
		{"duplicate variable", "name: x\nvariables:\n  - name: v\n  - name: v\nmissions:\n  - name: a\n", "duplicate sequence variable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadDefinitionsFromDirMissing(t *testing.T) {
	defs, err := LoadDefinitionsFromDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("LoadDefinitionsFromDir: %v", err)
	}
	if len(defs) != 0 {
		t.Fatalf("expected no definitions, got %d", len(defs))
	}
}

func TestLoadDefinitionsFromDirSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeSequence(t, dir, "b.yaml", "name: bravo\nmissions:\n  - name: a\n")
	writeSequence(t, dir, "a.yml", "name: alpha\nmissions:\n  - name: a\n")
	writeSequence(t, dir, "notes.txt", "not yaml")

	defs, err := LoadDefinitionsFromDir(dir)
	if err != nil {
		t.Fatalf("LoadDefinitionsFromDir: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Name != "alpha" || defs[1].Name != "bravo" {
		t.Fatalf("unexpected order: %s, %s", defs[0].Name, defs[1].Name)
	}
}

func TestLoadFromSearchPathsPrecedence(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	project := t.TempDir()
	extra := t.TempDir()

	writeSequence(t, filepath.Join(project, ".missionctl", "sequences"), "tutorial.yaml",
		"name: tutorial\nmissions:\n  - id: override\n    name: Project tutorial\n")
	writeSequence(t, extra, "side.yaml", "name: side\nmissions:\n  - name: a\n")
	writeSequence(t, extra, "tutorial.yaml", "name: tutorial\nmissions:\n  - id: extra\n    name: Extra tutorial\n")

	defs, err := LoadFromSearchPaths(SearchOptions{ProjectDir: project, Dirs: []string{extra}, IncludeBuiltin: true})
	if err != nil {
		t.Fatalf("LoadFromSearchPaths: %v", err)
	}

	byName := make(map[string]*Definition)
	for _, def := range defs {
		if _, dup := byName[def.Name]; dup {
			t.Fatalf("duplicate definition %q", def.Name)
		}
		byName[def.Name] = def
	}

	tutorial := byName["tutorial"]
	if tutorial == nil || tutorial.Missions[0].ID != "override" {
		t.Fatalf("expected project tutorial to win, got %+v", tutorial)
	}
	if byName["side"] == nil {
		t.Fatalf("expected extra dir definition")
	}
	if byName["patrol"] == nil || byName["patrol"].Source != SourceBuiltin {
		t.Fatalf("expected builtin patrol")
	}
	if defs[0].Name != "tutorial" {
		t.Fatalf("expected project definitions first, got %q", defs[0].Name)
	}
}

func TestLoadFromSearchPathsWithoutBuiltins(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	defs, err := LoadFromSearchPaths(SearchOptions{ProjectDir: t.TempDir()})
	if err != nil {
		t.Fatalf("LoadFromSearchPaths: %v", err)
	}
	for _, def := range defs {
		if def.Source == SourceBuiltin {
			t.Fatalf("unexpected builtin %q", def.Name)
		}
	}
}

func TestLoadBuiltinDefinitions(t *testing.T) {
	defs, err := LoadBuiltinDefinitions()
	if err != nil {
		t.Fatalf("LoadBuiltinDefinitions: %v", err)
	}
	if len(defs) < 3 {
		t.Fatalf("expected at least 3 builtin sequences, got %d", len(defs))
	}

	for _, def := range defs {
		if def.Source != SourceBuiltin {
			t.Fatalf("expected builtin source, got %q", def.Source)
		}
		if err := Validate(def, mission.NewStandardFactory()); err != nil {
			t.Fatalf("builtin %q invalid: %v", def.Name, err)
		}
	}
}

func TestRender(t *testing.T) {
	def, err := ParseDefinition([]byte(`name: tutorial
total_delay: 3s
variables:
  - name: guide
    default: Mara
missions:
  - id: intro
    name: 'Talk to {{.guide}}'
    description: 'Meet {{.helper | default "nobody"}}'
    delay: 1s
`))
	if err != nil {
		t.Fatalf("ParseDefinition: %v", err)
	}

	spec, err := Render(def, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if spec.Name != "tutorial" {
		t.Fatalf("unexpected name %q", spec.Name)
	}
	if spec.TotalDelay != 3*time.Second {
		t.Fatalf("expected total delay 3s, got %v", spec.TotalDelay)
	}
	m := spec.Missions[0]
	if m.Name != "Talk to Mara" {
		t.Fatalf("unexpected mission name %q", m.Name)
	}
	if m.Description != "Meet nobody" {
		t.Fatalf("unexpected description %q", m.Description)
	}
	if m.Delay != time.Second {
		t.Fatalf("expected 1s delay, got %v", m.Delay)
	}

	spec, err = Render(def, map[string]string{"guide": "Ilya"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if spec.Missions[0].Name != "Talk to Ilya" {
		t.Fatalf("expected variable override, got %q", spec.Missions[0].Name)
	}
}

func TestRenderRequired(t *testing.T) {
	def := &Definition{
		Name:      "required",
		Variables: []Variable{{Name: "who", Required: true}},
		Missions:  []MissionDefinition{{ID: "a", Name: "Hi {{.who}}"}},
	}

	if _, err := Render(def, map[string]string{}); err == nil {
		t.Fatalf("expected error for missing required variable")
	}
}

func TestValidateReportsUnknownKind(t *testing.T) {
	def := &Definition{
		Name: "kinds",
		Missions: []MissionDefinition{
			{ID: "a", Name: "ok"},
			{ID: "b", Name: "bad", Kind: "teleport"},
			{ID: "c", Name: "{{.broken"},
		},
	}

	err := Validate(def, mission.NewStandardFactory())
	var verrs *models.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(verrs.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(verrs.Errors), err)
	}
	if verrs.Errors[0].Field != "missions[1].kind" {
		t.Fatalf("unexpected field %q", verrs.Errors[0].Field)
	}
	if verrs.Errors[1].Field != "missions[2].name" {
		t.Fatalf("unexpected field %q", verrs.Errors[1].Field)
	}
}
