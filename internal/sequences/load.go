package sequences

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// LoadDefinition reads a single sequence definition from disk.
func LoadDefinition(path string) (*Definition, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sequence path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sequence %s: %w", path, err)
	}

	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("parse sequence %s: %w", path, err)
	}
	def.Source = path
	return def, nil
}

// LoadDefinitionsFromDir loads all definitions from a directory.
// A missing directory yields no definitions.
func LoadDefinitionsFromDir(dir string) ([]*Definition, error) {
	if strings.TrimSpace(dir) == "" {
		return []*Definition{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Definition{}, nil
		}
		return nil, fmt.Errorf("read sequences dir %s: %w", dir, err)
	}

	defs := make([]*Definition, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		def, err := LoadDefinition(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})

	return defs, nil
}

// ParseDefinition decodes and normalizes a YAML definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}

	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		return nil, fmt.Errorf("sequence name is required")
	}
	def.Description = strings.TrimSpace(def.Description)

	if len(def.Missions) == 0 {
		return nil, fmt.Errorf("sequence missions are required")
	}

	def.TotalDelay = strings.TrimSpace(def.TotalDelay)
	if def.TotalDelay != "" {
		d, err := parseDelay(def.TotalDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid total_delay: %w", err)
		}
		def.totalDelay = d
	}

	seenVars := make(map[string]struct{})
	for i := range def.Variables {
		name := strings.TrimSpace(def.Variables[i].Name)
		if name == "" {
			return nil, fmt.Errorf("sequence variable name is required")
		}
		if _, exists := seenVars[name]; exists {
			return nil, fmt.Errorf("duplicate sequence variable %q", name)
		}
		seenVars[name] = struct{}{}
		def.Variables[i].Name = name
	}

	seenIDs := make(map[string]struct{})
	for i := range def.Missions {
		m := &def.Missions[i]
		if err := normalizeMission(m); err != nil {
			return nil, fmt.Errorf("sequence mission %d: %w", i+1, err)
		}
		if _, exists := seenIDs[m.ID]; exists {
			return nil, fmt.Errorf("sequence mission %d: duplicate mission id %q", i+1, m.ID)
		}
		seenIDs[m.ID] = struct{}{}
	}

	return &def, nil
}

func normalizeMission(m *MissionDefinition) error {
	m.ID = strings.TrimSpace(m.ID)
	m.Name = strings.TrimSpace(m.Name)
	m.Description = strings.TrimSpace(m.Description)
	m.Delay = strings.TrimSpace(m.Delay)
	m.Kind = strings.ToLower(strings.TrimSpace(m.Kind))

	if m.Name == "" {
		return fmt.Errorf("mission name is required")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	if m.Delay != "" {
		d, err := parseDelay(m.Delay)
		if err != nil {
			return fmt.Errorf("invalid delay: %w", err)
		}
		m.delay = d
	}

	return nil
}

func parseDelay(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("delay must not be negative")
	}
	return d, nil
}
