package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/opencode-ai/missionctl/internal/config"
	"github.com/opencode-ai/missionctl/internal/sequences"
)

// loadDefinitions resolves sequence definitions from the configured search paths.
func loadDefinitions(cfg *config.Config) ([]*sequences.Definition, error) {
	projectDir := cfg.Missions.ProjectDir
	if projectDir == "" {
		if wd, err := os.Getwd(); err == nil {
			projectDir = wd
		}
	}

	defs, err := sequences.LoadFromSearchPaths(sequences.SearchOptions{
		ProjectDir:     projectDir,
		Dirs:           cfg.Missions.Dirs,
		IncludeBuiltin: cfg.Missions.IncludeBuiltin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load sequences: %w", err)
	}
	return defs, nil
}

// loadDefinitionFiles loads explicit files in the given order.
func loadDefinitionFiles(paths []string) ([]*sequences.Definition, error) {
	defs := make([]*sequences.Definition, 0, len(paths))
	for _, path := range paths {
		def, err := sequences.LoadDefinition(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func filterDefinitions(items []*sequences.Definition, tags []string) []*sequences.Definition {
	if len(tags) == 0 {
		return items
	}

	wanted := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		wanted[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}

	filtered := make([]*sequences.Definition, 0, len(items))
	for _, item := range items {
		for _, tag := range item.Tags {
			if _, ok := wanted[strings.ToLower(tag)]; ok {
				filtered = append(filtered, item)
				break
			}
		}
	}
	return filtered
}

func findDefinitionByName(items []*sequences.Definition, name string) *sequences.Definition {
	name = strings.TrimSpace(name)
	for _, item := range items {
		if strings.EqualFold(item.Name, name) {
			return item
		}
	}
	return nil
}

// selectDefinitions picks definitions by name, keeping the requested order.
// No names selects everything.
func selectDefinitions(items []*sequences.Definition, names []string) ([]*sequences.Definition, error) {
	if len(names) == 0 {
		return items, nil
	}

	selected := make([]*sequences.Definition, 0, len(names))
	for _, name := range names {
		def := findDefinitionByName(items, name)
		if def == nil {
			return nil, fmt.Errorf("sequence %q not found", name)
		}
		selected = append(selected, def)
	}
	return selected, nil
}

// parseVars parses key=value pairs.
func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q (expected key=value)", pair)
		}
		vars[key] = value
	}
	return vars, nil
}
