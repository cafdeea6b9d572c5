package sequences

import (
	"os"
	"path/filepath"
)

// SearchPaths returns sequence search directories in precedence order.
// Extra directories are searched after the project directory.
func SearchPaths(projectDir string, extra ...string) []string {
	paths := make([]string, 0, 3+len(extra))
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".missionctl", "sequences"))
	}
	for _, dir := range extra {
		if dir != "" {
			paths = append(paths, dir)
		}
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "missionctl", "sequences"))
	}

	paths = append(paths, filepath.Join(string(filepath.Separator), "usr", "share", "missionctl", "sequences"))
	return paths
}

// SearchOptions controls LoadFromSearchPaths.
type SearchOptions struct {
	ProjectDir     string
	Dirs           []string
	IncludeBuiltin bool
}

// LoadFromSearchPaths loads definitions from search paths with first-hit
// precedence by name. Builtins come last.
func LoadFromSearchPaths(opts SearchOptions) ([]*Definition, error) {
	seen := make(map[string]*Definition)
	order := make([]string, 0)

	add := func(defs []*Definition) {
		for _, def := range defs {
			if _, exists := seen[def.Name]; exists {
				continue
			}
			seen[def.Name] = def
			order = append(order, def.Name)
		}
	}

	for _, path := range SearchPaths(opts.ProjectDir, opts.Dirs...) {
		defs, err := LoadDefinitionsFromDir(path)
		if err != nil {
			return nil, err
		}
		add(defs)
	}

	if opts.IncludeBuiltin {
		builtins, err := LoadBuiltinDefinitions()
		if err != nil {
			return nil, err
		}
		add(builtins)
	}

	resolved := make([]*Definition, 0, len(order))
	for _, name := range order {
		resolved = append(resolved, seen[name])
	}

	return resolved, nil
}
