// Package sequences provides loading and rendering of authored mission sequences.
package sequences

import "time"

// Definition is an authored mission sequence.
type Definition struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	TotalDelay  string              `yaml:"total_delay,omitempty"`
	Missions    []MissionDefinition `yaml:"missions"`
	Variables   []Variable          `yaml:"variables,omitempty"`
	Tags        []string            `yaml:"tags,omitempty"`
	Source      string              `yaml:"-"` // file path or "builtin"

	totalDelay time.Duration
}

// TotalDelayDuration returns the parsed uniform delay override, or zero.
func (d *Definition) TotalDelayDuration() time.Duration {
	return d.totalDelay
}

// MissionDefinition is a single authored mission.
type MissionDefinition struct {
	ID          string `yaml:"id,omitempty"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Delay       string `yaml:"delay,omitempty"`
	Kind        string `yaml:"kind,omitempty"`

	delay time.Duration
}

// DelayDuration returns the parsed start delay.
func (m *MissionDefinition) DelayDuration() time.Duration {
	return m.delay
}

// Variable describes a template variable used in mission text.
type Variable struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Default     string `yaml:"default,omitempty"`
	Required    bool   `yaml:"required"`
}

// SourceBuiltin marks definitions embedded in the binary.
const SourceBuiltin = "builtin"
