// Package models defines the data types shared across missionctl packages.
package models

import (
	"fmt"
	"strings"
	"time"
)

// MissionState is the lifecycle position of a mission.
type MissionState string

const (
	// MissionStateWaiting is the initial state; the mission has not started.
	MissionStateWaiting MissionState = "waiting"

	// MissionStateStarted means the mission is active.
	MissionStateStarted MissionState = "started"

	// MissionStateFinished is terminal.
	MissionStateFinished MissionState = "finished"
)

// IsValid reports whether s is a known mission state.
func (s MissionState) IsValid() bool {
	switch s {
	case MissionStateWaiting, MissionStateStarted, MissionStateFinished:
		return true
	}
	return false
}

// Rank returns the position of s in the lifecycle order, or -1 if unknown.
func (s MissionState) Rank() int {
	switch s {
	case MissionStateWaiting:
		return 0
	case MissionStateStarted:
		return 1
	case MissionStateFinished:
		return 2
	}
	return -1
}

// String implements fmt.Stringer.
func (s MissionState) String() string {
	return string(s)
}

// ParseMissionState parses a state name case-insensitively.
func ParseMissionState(value string) (MissionState, error) {
	state := MissionState(strings.ToLower(strings.TrimSpace(value)))
	if !state.IsValid() {
		return "", fmt.Errorf("unknown mission state %q", value)
	}
	return state, nil
}

// MissionSnapshot is a point-in-time view of a mission inside a sequence.
// It is what presentation layers and the journal receive.
type MissionSnapshot struct {
	SequenceIndex int          `json:"sequence_index"`
	SequenceName  string       `json:"sequence_name"`
	SequenceSize  int          `json:"sequence_size"`
	Index         int          `json:"index"`
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	State         MissionState `json:"state"`
	Timestamp     time.Time    `json:"timestamp"`
}
