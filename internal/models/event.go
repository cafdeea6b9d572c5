package models

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType categorizes events in the journal.
type EventType string

const (
	// Mission events
	EventTypeMissionStateChanged EventType = "mission.state_changed"
	EventTypeMissionStarted      EventType = "mission.started"
	EventTypeMissionPointReached EventType = "mission.point_reached"
	EventTypeMissionFinished     EventType = "mission.finished"

	// Sequence events
	EventTypeSequenceStarted   EventType = "sequence.started"
	EventTypeSequenceCompleted EventType = "sequence.completed"

	// Request events
	EventTypeRequestRejected EventType = "request.rejected"

	// System events
	EventTypeError   EventType = "error"
	EventTypeWarning EventType = "warning"
)

// EntityType identifies the type of entity an event relates to.
type EntityType string

const (
	EntityTypeMission  EntityType = "mission"
	EntityTypeSequence EntityType = "sequence"
	EntityTypeSystem   EntityType = "system"
)

// Event represents an append-only log entry.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// EntityType identifies what kind of entity this event relates to.
	EntityType EntityType `json:"entity_type"`

	// EntityID is the ID of the related entity.
	EntityID string `json:"entity_id"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Metadata contains additional context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the event is valid.
func (e *Event) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(string(e.Type)) == "" {
		validation.AddMessage("type", "event type is required")
	}
	if strings.TrimSpace(string(e.EntityType)) == "" {
		validation.AddMessage("entity_type", "entity_type is required")
	}
	if strings.TrimSpace(e.EntityID) == "" {
		validation.AddMessage("entity_id", "entity_id is required")
	}
	return validation.Err()
}

// MissionStateChangedPayload is the payload for mission.state_changed events.
type MissionStateChangedPayload struct {
	SequenceIndex int          `json:"sequence_index"`
	SequenceName  string       `json:"sequence_name"`
	MissionIndex  int          `json:"mission_index"`
	MissionName   string       `json:"mission_name"`
	NewState      MissionState `json:"new_state"`
}

// SequenceProgressPayload is the payload for sequence.started and sequence.completed events.
type SequenceProgressPayload struct {
	SequenceIndex int    `json:"sequence_index"`
	SequenceName  string `json:"sequence_name"`
	Total         int    `json:"total"`
	Finished      int    `json:"finished"`
}

// RequestRejectedPayload is the payload for request.rejected events.
type RequestRejectedPayload struct {
	Request       string `json:"request"`
	SequenceIndex int    `json:"sequence_index"`
	Reason        string `json:"reason"`
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Error      string `json:"error"`
	StackTrace string `json:"stack_trace,omitempty"`
	Context    string `json:"context,omitempty"`
}
