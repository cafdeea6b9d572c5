// Package events journals mission lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/opencode-ai/missionctl/internal/models"
)

// Repository is the minimal interface needed to write events.
type Repository interface {
	Append(ctx context.Context, event *models.Event) error
}

// LogMissionStateChanged records a mission state change.
func LogMissionStateChanged(ctx context.Context, repo Repository, m models.MissionSnapshot) error {
	if repo == nil {
		return fmt.Errorf("event repository is required")
	}
	if m.ID == "" {
		return fmt.Errorf("mission id is required")
	}

	payload, err := json.Marshal(models.MissionStateChangedPayload{
		SequenceIndex: m.SequenceIndex,
		SequenceName:  m.SequenceName,
		MissionIndex:  m.Index,
		MissionName:   m.Name,
		NewState:      m.State,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal state change payload: %w", err)
	}

	return repo.Append(ctx, &models.Event{
		Timestamp:  m.Timestamp,
		Type:       missionEventType(m.State),
		EntityType: models.EntityTypeMission,
		EntityID:   m.ID,
		Payload:    payload,
		Metadata:   sequenceMetadata(m.SequenceIndex, m.SequenceName),
	})
}

// LogSequenceProgress records a sequence started or completed event.
func LogSequenceProgress(ctx context.Context, repo Repository, eventType models.EventType, progress models.SequenceProgressPayload) error {
	if repo == nil {
		return fmt.Errorf("event repository is required")
	}
	if eventType != models.EventTypeSequenceStarted && eventType != models.EventTypeSequenceCompleted {
		return fmt.Errorf("unexpected sequence event type %q", eventType)
	}

	payload, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal sequence payload: %w", err)
	}

	return repo.Append(ctx, &models.Event{
		Type:       eventType,
		EntityType: models.EntityTypeSequence,
		EntityID:   sequenceEntityID(progress.SequenceIndex),
		Payload:    payload,
		Metadata:   sequenceMetadata(progress.SequenceIndex, progress.SequenceName),
	})
}

// LogRequestRejected records a request the engine refused.
func LogRequestRejected(ctx context.Context, repo Repository, request string, sequenceIndex int, reason error) error {
	if repo == nil {
		return fmt.Errorf("event repository is required")
	}
	if reason == nil {
		return fmt.Errorf("rejection reason is required")
	}

	payload, err := json.Marshal(models.RequestRejectedPayload{
		Request:       request,
		SequenceIndex: sequenceIndex,
		Reason:        reason.Error(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal rejection payload: %w", err)
	}

	return repo.Append(ctx, &models.Event{
		Type:       models.EventTypeRequestRejected,
		EntityType: models.EntityTypeSequence,
		EntityID:   sequenceEntityID(sequenceIndex),
		Payload:    payload,
	})
}

func missionEventType(state models.MissionState) models.EventType {
	switch state {
	case models.MissionStateStarted:
		return models.EventTypeMissionStarted
	case models.MissionStateFinished:
		return models.EventTypeMissionFinished
	default:
		return models.EventTypeMissionStateChanged
	}
}

func sequenceEntityID(index int) string {
	return "sequence-" + strconv.Itoa(index)
}

func sequenceMetadata(index int, name string) map[string]string {
	meta := map[string]string{"sequence_index": strconv.Itoa(index)}
	if name != "" {
		meta["sequence_name"] = name
	}
	return meta
}
