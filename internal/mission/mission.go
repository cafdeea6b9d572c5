// Package mission implements the per-mission lifecycle state machine and the
// factory that binds authored missions to their realization.
package mission

import (
	"fmt"
	"strings"
	"time"

	"github.com/opencode-ai/missionctl/internal/models"
)

// Data is the construction-time description of a mission. Name and
// Description are passed through untouched.
type Data struct {
	ID          string
	Name        string
	Description string
	Delay       time.Duration
	Kind        string
}

// Validate checks the fields the engine relies on.
func (d Data) Validate() error {
	validation := &models.ValidationErrors{}
	if strings.TrimSpace(d.ID) == "" {
		validation.AddMessage("id", "mission id is required")
	}
	if d.Delay < 0 {
		validation.AddMessage("delay", fmt.Sprintf("delay must be non-negative, got %s", d.Delay))
	}
	return validation.Err()
}

// Realization is the concrete behavior bound to a mission.
type Realization interface {
	// Start moves the mission to Started, immediately when delay <= 0 or
	// after delay otherwise. onDelayElapsed, if set, runs just before the
	// delayed transition.
	Start(delay time.Duration, onDelayElapsed func())

	// Finish moves a Started mission to Finished.
	Finish()

	// State returns the current lifecycle state.
	State() models.MissionState

	// Subscribe registers handlers and returns the token that removes them.
	Subscribe(h Handlers) Subscription

	// Close cancels pending work and drops all subscriptions.
	Close()
}

// Handlers are the lifecycle notifications a realization emits. Nil fields
// are skipped.
type Handlers struct {
	OnStateChanged func(models.MissionState)
	OnStarted      func()
	OnPointReached func()
	OnFinished     func()
}

// Subscription removes the handlers it was returned for. Unsubscribe is safe
// to call more than once.
type Subscription interface {
	Unsubscribe()
}
