package pomodoro

import (
	"time"

	"focusflow/backend/internal/model"
)

// EventType defines the type of Clock event.
type EventType string

const (
	EventStateChange    EventType = "state_change"
	EventTick           EventType = "tick"
	EventPhaseComplete  EventType = "phase_complete"
	EventSettingsChange EventType = "settings_change"
)

// Event is a Clock update delivered to subscribers.
type Event struct {
	Type       EventType            `json:"type"`
	State      model.SessionState   `json:"state"`
	Transition *model.Transition    `json:"transition,omitempty"`
	Settings   *model.SessionConfig `json:"settings,omitempty"`
	At         time.Time            `json:"at"`
}
