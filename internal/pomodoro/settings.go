package pomodoro

import (
	"sync"

	"focusflow/backend/internal/model"
)

// Slider bounds for each SessionConfig field, inclusive.
const (
	MinWorkMinutes       = 15
	MaxWorkMinutes       = 60
	MinShortBreakMinutes = 3
	MaxShortBreakMinutes = 15
	MinLongBreakMinutes  = 10
	MaxLongBreakMinutes  = 30
	MinCycles            = 2
	MaxCycles            = 8
)

// SettingsStore holds the SessionConfig consulted on every phase transition.
type SettingsStore struct {
	mu     sync.RWMutex
	config model.SessionConfig
}

func NewSettingsStore(initial model.SessionConfig) *SettingsStore {
	return &SettingsStore{config: Clamp(initial)}
}

func (s *SettingsStore) Get() model.SessionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Update replaces the whole config. Out-of-range values are clamped, never
// rejected. The stored config is returned.
func (s *SettingsStore) Update(config model.SessionConfig) model.SessionConfig {
	clamped := Clamp(config)
	s.mu.Lock()
	s.config = clamped
	s.mu.Unlock()
	return clamped
}

// Clamp pulls every field of config into its slider range.
func Clamp(config model.SessionConfig) model.SessionConfig {
	return model.SessionConfig{
		WorkMinutes:           clampInt(config.WorkMinutes, MinWorkMinutes, MaxWorkMinutes),
		ShortBreakMinutes:     clampInt(config.ShortBreakMinutes, MinShortBreakMinutes, MaxShortBreakMinutes),
		LongBreakMinutes:      clampInt(config.LongBreakMinutes, MinLongBreakMinutes, MaxLongBreakMinutes),
		CyclesBeforeLongBreak: clampInt(config.CyclesBeforeLongBreak, MinCycles, MaxCycles),
	}
}

func clampInt(value, lower, upper int) int {
	if value < lower {
		return lower
	}
	if value > upper {
		return upper
	}
	return value
}
