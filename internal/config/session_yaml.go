package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"focusflow/backend/internal/model"
	"focusflow/backend/internal/pomodoro"
)

// LoadSessionDefaults reads the initial Pomodoro settings from a YAML file.
// An empty path or a missing file yields the built-in defaults. Fields left
// out of the file keep their default, and every value is clamped to its
// slider range.
func LoadSessionDefaults(path string) (model.SessionConfig, error) {
	settings := model.DefaultSessionConfig()
	if path == "" {
		return settings, nil
	}

	rawData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings file: %w", err)
	}

	var fileData model.SessionConfig
	if err := yaml.Unmarshal(rawData, &fileData); err != nil {
		return settings, fmt.Errorf("parse settings yaml: %w", err)
	}

	if fileData.WorkMinutes > 0 {
		settings.WorkMinutes = fileData.WorkMinutes
	}
	if fileData.ShortBreakMinutes > 0 {
		settings.ShortBreakMinutes = fileData.ShortBreakMinutes
	}
	if fileData.LongBreakMinutes > 0 {
		settings.LongBreakMinutes = fileData.LongBreakMinutes
	}
	if fileData.CyclesBeforeLongBreak > 0 {
		settings.CyclesBeforeLongBreak = fileData.CyclesBeforeLongBreak
	}
	return pomodoro.Clamp(settings), nil
}

// SaveSessionDefaults writes settings as YAML, creating parent directories.
func SaveSessionDefaults(path string, settings model.SessionConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	serialized, err := yaml.Marshal(pomodoro.Clamp(settings))
	if err != nil {
		return fmt.Errorf("marshal settings yaml: %w", err)
	}

	if err := os.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}
