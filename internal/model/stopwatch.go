package model

import "time"

// LongSessionSeconds is the elapsed time after which a stopwatch run is flagged as long.
const LongSessionSeconds = 8 * 60 * 60

// StopwatchState is the live state of the dashboard's elapsed-time counter.
type StopwatchState struct {
	Status         Status     `json:"status"`
	ElapsedSeconds int        `json:"elapsedSeconds"`
	Project        string     `json:"project,omitempty"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	LastSavedAt    *time.Time `json:"lastSavedAt,omitempty"`
	LongSession    bool       `json:"longSession"`
	Version        int        `json:"version"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// TimeEntry is a finished stopwatch run or a manually logged duration.
type TimeEntry struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Project        string    `json:"project,omitempty"`
	Description    string    `json:"description,omitempty"`
	ElapsedSeconds int       `json:"elapsedSeconds"`
	Manual         bool      `json:"manual"`
	StartedAt      time.Time `json:"startedAt"`
	EndedAt        time.Time `json:"endedAt"`
}
