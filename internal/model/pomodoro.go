package model

import "time"

type Phase string

const (
	PhaseWork       Phase = "work"
	PhaseShortBreak Phase = "short_break"
	PhaseLongBreak  Phase = "long_break"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
)

const (
	DefaultWorkMinutes           = 25
	DefaultShortBreakMinutes     = 5
	DefaultLongBreakMinutes      = 15
	DefaultCyclesBeforeLongBreak = 4
)

// SessionConfig holds the user-adjustable Pomodoro durations, in whole minutes.
type SessionConfig struct {
	WorkMinutes           int `json:"workMinutes" yaml:"work_minutes"`
	ShortBreakMinutes     int `json:"shortBreakMinutes" yaml:"short_break_minutes"`
	LongBreakMinutes      int `json:"longBreakMinutes" yaml:"long_break_minutes"`
	CyclesBeforeLongBreak int `json:"cyclesBeforeLongBreak" yaml:"cycles_before_long_break"`
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		WorkMinutes:           DefaultWorkMinutes,
		ShortBreakMinutes:     DefaultShortBreakMinutes,
		LongBreakMinutes:      DefaultLongBreakMinutes,
		CyclesBeforeLongBreak: DefaultCyclesBeforeLongBreak,
	}
}

// DurationSeconds returns the configured length of phase in seconds.
func (c SessionConfig) DurationSeconds(phase Phase) int {
	switch phase {
	case PhaseShortBreak:
		return c.ShortBreakMinutes * 60
	case PhaseLongBreak:
		return c.LongBreakMinutes * 60
	default:
		return c.WorkMinutes * 60
	}
}

// SessionState is the live state of one Pomodoro clock. It is never persisted.
type SessionState struct {
	Phase            Phase     `json:"phase"`
	Status           Status    `json:"status"`
	RemainingSeconds int       `json:"remainingSeconds"`
	ElapsedSeconds   int       `json:"elapsedSeconds"`
	WorkCount        int       `json:"workCount"`
	CompletedCycles  int       `json:"completedCycles"`
	Version          int       `json:"version"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Transition describes the move from a finished phase to the next one.
type Transition struct {
	From            Phase   `json:"from"`
	Phase           Phase   `json:"phase"`
	DurationSeconds int     `json:"durationSeconds"`
	WorkCount       int     `json:"workCount"`
	Outcome         Outcome `json:"outcome"`
	PlannedSeconds  int     `json:"plannedSeconds"`
	ElapsedSeconds  int     `json:"elapsedSeconds"`
}

// PhaseRecord is a history row for a finished phase.
type PhaseRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Phase          Phase     `json:"phase"`
	NextPhase      Phase     `json:"nextPhase"`
	PlannedSeconds int       `json:"plannedSeconds"`
	ActualSeconds  int       `json:"actualSeconds"`
	Outcome        Outcome   `json:"outcome"`
	EndedAt        time.Time `json:"endedAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

type DailySummary struct {
	Day             string  `json:"day"`
	FocusSeconds    int     `json:"focusSeconds"`
	CompletedWork   int     `json:"completedWork"`
	SkippedWork     int     `json:"skippedWork"`
	CompletedCycles int     `json:"completedCycles"`
	CompletionRate  float64 `json:"completionRate"`
}

func IsValidPhase(phase Phase) bool {
	return phase == PhaseWork || phase == PhaseShortBreak || phase == PhaseLongBreak
}
