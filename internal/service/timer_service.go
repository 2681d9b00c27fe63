package service

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "focusflow/backend/internal/errors"
	"focusflow/backend/internal/model"
	"focusflow/backend/internal/pomodoro"
	"focusflow/backend/internal/repository"
	"focusflow/backend/internal/stopwatch"
	"focusflow/backend/internal/ticker"
)

const recordTimeout = 5 * time.Second

// TimerOptions configures the clocks and stopwatches created per user.
type TimerOptions struct {
	Defaults      model.SessionConfig
	TickInterval  time.Duration
	TickerFactory ticker.Factory
	Now           func() time.Time
}

// TimerService keeps one Pomodoro clock and one stopwatch per user in memory
// and records what they finish.
type TimerService struct {
	history *repository.HistoryRepository
	log     *zap.Logger
	opts    TimerOptions

	mu     sync.Mutex
	timers map[string]*userTimers
	closed bool
}

type userTimers struct {
	// mu serialises version checks with the command they guard.
	mu        sync.Mutex
	clock     *pomodoro.Clock
	stopwatch *stopwatch.Stopwatch
}

type StateView struct {
	model.SessionState
	Settings   model.SessionConfig `json:"settings"`
	ServerTime time.Time           `json:"serverTime"`
}

type StopwatchView struct {
	model.StopwatchState
	ServerTime time.Time `json:"serverTime"`
}

func NewTimerService(history *repository.HistoryRepository, log *zap.Logger, opts TimerOptions) *TimerService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickerFactory == nil {
		opts.TickerFactory = ticker.System
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	opts.Defaults = pomodoro.Clamp(opts.Defaults)

	return &TimerService{
		history: history,
		log:     log,
		opts:    opts,
		timers:  make(map[string]*userTimers),
	}
}

func (s *TimerService) GetState(userID string) (*StateView, *apperrors.APIError) {
	timers, apiErr := s.timersFor(userID)
	if apiErr != nil {
		return nil, apiErr
	}
	view := s.toStateView(timers.clock)
	return &view, nil
}

func (s *TimerService) Start(userID string, baseVersion int) (*StateView, *apperrors.APIError) {
	return s.clockCommand(userID, baseVersion, (*pomodoro.Clock).Start)
}

func (s *TimerService) Pause(userID string, baseVersion int) (*StateView, *apperrors.APIError) {
	return s.clockCommand(userID, baseVersion, (*pomodoro.Clock).Pause)
}

func (s *TimerService) Stop(userID string, baseVersion int) (*StateView, *apperrors.APIError) {
	return s.clockCommand(userID, baseVersion, (*pomodoro.Clock).Stop)
}

func (s *TimerService) Skip(userID string, baseVersion int) (*StateView, *apperrors.APIError) {
	return s.clockCommand(userID, baseVersion, (*pomodoro.Clock).Skip)
}

// UpdateSettingsInput is a partial settings change. Nil fields keep their
// current value.
type UpdateSettingsInput struct {
	BaseVersion           int
	WorkMinutes           *int
	ShortBreakMinutes     *int
	LongBreakMinutes      *int
	CyclesBeforeLongBreak *int
}

// UpdateSettings merges input into the user's current settings and applies
// the result. The merge runs under the same lock as every other command, so
// concurrent partial updates never overwrite each other's fields.
func (s *TimerService) UpdateSettings(userID string, input UpdateSettingsInput) (*StateView, *apperrors.APIError) {
	return s.clockCommand(userID, input.BaseVersion, func(clock *pomodoro.Clock) {
		settings := clock.Settings()
		mergeInt(&settings.WorkMinutes, input.WorkMinutes)
		mergeInt(&settings.ShortBreakMinutes, input.ShortBreakMinutes)
		mergeInt(&settings.LongBreakMinutes, input.LongBreakMinutes)
		mergeInt(&settings.CyclesBeforeLongBreak, input.CyclesBeforeLongBreak)
		clock.UpdateSettings(settings)
	})
}

// Subscribe streams the user's clock events. The returned func must be called
// to release the subscription.
func (s *TimerService) Subscribe(userID string, buffer int) (<-chan pomodoro.Event, func(), *apperrors.APIError) {
	timers, apiErr := s.timersFor(userID)
	if apiErr != nil {
		return nil, nil, apiErr
	}
	events, cancel := timers.clock.Subscribe(buffer)
	return events, cancel, nil
}

func (s *TimerService) GetHistory(ctx context.Context, userID string, limit int) ([]model.PhaseRecord, *apperrors.APIError) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	records, err := s.history.ListPhaseRecords(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to get history")
	}
	return records, nil
}

// GetSummary aggregates the current UTC day.
func (s *TimerService) GetSummary(ctx context.Context, userID string) (*model.DailySummary, *apperrors.APIError) {
	now := s.opts.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	summary, err := s.history.SummarizeRange(ctx, userID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, apperrors.Internal("failed to summarize history")
	}
	return summary, nil
}

func (s *TimerService) GetStopwatch(userID string) (*StopwatchView, *apperrors.APIError) {
	timers, apiErr := s.timersFor(userID)
	if apiErr != nil {
		return nil, apiErr
	}
	view := s.toStopwatchView(timers.stopwatch)
	return &view, nil
}

func (s *TimerService) StartStopwatch(userID, project string, baseVersion int) (*StopwatchView, *apperrors.APIError) {
	return s.stopwatchCommand(userID, baseVersion, func(sw *stopwatch.Stopwatch) {
		sw.Start(project)
	})
}

func (s *TimerService) PauseStopwatch(userID string, baseVersion int) (*StopwatchView, *apperrors.APIError) {
	return s.stopwatchCommand(userID, baseVersion, (*stopwatch.Stopwatch).Pause)
}

func (s *TimerService) StopStopwatch(userID string, baseVersion int) (*StopwatchView, *apperrors.APIError) {
	return s.stopwatchCommand(userID, baseVersion, func(sw *stopwatch.Stopwatch) {
		entry, ok := sw.Stop()
		if ok {
			s.recordTimeEntry(userID, entry)
		}
	})
}

const (
	maxManualHours       = 23
	maxDescriptionLength = 500
)

// ManualEntryInput is a duration logged by hand rather than timed.
type ManualEntryInput struct {
	Hours       int
	Minutes     int
	Seconds     int
	Project     string
	Description string
}

// AddTimeEntry records a manual entry ending now.
func (s *TimerService) AddTimeEntry(ctx context.Context, userID string, input ManualEntryInput) (*model.TimeEntry, *apperrors.APIError) {
	if userID == "" {
		return nil, apperrors.Unauthorized("")
	}
	if input.Hours < 0 || input.Hours > maxManualHours ||
		input.Minutes < 0 || input.Minutes > 59 ||
		input.Seconds < 0 || input.Seconds > 59 {
		return nil, apperrors.BadRequest("invalid_duration", "hours must be 0-23, minutes and seconds 0-59")
	}
	total := input.Hours*3600 + input.Minutes*60 + input.Seconds
	if total <= 0 {
		return nil, apperrors.BadRequest("invalid_duration", "duration must be greater than zero")
	}

	description := strings.TrimSpace(input.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return nil, apperrors.BadRequest("invalid_description", "description is too long")
	}

	endedAt := s.opts.Now().UTC()
	entry := model.TimeEntry{
		ID:             uuid.NewString(),
		UserID:         userID,
		Project:        strings.TrimSpace(input.Project),
		Description:    description,
		ElapsedSeconds: total,
		Manual:         true,
		StartedAt:      endedAt.Add(-time.Duration(total) * time.Second),
		EndedAt:        endedAt,
	}
	if err := s.history.InsertTimeEntry(ctx, &entry); err != nil {
		s.log.Error("insert manual time entry", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.Internal("failed to save time entry")
	}
	return &entry, nil
}

func (s *TimerService) ListTimeEntries(ctx context.Context, userID string, limit int) ([]model.TimeEntry, *apperrors.APIError) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := s.history.ListTimeEntries(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to get time entries")
	}
	return entries, nil
}

// Close releases every clock and stopwatch. Later calls report the service
// as unavailable.
func (s *TimerService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	timers := s.timers
	s.timers = make(map[string]*userTimers)
	s.mu.Unlock()

	for _, t := range timers {
		t.clock.Close()
		t.stopwatch.Close()
	}
	s.log.Info("timer service closed", zap.Int("users", len(timers)))
}

func (s *TimerService) clockCommand(userID string, baseVersion int, cmd func(*pomodoro.Clock)) (*StateView, *apperrors.APIError) {
	timers, apiErr := s.timersFor(userID)
	if apiErr != nil {
		return nil, apiErr
	}

	timers.mu.Lock()
	defer timers.mu.Unlock()

	if baseVersion > 0 {
		if current := timers.clock.Snapshot(); current.Version != baseVersion {
			view := s.toStateView(timers.clock)
			return nil, apperrors.Conflict("state_conflict", "state changed on another device", map[string]any{
				"state": view,
			})
		}
	}

	cmd(timers.clock)
	view := s.toStateView(timers.clock)
	return &view, nil
}

func (s *TimerService) stopwatchCommand(userID string, baseVersion int, cmd func(*stopwatch.Stopwatch)) (*StopwatchView, *apperrors.APIError) {
	timers, apiErr := s.timersFor(userID)
	if apiErr != nil {
		return nil, apiErr
	}

	timers.mu.Lock()
	defer timers.mu.Unlock()

	if baseVersion > 0 {
		if current := timers.stopwatch.Snapshot(); current.Version != baseVersion {
			view := s.toStopwatchView(timers.stopwatch)
			return nil, apperrors.Conflict("state_conflict", "stopwatch changed on another device", map[string]any{
				"state": view,
			})
		}
	}

	cmd(timers.stopwatch)
	view := s.toStopwatchView(timers.stopwatch)
	return &view, nil
}

func (s *TimerService) timersFor(userID string) (*userTimers, *apperrors.APIError) {
	if userID == "" {
		return nil, apperrors.Unauthorized("")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, apperrors.Unavailable("timer service is shutting down")
	}
	if timers, ok := s.timers[userID]; ok {
		return timers, nil
	}

	log := s.log.With(zap.String("user_id", userID))
	timers := &userTimers{
		clock: pomodoro.NewClock(
			pomodoro.NewSettingsStore(s.opts.Defaults),
			pomodoro.WithTickInterval(s.opts.TickInterval),
			pomodoro.WithTickerFactory(s.opts.TickerFactory),
			pomodoro.WithNow(s.opts.Now),
			pomodoro.WithLogger(log),
			pomodoro.WithTransitionHook(func(tr model.Transition, _ model.SessionState) {
				s.recordTransition(userID, tr)
			}),
		),
		stopwatch: stopwatch.New(
			stopwatch.WithTickInterval(s.opts.TickInterval),
			stopwatch.WithTickerFactory(s.opts.TickerFactory),
			stopwatch.WithNow(s.opts.Now),
			stopwatch.WithLogger(log),
		),
	}
	s.timers[userID] = timers
	return timers, nil
}

func (s *TimerService) recordTransition(userID string, tr model.Transition) {
	if s.history == nil {
		return
	}

	now := s.opts.Now().UTC()
	record := model.PhaseRecord{
		ID:             uuid.NewString(),
		UserID:         userID,
		Phase:          tr.From,
		NextPhase:      tr.Phase,
		PlannedSeconds: tr.PlannedSeconds,
		ActualSeconds:  tr.ElapsedSeconds,
		Outcome:        tr.Outcome,
		EndedAt:        now,
		CreatedAt:      now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.history.InsertPhaseRecord(ctx, &record); err != nil {
		s.log.Error("record phase", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *TimerService) recordTimeEntry(userID string, entry model.TimeEntry) {
	if s.history == nil {
		return
	}

	entry.ID = uuid.NewString()
	entry.UserID = userID

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.history.InsertTimeEntry(ctx, &entry); err != nil {
		s.log.Error("record time entry", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *TimerService) toStateView(clock *pomodoro.Clock) StateView {
	return StateView{
		SessionState: clock.Snapshot(),
		Settings:     clock.Settings(),
		ServerTime:   s.opts.Now().UTC(),
	}
}

func (s *TimerService) toStopwatchView(sw *stopwatch.Stopwatch) StopwatchView {
	return StopwatchView{
		StopwatchState: sw.Snapshot(),
		ServerTime:     s.opts.Now().UTC(),
	}
}

func mergeInt(dst *int, value *int) {
	if value != nil {
		*dst = *value
	}
}
