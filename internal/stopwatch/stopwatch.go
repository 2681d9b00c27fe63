// Package stopwatch implements the dashboard's elapsed-time counter.
package stopwatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"focusflow/backend/internal/model"
	"focusflow/backend/internal/ticker"
)

// DefaultCheckpointEvery is the number of ticks between autosave checkpoints.
const DefaultCheckpointEvery = 30

type EventType string

const (
	EventStateChange EventType = "state_change"
	EventTick        EventType = "tick"
	EventCheckpoint  EventType = "checkpoint"
	EventLongSession EventType = "long_session"
)

type Event struct {
	Type  EventType            `json:"type"`
	State model.StopwatchState `json:"state"`
	At    time.Time            `json:"at"`
}

type Option func(*Stopwatch)

func WithTickInterval(d time.Duration) Option {
	return func(s *Stopwatch) {
		s.tickInterval = d
	}
}

func WithTickerFactory(factory ticker.Factory) Option {
	return func(s *Stopwatch) {
		s.tickerFactory = factory
	}
}

func WithCheckpointEvery(ticks int) Option {
	return func(s *Stopwatch) {
		s.checkpointEvery = ticks
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Stopwatch) {
		s.log = log
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Stopwatch) {
		s.now = now
	}
}

// Stopwatch counts elapsed seconds while running.
type Stopwatch struct {
	mu              sync.Mutex
	state           model.StopwatchState
	loop            *ticker.Loop
	tickInterval    time.Duration
	tickerFactory   ticker.Factory
	checkpointEvery int
	log             *zap.Logger
	now             func() time.Time
	subscribers     map[int]chan Event
	nextSubID       int
	closed          bool
}

func New(opts ...Option) *Stopwatch {
	s := &Stopwatch{
		tickInterval:    time.Second,
		tickerFactory:   ticker.System,
		checkpointEvery: DefaultCheckpointEvery,
		log:             zap.NewNop(),
		now:             time.Now,
		subscribers:     make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.checkpointEvery <= 0 {
		s.checkpointEvery = DefaultCheckpointEvery
	}
	s.loop = ticker.NewLoop(s.tickInterval, s.tickerFactory)
	s.state = model.StopwatchState{
		Status:    model.StatusIdle,
		Version:   1,
		UpdatedAt: s.now().UTC(),
	}
	return s
}

func (s *Stopwatch) Snapshot() model.StopwatchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins a new run from idle, or resumes a paused one. project is only
// used when a new run begins.
func (s *Stopwatch) Start(project string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state.Status == model.StatusRunning {
		return
	}

	now := s.now().UTC()
	if s.state.Status == model.StatusIdle {
		s.state.Project = project
		s.state.StartedAt = &now
		s.state.LastSavedAt = &now
		s.state.ElapsedSeconds = 0
		s.state.LongSession = false
	}
	s.state.Status = model.StatusRunning
	s.loop.Start(s.onTick)
	s.touchLocked(now)
	s.emitLocked(EventStateChange)
}

func (s *Stopwatch) Pause() {
	s.mu.Lock()
	if s.closed || s.state.Status != model.StatusRunning {
		s.mu.Unlock()
		return
	}

	s.state.Status = model.StatusPaused
	done := s.loop.Revoke()
	s.touchLocked(s.now().UTC())
	s.emitLocked(EventStateChange)
	s.mu.Unlock()

	<-done
}

// Stop ends the current run and resets the counter. It returns the finished
// entry and true when there was elapsed time to record.
func (s *Stopwatch) Stop() (model.TimeEntry, bool) {
	s.mu.Lock()
	if s.closed || s.state.Status == model.StatusIdle {
		s.mu.Unlock()
		return model.TimeEntry{}, false
	}

	done := s.loop.Revoke()
	now := s.now().UTC()
	entry := model.TimeEntry{
		Project:        s.state.Project,
		ElapsedSeconds: s.state.ElapsedSeconds,
		EndedAt:        now,
	}
	if s.state.StartedAt != nil {
		entry.StartedAt = *s.state.StartedAt
	}

	s.state = model.StopwatchState{
		Status:  model.StatusIdle,
		Version: s.state.Version,
	}
	s.touchLocked(now)
	s.emitLocked(EventStateChange)
	s.log.Debug("stopwatch stopped",
		zap.String("project", entry.Project),
		zap.Int("elapsed_seconds", entry.ElapsedSeconds))
	s.mu.Unlock()

	<-done
	return entry, entry.ElapsedSeconds > 0
}

// Tick adds one second to a running stopwatch.
func (s *Stopwatch) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
}

func (s *Stopwatch) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
}

func (s *Stopwatch) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.closed = true
	done := s.loop.Revoke()
	if s.state.Status == model.StatusRunning {
		s.state.Status = model.StatusPaused
	}
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
	s.mu.Unlock()

	<-done
}

func (s *Stopwatch) onTick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.advanceLocked()
}

func (s *Stopwatch) advanceLocked() {
	if s.state.Status != model.StatusRunning {
		return
	}

	now := s.now().UTC()
	s.state.ElapsedSeconds++
	s.state.UpdatedAt = now
	s.emitLocked(EventTick)

	if s.state.ElapsedSeconds%s.checkpointEvery == 0 {
		s.state.LastSavedAt = &now
		s.emitLocked(EventCheckpoint)
	}

	if !s.state.LongSession && s.state.ElapsedSeconds >= model.LongSessionSeconds {
		s.state.LongSession = true
		s.emitLocked(EventLongSession)
		s.log.Warn("stopwatch running for a long session",
			zap.String("project", s.state.Project),
			zap.Int("elapsed_seconds", s.state.ElapsedSeconds))
	}
}

func (s *Stopwatch) touchLocked(now time.Time) {
	s.state.Version++
	s.state.UpdatedAt = now
}

func (s *Stopwatch) emitLocked(eventType EventType) {
	event := Event{Type: eventType, State: s.state, At: s.state.UpdatedAt}
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
