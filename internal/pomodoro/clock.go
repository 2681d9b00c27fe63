// Package pomodoro implements the Pomodoro session engine: the Settings
// Store, the pure Phase Controller and the ticking Session Clock.
package pomodoro

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"focusflow/backend/internal/model"
	"focusflow/backend/internal/ticker"
)

// Option configures a Clock.
type Option func(*Clock)

// WithTickInterval sets the wall-clock period of one tick. Each tick always
// counts as one second of the session.
func WithTickInterval(d time.Duration) Option {
	return func(c *Clock) {
		c.tickInterval = d
	}
}

// WithTickerFactory replaces the time.Ticker backed tick source.
func WithTickerFactory(factory ticker.Factory) Option {
	return func(c *Clock) {
		c.tickerFactory = factory
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Clock) {
		c.log = log
	}
}

// WithTransitionHook registers fn to run after every phase transition. fn is
// called without the clock lock held, on the goroutine that caused the
// transition.
func WithTransitionHook(fn func(model.Transition, model.SessionState)) Option {
	return func(c *Clock) {
		c.onTransition = fn
	}
}

func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		c.now = now
	}
}

// Clock is the Session Clock. It owns one SessionState and at most one tick
// goroutine, which exists exactly while the status is running.
type Clock struct {
	mu            sync.Mutex
	settings      *SettingsStore
	state         model.SessionState
	loop          *ticker.Loop
	tickInterval  time.Duration
	tickerFactory ticker.Factory
	log           *zap.Logger
	onTransition  func(model.Transition, model.SessionState)
	now           func() time.Time
	subscribers   map[int]chan Event
	nextSubID     int
	closed        bool
	// hooks counts transition hook calls that have not returned yet.
	hooks sync.WaitGroup
}

// NewClock creates an idle clock positioned at the start of a work phase.
func NewClock(settings *SettingsStore, opts ...Option) *Clock {
	c := &Clock{
		settings:      settings,
		tickInterval:  time.Second,
		tickerFactory: ticker.System,
		log:           zap.NewNop(),
		now:           time.Now,
		subscribers:   make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.loop = ticker.NewLoop(c.tickInterval, c.tickerFactory)

	config := settings.Get()
	c.state = model.SessionState{
		Phase:            model.PhaseWork,
		Status:           model.StatusIdle,
		RemainingSeconds: config.DurationSeconds(model.PhaseWork),
		Version:          1,
		UpdatedAt:        c.now().UTC(),
	}
	return c
}

func (c *Clock) Snapshot() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Clock) Settings() model.SessionConfig {
	return c.settings.Get()
}

// Start moves an idle or paused clock to running. It is a no-op when the clock
// is already running, so the tick rate never doubles.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.state.Status == model.StatusRunning {
		return
	}

	c.state.Status = model.StatusRunning
	c.loop.Start(c.onTick)
	c.touchLocked()
	c.emitLocked(Event{Type: EventStateChange})
	c.log.Debug("clock started",
		zap.String("phase", string(c.state.Phase)),
		zap.Duration("tick_interval", c.loop.Interval()),
		zap.Int("remaining_seconds", c.state.RemainingSeconds))
}

// Pause moves a running clock to paused. No tick fires after Pause returns.
func (c *Clock) Pause() {
	c.mu.Lock()
	if c.closed || c.state.Status != model.StatusRunning {
		c.mu.Unlock()
		return
	}

	c.state.Status = model.StatusPaused
	done := c.loop.Revoke()
	c.touchLocked()
	c.emitLocked(Event{Type: EventStateChange})
	c.log.Debug("clock paused", zap.Int("remaining_seconds", c.state.RemainingSeconds))
	c.mu.Unlock()

	<-done
}

// Stop moves the clock to idle and rewinds the current phase to its full
// configured duration.
func (c *Clock) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	done := c.loop.Revoke()
	c.state.Status = model.StatusIdle
	c.state.RemainingSeconds = c.settings.Get().DurationSeconds(c.state.Phase)
	c.state.ElapsedSeconds = 0
	c.touchLocked()
	c.emitLocked(Event{Type: EventStateChange})
	c.log.Debug("clock stopped", zap.String("phase", string(c.state.Phase)))
	c.mu.Unlock()

	<-done
}

// Tick advances a running clock by one second. When the phase runs out the
// clock moves to the next phase and becomes idle; the next phase has to be
// started explicitly.
func (c *Clock) Tick() {
	c.mu.Lock()
	transition, done := c.advanceLocked()
	state := c.state
	c.mu.Unlock()

	if done != nil {
		<-done
	}
	c.notify(transition, state)
}

// Skip finishes the current phase immediately, whatever the status.
func (c *Clock) Skip() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	done := c.loop.Revoke()
	transition := c.completeLocked(model.OutcomeSkipped)
	state := c.state
	c.mu.Unlock()

	<-done
	c.notify(&transition, state)
}

// UpdateSettings stores config through the Settings Store and reconciles the
// current state with it. An idle clock adopts the new duration of its phase;
// a running or paused clock keeps its progress, capped at the new duration.
func (c *Clock) UpdateSettings(config model.SessionConfig) model.SessionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := c.settings.Update(config)
	duration := stored.DurationSeconds(c.state.Phase)
	if c.state.Status == model.StatusIdle || c.state.RemainingSeconds > duration {
		c.state.RemainingSeconds = duration
	}
	if c.state.WorkCount >= stored.CyclesBeforeLongBreak {
		c.state.WorkCount = stored.CyclesBeforeLongBreak - 1
	}

	c.touchLocked()
	c.emitLocked(Event{Type: EventSettingsChange, Settings: &stored})
	c.log.Debug("clock settings updated",
		zap.Int("work_minutes", stored.WorkMinutes),
		zap.Int("short_break_minutes", stored.ShortBreakMinutes),
		zap.Int("long_break_minutes", stored.LongBreakMinutes),
		zap.Int("cycles", stored.CyclesBeforeLongBreak))
	return stored
}

// Subscribe registers an observer. Events are dropped for observers whose
// buffer is full. The returned func unsubscribes and closes the channel.
func (c *Clock) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub)
		}
	}
}

// Close revokes the tick source and closes every subscriber. A running clock
// is left paused. Close returns once every transition hook already under way
// has returned. Close is idempotent.
func (c *Clock) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.closed = true
	done := c.loop.Revoke()
	if c.state.Status == model.StatusRunning {
		c.state.Status = model.StatusPaused
	}
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
	c.mu.Unlock()

	<-done
	c.hooks.Wait()
}

func (c *Clock) onTick(ctx context.Context) {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	// Completion revokes the loop from inside its own callback; the goroutine
	// exits on return, so the done channel is not awaited here.
	transition, _ := c.advanceLocked()
	state := c.state
	c.mu.Unlock()

	c.notify(transition, state)
}

func (c *Clock) advanceLocked() (*model.Transition, <-chan struct{}) {
	if c.state.Status != model.StatusRunning {
		return nil, nil
	}

	c.state.RemainingSeconds--
	c.state.ElapsedSeconds++
	if c.state.RemainingSeconds > 0 {
		c.state.UpdatedAt = c.now().UTC()
		c.emitLocked(Event{Type: EventTick})
		return nil, nil
	}

	c.state.RemainingSeconds = 0
	done := c.loop.Revoke()
	transition := c.completeLocked(model.OutcomeCompleted)
	return &transition, done
}

func (c *Clock) completeLocked(outcome model.Outcome) model.Transition {
	config := c.settings.Get()
	// Settings may have changed mid-phase; only the phase's own counters count.
	elapsed := c.state.ElapsedSeconds
	planned := elapsed + c.state.RemainingSeconds

	transition := CompletePhase(c.state, config)
	transition.Outcome = outcome
	transition.PlannedSeconds = planned
	transition.ElapsedSeconds = elapsed

	if transition.Phase == model.PhaseLongBreak {
		c.state.CompletedCycles++
	}
	c.state.Phase = transition.Phase
	c.state.RemainingSeconds = transition.DurationSeconds
	c.state.WorkCount = transition.WorkCount
	c.state.ElapsedSeconds = 0
	c.state.Status = model.StatusIdle
	c.touchLocked()
	if c.onTransition != nil {
		c.hooks.Add(1)
	}
	c.emitLocked(Event{Type: EventPhaseComplete, Transition: &transition})

	c.log.Info("phase finished",
		zap.String("from", string(transition.From)),
		zap.String("next", string(transition.Phase)),
		zap.String("outcome", string(outcome)),
		zap.Int("elapsed_seconds", elapsed),
		zap.Int("work_count", transition.WorkCount))
	return transition
}

func (c *Clock) notify(transition *model.Transition, state model.SessionState) {
	if transition == nil || c.onTransition == nil {
		return
	}
	defer c.hooks.Done()
	c.onTransition(*transition, state)
}

func (c *Clock) touchLocked() {
	c.state.Version++
	c.state.UpdatedAt = c.now().UTC()
}

func (c *Clock) emitLocked(event Event) {
	event.State = c.state
	if event.At.IsZero() {
		event.At = c.state.UpdatedAt
	}
	for _, ch := range c.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
