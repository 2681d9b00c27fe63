package ticker

import (
	"sync"
	"time"
)

// Manual is a Ticker driven by hand. Fire blocks until the loop receives the
// tick, so it doubles as a synchronisation point in tests and in the terminal
// runner's fast-forward mode.
type Manual struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func NewManual() *Manual {
	return &Manual{ch: make(chan time.Time)}
}

func (m *Manual) C() <-chan time.Time {
	return m.ch
}

func (m *Manual) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *Manual) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Fire delivers one tick, giving up after timeout. It reports whether a loop
// goroutine accepted the tick.
func (m *Manual) Fire(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m.ch <- time.Now():
		return true
	case <-timer.C:
		return false
	}
}

// ManualFactory hands out Manual tickers and remembers each one.
type ManualFactory struct {
	mu      sync.Mutex
	tickers []*Manual
}

func (f *ManualFactory) New(time.Duration) Ticker {
	m := NewManual()
	f.mu.Lock()
	f.tickers = append(f.tickers, m)
	f.mu.Unlock()
	return m
}

// Created returns how many tickers the factory has handed out.
func (f *ManualFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

// Last returns the most recently created ticker, or nil.
func (f *ManualFactory) Last() *Manual {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tickers) == 0 {
		return nil
	}
	return f.tickers[len(f.tickers)-1]
}
