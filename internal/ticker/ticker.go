// Package ticker provides the cancellable periodic tick source shared by the
// Pomodoro clock and the stopwatch.
package ticker

import (
	"context"
	"time"
)

// Ticker is the subset of time.Ticker the loop depends on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Factory creates a Ticker firing every interval.
type Factory func(interval time.Duration) Ticker

type systemTicker struct {
	ticker *time.Ticker
}

// System is the Factory backed by time.NewTicker.
func System(interval time.Duration) Ticker {
	return systemTicker{ticker: time.NewTicker(interval)}
}

func (t systemTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t systemTicker) Stop() {
	t.ticker.Stop()
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Loop runs a callback on a dedicated goroutine once per interval.
//
// Loop is not safe for concurrent use: the owner serialises Start and Revoke
// under its own mutex. The callback receives the loop context and must check
// ctx.Err() under that same mutex before mutating state, which makes a Revoke
// performed under the mutex visible to any tick already in flight.
type Loop struct {
	interval time.Duration
	factory  Factory
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewLoop(interval time.Duration, factory Factory) *Loop {
	if interval <= 0 {
		interval = time.Second
	}
	if factory == nil {
		factory = System
	}
	return &Loop{interval: interval, factory: factory}
}

func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Active reports whether a tick goroutine is scheduled.
func (l *Loop) Active() bool {
	return l.cancel != nil
}

// Start schedules fn once per interval. It returns false without doing
// anything when the loop is already active.
func (l *Loop) Start(fn func(ctx context.Context)) bool {
	if l.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t := l.factory(l.interval)
	l.cancel = cancel
	l.done = done

	go func() {
		defer close(done)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C():
				if ctx.Err() != nil {
					return
				}
				fn(ctx)
			}
		}
	}()
	return true
}

// Revoke cancels the tick goroutine. The returned channel is closed once the
// goroutine has exited; after that fn is never invoked again. Revoking an
// inactive loop returns an already closed channel.
//
// Callers must not wait on the channel from inside fn or while holding a lock
// fn acquires.
func (l *Loop) Revoke() <-chan struct{} {
	if l.cancel == nil {
		return closedDone
	}
	l.cancel()
	done := l.done
	l.cancel = nil
	l.done = nil
	return done
}
