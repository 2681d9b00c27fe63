package ticker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLoopStartIsIdempotent(t *testing.T) {
	factory := &ManualFactory{}
	loop := NewLoop(time.Second, factory.New)

	var calls atomic.Int32
	require.True(t, loop.Start(func(context.Context) { calls.Add(1) }))
	require.False(t, loop.Start(func(context.Context) { calls.Add(100) }))
	assert.Equal(t, 1, factory.Created())
	assert.True(t, loop.Active())

	require.True(t, factory.Last().Fire(time.Second))
	require.True(t, factory.Last().Fire(time.Second))
	<-loop.Revoke()

	assert.Equal(t, int32(2), calls.Load())
}

func TestLoopRevokeStopsFurtherCallbacks(t *testing.T) {
	factory := &ManualFactory{}
	loop := NewLoop(time.Second, factory.New)

	var calls atomic.Int32
	loop.Start(func(context.Context) { calls.Add(1) })
	tk := factory.Last()
	require.True(t, tk.Fire(time.Second))

	<-loop.Revoke()
	assert.False(t, loop.Active())
	assert.True(t, tk.Stopped())
	assert.False(t, tk.Fire(20*time.Millisecond), "tick accepted after revoke")
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoopRevokeWhenInactive(t *testing.T) {
	loop := NewLoop(0, nil)
	assert.Equal(t, time.Second, loop.Interval())

	select {
	case <-loop.Revoke():
	default:
		t.Fatal("revoke on idle loop should return a closed channel")
	}
	<-loop.Revoke()
}

func TestLoopRestartAfterRevoke(t *testing.T) {
	factory := &ManualFactory{}
	loop := NewLoop(time.Second, factory.New)

	loop.Start(func(context.Context) {})
	<-loop.Revoke()
	require.True(t, loop.Start(func(context.Context) {}))
	assert.Equal(t, 2, factory.Created())
	<-loop.Revoke()
}

func TestLoopRevokeFromCallback(t *testing.T) {
	factory := &ManualFactory{}
	loop := NewLoop(time.Second, factory.New)

	var mu sync.Mutex
	var calls int
	var done <-chan struct{}
	loop.Start(func(ctx context.Context) {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		calls++
		done = loop.Revoke()
	})

	require.True(t, factory.Last().Fire(time.Second))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return done != nil
	}, time.Second, time.Millisecond)

	mu.Lock()
	waitFor := done
	mu.Unlock()
	<-waitFor
	assert.Equal(t, 1, calls)
}

func TestSystemTickerFires(t *testing.T) {
	loop := NewLoop(5*time.Millisecond, System)

	var calls atomic.Int32
	loop.Start(func(context.Context) { calls.Add(1) })
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	<-loop.Revoke()
}
