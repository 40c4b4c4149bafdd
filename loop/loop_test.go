package loop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualFiresInDueOrder(t *testing.T) {
	m := NewManual()
	var order []string

	m.After(30*time.Millisecond, func() { order = append(order, "c") })
	m.After(10*time.Millisecond, func() { order = append(order, "a") })
	m.After(20*time.Millisecond, func() { order = append(order, "b") })

	m.Advance(25 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 25*time.Millisecond, m.Now())

	m.Advance(10 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestManualEveryRepeatsUntilStopped(t *testing.T) {
	m := NewManual()
	var fired []time.Duration
	tm := m.Every(25*time.Millisecond, func() { fired = append(fired, m.Now()) })

	m.Advance(100 * time.Millisecond)
	assert.Equal(t, []time.Duration{25 * time.Millisecond, 50 * time.Millisecond, 75 * time.Millisecond, 100 * time.Millisecond}, fired)
	assert.Equal(t, 1, m.Pending())

	tm.Stop()
	tm.Stop()
	m.Advance(100 * time.Millisecond)
	assert.Len(t, fired, 4)
	assert.Equal(t, 0, m.Pending())
}

func TestManualCallbackCanStopItself(t *testing.T) {
	m := NewManual()
	count := 0
	var tm Timer
	tm = m.Every(10*time.Millisecond, func() {
		count++
		if count == 3 {
			tm.Stop()
		}
	})
	m.Advance(time.Second)
	assert.Equal(t, 3, count)
}

func TestManualCurrentTimeInSeconds(t *testing.T) {
	m := NewManual()
	m.Advance(1500 * time.Millisecond)
	assert.InDelta(t, 1.5, m.CurrentTime(), 1e-12)
}

func TestLoopRunsPostedWorkSerially(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var n int
	for i := 0; i < 100; i++ {
		l.Post(func() { n++ })
	}
	var got int
	l.Do(func() { got = n })
	assert.Equal(t, 100, got)
}

func TestLoopAfterAndStop(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var fired atomic.Int32
	l.After(5*time.Millisecond, func() { fired.Add(1) })
	stopped := l.After(5*time.Millisecond, func() { fired.Add(100) })
	stopped.Stop()

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestLoopStopsAfterCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	// Post after shutdown must not block
	l.Post(func() {})
	l.Do(func() {})
}
