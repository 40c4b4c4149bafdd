// Package loop provides the single-threaded event loop every scheduler in a
// performance runs on, plus a virtual-time twin for tests and offline renders.
package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a scheduled callback that can be cancelled
type Timer interface {
	// Stop cancels the callback. Safe to call more than once.
	Stop()
}

// Scheduler runs callbacks one at a time on a single logical thread.
// Components owned by a scheduler never need locks.
type Scheduler interface {
	Now() time.Duration                     // time since the scheduler started
	Every(d time.Duration, fn func()) Timer // periodic callback
	After(d time.Duration, fn func()) Timer // one-shot callback
	Post(fn func())                         // run fn on the loop, don't wait
	Do(fn func())                           // run fn on the loop and wait for it
}

// Clock reports the audio clock in seconds. Triggers are placed on this
// timeline, never on wall time.
type Clock interface {
	CurrentTime() float64
}

// Task queue depth before Post blocks
const queueDepth = 256

// Loop is the real event loop. Callbacks run on the goroutine calling Run.
type Loop struct {
	tasks chan func()
	start time.Time
	done  chan struct{}
	once  sync.Once
}

// New creates a loop. Its clock starts now.
func New() *Loop {
	return &Loop{
		tasks: make(chan func(), queueDepth),
		start: time.Now(),
		done:  make(chan struct{}),
	}
}

// Run executes posted callbacks until ctx is cancelled (blocking - run in goroutine)
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Done is closed once Run has returned
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Now returns the time elapsed since the loop was created
func (l *Loop) Now() time.Duration {
	return time.Since(l.start)
}

// CurrentTime is the wall-derived audio clock, in seconds
func (l *Loop) CurrentTime() float64 {
	return l.Now().Seconds()
}

// Post queues fn. Dropped silently once the loop has stopped.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Do runs fn on the loop and waits. Must not be called from a loop callback.
func (l *Loop) Do(fn func()) {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
	case <-l.done:
	}
}

type wallTimer struct {
	stopped atomic.Bool
	quit    chan struct{}
	timer   *time.Timer
}

func (t *wallTimer) Stop() {
	if t.stopped.CompareAndSwap(false, true) {
		close(t.quit)
		if t.timer != nil {
			t.timer.Stop()
		}
	}
}

// guard wraps fn so a callback already queued when Stop ran is skipped
func (t *wallTimer) guard(fn func()) func() {
	return func() {
		if !t.stopped.Load() {
			fn()
		}
	}
}

// Every posts fn to the loop every d
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	t := &wallTimer{quit: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.quit:
				return
			case <-l.done:
				return
			case <-ticker.C:
				l.Post(t.guard(fn))
			}
		}
	}()
	return t
}

// After posts fn to the loop once, after d
func (l *Loop) After(d time.Duration, fn func()) Timer {
	t := &wallTimer{quit: make(chan struct{})}
	once := t.guard(func() {
		t.stopped.Store(true)
		fn()
	})
	t.timer = time.AfterFunc(d, func() { l.Post(once) })
	return t
}
