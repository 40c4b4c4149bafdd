package cadence

import (
	"time"

	"pas-de-deux/loop"
)

// DefaultScopeTimeout is how long an event counts toward the rate
const DefaultScopeTimeout = 3000 * time.Millisecond

// Tracker maintains each stream's sliding window of recent events
type Tracker struct {
	sched   loop.Scheduler
	timeout time.Duration

	// OnUpdate is called after every rate change (display hook, may be nil)
	OnUpdate func(s *StreamState)
}

// NewTracker creates a tracker. A non-positive timeout uses DefaultScopeTimeout.
func NewTracker(sched loop.Scheduler, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultScopeTimeout
	}
	return &Tracker{sched: sched, timeout: timeout}
}

// Timeout returns the scope window length
func (t *Tracker) Timeout() time.Duration {
	return t.timeout
}

// RegisterEvent adds an event to the stream's window and schedules its expiry
func (t *Tracker) RegisterEvent(s *StreamState) {
	sample := &CadenceSample{At: t.sched.Now(), Stream: s.ID}
	s.scope = append(s.scope, sample)
	t.sched.After(t.timeout, func() {
		if t.evict(s, sample) {
			t.update(s)
		}
	})
	t.update(s)
}

// evict removes exactly this sample; false if it was already gone
func (t *Tracker) evict(s *StreamState, sample *CadenceSample) bool {
	for i, smp := range s.scope {
		if smp == sample {
			s.scope = append(s.scope[:i], s.scope[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Tracker) update(s *StreamState) {
	s.Rate = float64(len(s.scope)) / t.timeout.Seconds()
	if t.OnUpdate != nil {
		t.OnUpdate(s)
	}
}
