package performance

import (
	"time"

	"pas-de-deux/cadence"
)

// EventKind is what a take event records
type EventKind string

const (
	EventKey  EventKind = "key"
	EventHold EventKind = "hold"
)

// TakeEvent is one recorded input, stamped with loop time
type TakeEvent struct {
	At     time.Duration    `json:"at"`
	Stream cadence.StreamID `json:"stream"`
	Kind   EventKind        `json:"kind"`
	HoldMS float64          `json:"holdMs,omitempty"`
}

// Take is the recorded input of one performance
type Take struct {
	ID       string        `json:"id"`
	Name     string        `json:"name,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Events   []TakeEvent   `json:"events"`
	Counter  CounterState  `json:"counter"`
}

func (t *Take) add(e TakeEvent) {
	t.Events = append(t.Events, e)
}

// Replay schedules every event of t from now, keeping the recorded spacing.
// The timers fire on the loop, so events are applied in place.
func (s *Session) Replay(t Take) {
	if len(t.Events) == 0 {
		return
	}
	first := t.Events[0].At
	for _, e := range t.Events {
		e := e
		s.rt.After(e.At-first, func() {
			switch e.Kind {
			case EventKey:
				s.keystroke(e.Stream)
			case EventHold:
				s.hold(e.Stream, e.HoldMS)
			}
		})
	}
}
