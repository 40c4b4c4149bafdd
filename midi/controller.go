package midi

import (
	"sync"
	"time"

	"pas-de-deux/cadence"
)

// Controller is the interface for MIDI input devices
type Controller interface {
	ID() string
	NoteEvents() <-chan NoteEvent
	Close() error
}

// Sink receives cadence input. performance.Session satisfies it.
type Sink interface {
	Keystroke(id cadence.StreamID)
	Hold(id cadence.StreamID, ms float64)
}

// Router turns note on/off pairs into keystrokes and hold durations.
// Notes below SplitNote drive the left stream, the rest drive the right.
type Router struct {
	SplitNote uint8
	sink      Sink

	mu      sync.Mutex
	pressed map[uint16]time.Time // channel<<8 | note -> when it went down
}

// NewRouter creates a router feeding sink
func NewRouter(sink Sink, splitNote uint8) *Router {
	return &Router{
		SplitNote: splitNote,
		sink:      sink,
		pressed:   make(map[uint16]time.Time),
	}
}

// StreamFor returns the stream a note belongs to
func (r *Router) StreamFor(note uint8) cadence.StreamID {
	if note < r.SplitNote {
		return cadence.Left
	}
	return cadence.Right
}

// Handle routes one note event. A note on with velocity 0 counts as a note off.
func (r *Router) Handle(ev NoteEvent) {
	key := uint16(ev.Channel)<<8 | uint16(ev.Note)
	stream := r.StreamFor(ev.Note)

	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.Type == NoteOn && ev.Velocity > 0 {
		r.pressed[key] = ev.At
		r.sink.Keystroke(stream)
		return
	}

	down, ok := r.pressed[key]
	if !ok {
		return
	}
	delete(r.pressed, key)
	if held := ev.At.Sub(down); held > 0 {
		r.sink.Hold(stream, float64(held)/float64(time.Millisecond))
	}
}

// Drain routes everything a controller sends until its channel closes
func (r *Router) Drain(c Controller) {
	for ev := range c.NoteEvents() {
		r.Handle(ev)
	}
}
