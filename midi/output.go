package midi

import (
	"container/heap"
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"

	"pas-de-deux/debug"
	"pas-de-deux/loop"
	"pas-de-deux/pulse"
	"pas-de-deux/render"
)

const (
	noteVelocity = 100
	minThumpLen  = 0.1 // seconds a thump note is held at least
)

// Output is a render backend that plays triggers on a MIDI port.
// Triggers are queued and sent when the audio clock reaches them.
type Output struct {
	NoteChannel uint8 // 0-15
	BassChannel uint8 // 0-15

	send  func(gomidi.Message) error
	clock loop.Clock

	mu    sync.Mutex
	queue eventQueue
	seq   uint64
	wake  chan struct{}
}

// OpenOutput opens the named output port. Channels are 1-16.
func OpenOutput(portName string, clock loop.Clock, noteChannel, bassChannel int) (*Output, error) {
	_, outPorts, err := scanPorts()
	if err != nil {
		return nil, err
	}
	for _, port := range outPorts {
		if port.String() == portName {
			send, err := gomidi.SendTo(port)
			if err != nil {
				return nil, errors.Wrapf(err, "open output %s", portName)
			}
			return NewOutput(send, clock, noteChannel, bassChannel), nil
		}
	}
	return nil, errors.Errorf("no MIDI output named %q", portName)
}

// NewOutput creates an output over any sender. Channels are 1-16.
func NewOutput(send func(gomidi.Message) error, clock loop.Clock, noteChannel, bassChannel int) *Output {
	return &Output{
		NoteChannel: channelIndex(noteChannel),
		BassChannel: channelIndex(bassChannel),
		send:        send,
		clock:       clock,
		wake:        make(chan struct{}, 1),
	}
}

func channelIndex(ch int) uint8 {
	if ch < 1 || ch > 16 {
		return 0
	}
	return uint8(ch - 1)
}

// RenderNote queues a note on/off pair. Rests are ignored.
func (o *Output) RenderNote(n render.Note) {
	if n.Rest() {
		return
	}
	note, ok := midiNote(n.Freq)
	if !ok {
		return
	}
	o.push(
		Event{Time: n.Time, Type: NoteOn, Channel: o.NoteChannel, Note: note, Velocity: noteVelocity},
		Event{Time: n.Time + n.Duration, Type: NoteOff, Channel: o.NoteChannel, Note: note},
	)
}

// RenderThump queues a bass note scaled by the fade volume
func (o *Output) RenderThump(t render.Thump) {
	note, ok := midiNote(t.Preset.BaseFreq)
	if !ok || t.Volume <= 0 {
		return
	}
	vel := uint8(math.Max(1, math.Min(127, math.Round(t.Volume*127))))
	length := math.Max(minThumpLen, t.Preset.Attack+t.Preset.Decay)
	o.push(
		Event{Time: t.Time, Type: NoteOn, Channel: o.BassChannel, Note: note, Velocity: vel},
		Event{Time: t.Time + length, Type: NoteOff, Channel: o.BassChannel, Note: note},
	)
}

func midiNote(freq float64) (uint8, bool) {
	if freq <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return 0, false
	}
	n := pulse.FreqMIDI(freq)
	if n < 0 || n > 127 {
		return 0, false
	}
	return uint8(n), true
}

func (o *Output) push(events ...Event) {
	o.mu.Lock()
	for _, e := range events {
		o.seq++
		e.seq = o.seq
		heap.Push(&o.queue, e)
	}
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued messages
func (o *Output) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queue.Len()
}

// Due pops every event at or before now, in time order
func (o *Output) Due(now float64) []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []Event
	for o.queue.Len() > 0 && o.queue[0].Time <= now {
		out = append(out, heap.Pop(&o.queue).(Event))
	}
	return out
}

// next returns the time of the earliest queued event
func (o *Output) next() (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.queue.Len() == 0 {
		return 0, false
	}
	return o.queue[0].Time, true
}

// Run dispatches queued messages at their clock time (blocking - run in goroutine).
// On cancel, held notes are released.
func (o *Output) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		wait := time.Duration(math.MaxInt64)
		if at, ok := o.next(); ok {
			wait = time.Duration((at - o.clock.CurrentTime()) * float64(time.Second))
		}

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				o.flush()
				return
			case <-o.wake:
				timer.Stop()
				continue
			case <-timer.C:
			}
		}

		for _, e := range o.Due(o.clock.CurrentTime()) {
			o.dispatch(e)
		}
	}
}

// flush sends every pending note off and drops the rest
func (o *Output) flush() {
	for _, e := range o.Due(math.Inf(1)) {
		if e.Type == NoteOff {
			o.dispatch(e)
		}
	}
}

func (o *Output) dispatch(e Event) {
	var err error
	switch e.Type {
	case NoteOn:
		err = o.send(gomidi.NoteOn(e.Channel, e.Note, e.Velocity))
	case NoteOff:
		err = o.send(gomidi.NoteOff(e.Channel, e.Note))
	}
	if err != nil {
		debug.LogEvery(50, "midi", "send: %v", err)
		return
	}
	debug.Log("dispatch", "ch=%d t=%.3f type=%x note=%d vel=%d", e.Channel+1, e.Time, e.Type, e.Note, e.Velocity)
}

// eventQueue orders events by time, then by insertion
type eventQueue []Event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].Time != q[j].Time {
		return q[i].Time < q[j].Time
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)   { *q = append(*q, x.(Event)) }
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}
