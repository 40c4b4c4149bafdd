// Package performance wires the cadence streams to the two schedulers: a
// once-per-second orchestrator applies the performance rules, and Session
// owns every component on one event loop.
package performance

import (
	"time"

	"pas-de-deux/cadence"
	"pas-de-deux/debug"
	"pas-de-deux/loop"
	"pas-de-deux/pulse"
)

// DefaultPeriod is the orchestrator tick
const DefaultPeriod = 1000 * time.Millisecond

// PerformanceSpec is what the pulse engine plays while the bass runs
const PerformanceSpec = `{
  "tempo": 130,
  "patterns": {
    "bass":   {"notes": ["c2", "_", "c2", "_", "g2", "_", "c2", "_"], "repeat": 2, "wave": "square"},
    "melody": {"notes": ["c4", "e4", "g4", "e4", "f4", "d4"], "repeat": 2, "wave": "sawtooth"},
    "lead":   {"notes": ["g5", "a5", "c6", "g5", "e5", "_", "_", "_"], "repeat": 1, "wave": "triangle"}
  }
}`

// PatternScheduler is the pulse engine as seen by the orchestrator
type PatternScheduler interface {
	Start(text string) error
	UpdateFromCode(text string) error
	Stop()
	IsPlaying() bool
	NextVoice() pulse.Voice
}

// RhythmLoop is the bass loop as seen by the orchestrator
type RhythmLoop interface {
	StartLoop()
	StopBass()
	SetBPM(bpm float64)
	NextPreset() string
	IsPlaying() bool
}

// BPMTable maps matched tempo states to bass tempo
type BPMTable map[cadence.TempoState]float64

// DefaultBPMTable returns the stock tempo to BPM mapping
func DefaultBPMTable() BPMTable {
	return BPMTable{
		cadence.Largo:    60,
		cadence.Adagio:   72,
		cadence.Andante:  90,
		cadence.Moderato: 110,
		cadence.Allegro:  130,
		cadence.Presto:   160,
	}
}

// CounterState is the performance's program: a running counter and the
// values pushed every time the left stream comes to rest
type CounterState struct {
	Counter int   `json:"counter"`
	Stack   []int `json:"stack"`
}

// Orchestrator applies the performance rules once per tick. It must run on
// the loop that owns both streams and both schedulers.
type Orchestrator struct {
	Left, Right *cadence.StreamState

	classifier *cadence.Classifier
	pulse      PatternScheduler
	rhythm     RhythmLoop
	bpm        BPMTable
	spec       string

	counter CounterState
	click   int
	timer   loop.Timer

	// OnClick is called when a rising edge advances the click sound (may be nil)
	OnClick func(v pulse.Voice)
	// OnPush is called after the counter is pushed onto the stack (may be nil)
	OnPush func(c CounterState)
}

// NewOrchestrator creates an orchestrator. A nil table uses DefaultBPMTable;
// an empty spec uses PerformanceSpec.
func NewOrchestrator(left, right *cadence.StreamState, c *cadence.Classifier, p PatternScheduler, r RhythmLoop, bpm BPMTable, spec string) *Orchestrator {
	if bpm == nil {
		bpm = DefaultBPMTable()
	}
	if spec == "" {
		spec = PerformanceSpec
	}
	return &Orchestrator{
		Left:       left,
		Right:      right,
		classifier: c,
		pulse:      p,
		rhythm:     r,
		bpm:        bpm,
		spec:       spec,
	}
}

// Start runs Tick every period on sched
func (o *Orchestrator) Start(sched loop.Scheduler, period time.Duration) {
	o.Stop()
	if period <= 0 {
		period = DefaultPeriod
	}
	o.timer = sched.Every(period, o.Tick)
}

// Stop cancels the tick
func (o *Orchestrator) Stop() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// Counter returns a copy of the counter state
func (o *Orchestrator) Counter() CounterState {
	return CounterState{
		Counter: o.counter.Counter,
		Stack:   append([]int(nil), o.counter.Stack...),
	}
}

// ClickSound is the sound keystrokes currently click with
func (o *Orchestrator) ClickSound() pulse.Voice {
	return pulse.Voices[o.click]
}

// Tick classifies both streams, then applies the rules in order. Previous
// states are committed last so the rules see this tick's edges.
func (o *Orchestrator) Tick() {
	for _, s := range []*cadence.StreamState{o.Left, o.Right} {
		if o.classifier.Classify(s) {
			o.click = (o.click + 1) % len(pulse.Voices)
			debug.Log("perform", "%s rose to %s, click -> %s", s.ID, s.Tempo, pulse.Voices[o.click].Name)
			if o.OnClick != nil {
				o.OnClick(pulse.Voices[o.click])
			}
		}
	}

	o.applyMatch()
	o.applyHolds()
	o.applyStop()
	o.applyCounter()

	o.Left.PreviousTempo = o.Left.Tempo
	o.Right.PreviousTempo = o.Right.Tempo
}

func (o *Orchestrator) applyMatch() {
	l, r := o.Left.Tempo, o.Right.Tempo
	if l != r || l == cadence.Stopped {
		return
	}

	v := o.pulse.NextVoice()
	debug.Log("perform", "match on %s, voice -> %s", l, v.Name)

	bpm, ok := o.bpm[l]
	if !ok {
		bpm = DefaultBPMTable()[l]
	}
	o.rhythm.SetBPM(bpm)
	if o.rhythm.IsPlaying() {
		return
	}

	o.rhythm.StartLoop()
	var err error
	if o.pulse.IsPlaying() {
		err = o.pulse.UpdateFromCode(o.spec)
	} else {
		err = o.pulse.Start(o.spec)
	}
	if err != nil {
		debug.Warn("perform", "performance spec rejected: %v", err)
	}
}

// applyHolds only looks at the left stream's Legato
func (o *Orchestrator) applyHolds() {
	if o.Left.Hold != o.Right.Hold && o.Left.Hold == cadence.Legato {
		name := o.rhythm.NextPreset()
		debug.Log("perform", "holds differ (%s/%s), preset -> %s", o.Left.Hold, o.Right.Hold, name)
	}
}

func (o *Orchestrator) applyStop() {
	if o.Left.Tempo != cadence.Stopped || o.Right.Tempo != cadence.Stopped {
		return
	}
	if !o.rhythm.IsPlaying() {
		return
	}
	o.rhythm.StopBass()
	o.pulse.Stop()
	debug.Log("perform", "both stopped, fading bass")
}

func (o *Orchestrator) applyCounter() {
	l, r := o.Left.Tempo, o.Right.Tempo
	switch {
	case l.Fast() && r.Fast():
		o.counter.Counter++
	case l.Slow() && r.Slow():
		o.counter.Counter--
	case l == cadence.Stopped && o.Left.PreviousTempo != cadence.Stopped:
		o.counter.Stack = append(o.counter.Stack, o.counter.Counter)
		debug.Log("perform", "push %d, stack=%v", o.counter.Counter, o.counter.Stack)
		o.counter.Counter = 0
		if o.OnPush != nil {
			o.OnPush(o.Counter())
		}
	}
}
