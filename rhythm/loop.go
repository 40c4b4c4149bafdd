// Package rhythm is the bass loop: a second lookahead scheduler emitting one
// thump per beat, with live tempo, preset rotation and an 8-beat fade-out.
package rhythm

import (
	"math"
	"time"

	"pas-de-deux/debug"
	"pas-de-deux/loop"
	"pas-de-deux/render"
)

const (
	DefaultTick      = 25 * time.Millisecond
	DefaultLookahead = 0.1 // seconds
	DefaultBPM       = 120.0
	MinBPM           = 20.0
	MaxBPM           = 300.0
	FadeBeats        = 8
)

// Options tune the loop. Zero values take the defaults.
type Options struct {
	Tick      time.Duration
	Lookahead float64
}

// State is a snapshot of the loop
type State struct {
	BPM      float64 `json:"bpm"`
	Preset   string  `json:"preset"`
	Playing  bool    `json:"playing"`
	Fading   bool    `json:"fading"`
	FadeStep int     `json:"fadeStep"`
	Volume   float64 `json:"volume"`
	Next     float64 `json:"next"`
}

// Loop is the rhythm scheduler. All methods must run on the loop that owns
// sched.
type Loop struct {
	sched   loop.Scheduler
	clock   loop.Clock
	backend render.Backend
	bank    *Bank

	tick      time.Duration
	lookahead float64

	bpm      float64
	preset   string
	playing  bool
	fading   bool
	fadeStep int
	volume   float64
	next     float64
	timer    loop.Timer

	// OnFade is called on every fade step (may be nil)
	OnFade func(step int, volume float64)
}

// New creates a stopped loop. A nil bank uses the built-in presets.
func New(sched loop.Scheduler, clock loop.Clock, backend render.Backend, bank *Bank, opts Options) *Loop {
	if bank == nil {
		bank = NewBank()
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	return &Loop{
		sched:     sched,
		clock:     clock,
		backend:   backend,
		bank:      bank,
		tick:      opts.Tick,
		lookahead: opts.Lookahead,
		bpm:       DefaultBPM,
		preset:    DefaultPreset,
		volume:    1,
	}
}

// StartLoop (re)starts the loop at the current audio time with fade cleared
func (l *Loop) StartLoop() {
	l.cancel()
	l.fading = false
	l.fadeStep = 0
	l.volume = 1
	l.playing = true
	l.next = l.clock.CurrentTime()
	l.timer = l.sched.Every(l.tick, l.schedule)
	debug.Log("rhythm", "started at %.3f bpm=%.1f preset=%s", l.next, l.bpm, l.preset)
	l.schedule()
}

// StopBass arms the fade-out. No-op when stopped or already fading.
func (l *Loop) StopBass() {
	if !l.playing || l.fading {
		return
	}
	l.fading = true
	l.fadeStep = 0
	debug.Log("rhythm", "fade armed at %.3f", l.next)
}

// SetBPM changes the tempo from the next interval on, clamped to [20, 300]
func (l *Loop) SetBPM(bpm float64) {
	if math.IsNaN(bpm) {
		return
	}
	l.bpm = math.Max(MinBPM, math.Min(MaxBPM, bpm))
}

// BPM returns the commanded tempo
func (l *Loop) BPM() float64 {
	return l.bpm
}

// NextPreset cycles to the next preset and returns its name
func (l *Loop) NextPreset() string {
	l.preset = l.bank.Next(l.preset)
	debug.Log("rhythm", "preset -> %s", l.preset)
	return l.preset
}

// SelectPreset switches preset by name. Unknown names fall back to classic.
func (l *Loop) SelectPreset(name string) string {
	if _, ok := l.bank.Get(name); !ok {
		debug.Warn("rhythm", "preset %q not found, falling back to %s", name, DefaultPreset)
		name = DefaultPreset
	}
	l.preset = name
	return l.preset
}

// Presets returns the rotation order
func (l *Loop) Presets() []string {
	return l.bank.Names()
}

// IsPlaying is true while active and not fading
func (l *Loop) IsPlaying() bool {
	return l.playing && !l.fading
}

// State returns a snapshot
func (l *Loop) State() State {
	return State{
		BPM:      l.bpm,
		Preset:   l.preset,
		Playing:  l.playing,
		Fading:   l.fading,
		FadeStep: l.fadeStep,
		Volume:   l.volume,
		Next:     l.next,
	}
}

func (l *Loop) cancel() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *Loop) schedule() {
	if !l.playing {
		return
	}
	horizon := l.clock.CurrentTime() + l.lookahead
	for l.next < horizon {
		if l.fading {
			l.fadeStep++
			l.volume = math.Max(0, 1-float64(l.fadeStep)/FadeBeats)
			debug.Log("rhythm", "fade %d/%d volume=%.2f", l.fadeStep, FadeBeats, l.volume)
			if l.OnFade != nil {
				l.OnFade(l.fadeStep, l.volume)
			}
			if l.fadeStep >= FadeBeats {
				l.cancel()
				l.playing = false
				l.fading = false
				l.fadeStep = 0
				l.volume = 1
				debug.Log("rhythm", "fade complete at %.3f", l.next)
				return
			}
		}
		l.backend.RenderThump(render.Thump{Time: l.next, Preset: l.currentPreset(), Volume: l.volume})
		l.next += 60 / l.bpm
	}
}

func (l *Loop) currentPreset() render.Preset {
	p, ok := l.bank.Get(l.preset)
	if !ok {
		debug.Warn("rhythm", "preset %q not found, falling back to %s", l.preset, DefaultPreset)
		l.preset = DefaultPreset
		p, _ = l.bank.Get(DefaultPreset)
	}
	return p
}
