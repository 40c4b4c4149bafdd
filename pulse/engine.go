package pulse

import (
	"math"
	"sort"
	"time"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"

	"pas-de-deux/debug"
	"pas-de-deux/loop"
	"pas-de-deux/render"
)

// Scheduling constants
const (
	DefaultTick      = 25 * time.Millisecond
	DefaultLookahead = 0.1 // seconds
	DefaultDuty      = 0.8 // note length as a fraction of the beat
)

// Options tune the engine. Zero values take the defaults.
type Options struct {
	Tick      time.Duration
	Lookahead float64
	Duty      float64
}

func (o Options) withDefaults() Options {
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	if o.Lookahead <= 0 {
		o.Lookahead = DefaultLookahead
	}
	if o.Duty <= 0 || o.Duty > 1 {
		o.Duty = DefaultDuty
	}
	return o
}

// Config is the engine's current global settings
type Config struct {
	Tempo float64 `json:"tempo"`
	Wave  string  `json:"wave"`
}

// Engine is the pattern scheduler. All methods must run on the loop that
// owns sched.
type Engine struct {
	sched   loop.Scheduler
	clock   loop.Clock
	backend render.Backend
	opts    Options

	spec        *Spec
	virtualTime float64
	timer       loop.Timer
	voice       int
	playing     bool
}

// NewEngine creates a stopped engine
func NewEngine(sched loop.Scheduler, clock loop.Clock, backend render.Backend, opts Options) *Engine {
	return &Engine{
		sched:   sched,
		clock:   clock,
		backend: backend,
		opts:    opts.withDefaults(),
	}
}

// Start parses text and (re)starts playback from the current audio time.
// On a parse error the running state is left untouched.
func (e *Engine) Start(text string) error {
	spec, err := Parse(text)
	if err != nil {
		debug.Warn("pulse", "start rejected: %v", err)
		return err
	}

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.spec = spec
	e.virtualTime = e.clock.CurrentTime()
	e.playing = true
	e.timer = e.sched.Every(e.opts.Tick, e.tick)
	debug.Log("pulse", "started at %.3f tempo=%.1f patterns=%d", e.virtualTime, spec.Tempo, len(spec.Patterns))

	e.tick()
	return nil
}

// UpdateFromCode swaps the pattern spec without touching timing. On a parse error the
// previous spec keeps playing.
func (e *Engine) UpdateFromCode(text string) error {
	spec, err := Parse(text)
	if err != nil {
		debug.Warn("pulse", "update rejected: %v", err)
		return err
	}
	e.spec = spec
	debug.Log("pulse", "spec updated tempo=%.1f patterns=%d", spec.Tempo, len(spec.Patterns))
	return nil
}

// Stop cancels scheduling. Idempotent.
func (e *Engine) Stop() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.playing {
		debug.Log("pulse", "stopped at %.3f", e.virtualTime)
	}
	e.playing = false
}

// IsPlaying reports whether the tick timer is running
func (e *Engine) IsPlaying() bool {
	return e.playing
}

// Patterns returns the active patterns (nil before the first Start)
func (e *Engine) Patterns() map[string]*Pattern {
	if e.spec == nil {
		return nil
	}
	return e.spec.Patterns
}

// Config returns the active tempo and default wave
func (e *Engine) Config() Config {
	if e.spec == nil {
		return Config{Tempo: DefaultTempo, Wave: DefaultWave}
	}
	return Config{Tempo: e.spec.Tempo, Wave: DefaultWave}
}

// VirtualTime is the audio time of the next unscheduled beat
func (e *Engine) VirtualTime() float64 {
	return e.virtualTime
}

// Voice returns the active voice
func (e *Engine) Voice() Voice {
	return Voices[e.voice]
}

// NextVoice advances to the next voice in the bank and returns it
func (e *Engine) NextVoice() Voice {
	e.voice = (e.voice + 1) % len(Voices)
	debug.Log("pulse", "voice -> %s", Voices[e.voice].Name)
	return Voices[e.voice]
}

func (e *Engine) tick() {
	if !e.playing || e.spec == nil {
		return
	}
	horizon := e.clock.CurrentTime() + e.opts.Lookahead
	for e.virtualTime < horizon {
		spec := e.spec
		beat := spec.Beat()
		step := int(math.Floor(e.virtualTime/beat + 1e-9))
		for _, name := range sortedKeys(spec.Patterns) {
			p := spec.Patterns[name]
			if len(p.Freqs) == 0 {
				continue
			}
			e.emit(p, step, beat)
		}
		next := e.virtualTime + beat
		if !(next > e.virtualTime) {
			debug.Warn("pulse", "beat %g no longer advances time at %.3f, stopping", beat, e.virtualTime)
			e.Stop()
			return
		}
		e.virtualTime = next
	}
}

// emit renders one step of one pattern. A panicking backend only costs this
// pattern its note.
func (e *Engine) emit(p *Pattern, step int, beat float64) {
	defer func() {
		if r := recover(); r != nil {
			debug.Warn("pulse", "pattern %q at %.3f: render failed: %v", p.Name, e.virtualTime, r)
		}
	}()
	idx := step % len(p.Freqs)
	if idx < 0 {
		idx += len(p.Freqs)
	}
	e.backend.RenderNote(render.Note{
		Time:     e.virtualTime,
		Freq:     p.Freqs[idx],
		Duration: beat * e.opts.Duty,
		Wave:     p.Wave,
		Voice:    Voices[e.voice].Name,
		Pattern:  p.Name,
	})
}

func sortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := maps.Keys(m)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
