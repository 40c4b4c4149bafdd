// Package render defines the audio capability the schedulers drive.
// Backends turn timed triggers into sound, MIDI or log lines.
package render

import (
	"sync"

	"pas-de-deux/debug"
)

// Note is one pattern trigger. Freq == 0 is a rest.
type Note struct {
	Time     float64 // audio-clock seconds
	Freq     float64
	Duration float64 // seconds
	Wave     string
	Voice    string
	Pattern  string
}

// Rest reports whether the note is silent
func (n Note) Rest() bool {
	return n.Freq <= 0
}

// Thump is one rhythm-loop trigger
type Thump struct {
	Time   float64 // audio-clock seconds
	Preset Preset
	Volume float64 // 0..1
}

// Preset describes the bass voice used for thumps
type Preset struct {
	Name       string  `json:"name"`
	Oscillator string  `json:"oscillator"` // sine, square, sawtooth, triangle
	BaseFreq   float64 `json:"baseFreq"`
	LFORate    float64 `json:"lfoRate"`
	LFODepth   float64 `json:"lfoDepth"`
	Cutoff     float64 `json:"cutoff"`
	Q          float64 `json:"q"`
	Detune     float64 `json:"detune"` // cents, random spread
	Gain       float64 `json:"gain"`
	Attack     float64 `json:"attack"`  // seconds
	Decay      float64 `json:"decay"`   // seconds
	Release    float64 `json:"release"` // seconds
}

// Backend receives triggers. Calls must not block the scheduling loop.
type Backend interface {
	RenderNote(n Note)
	RenderThump(t Thump)
}

// Multi fans triggers out to several backends
type Multi []Backend

func (m Multi) RenderNote(n Note) {
	for _, b := range m {
		b.RenderNote(n)
	}
}

func (m Multi) RenderThump(t Thump) {
	for _, b := range m {
		b.RenderThump(t)
	}
}

// Recorder keeps every trigger it receives
type Recorder struct {
	mu     sync.Mutex
	notes  []Note
	thumps []Thump
}

func (r *Recorder) RenderNote(n Note) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *Recorder) RenderThump(t Thump) {
	r.mu.Lock()
	r.thumps = append(r.thumps, t)
	r.mu.Unlock()
}

// Notes returns a copy of the recorded notes
func (r *Recorder) Notes() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Note(nil), r.notes...)
}

// Thumps returns a copy of the recorded thumps
func (r *Recorder) Thumps() []Thump {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Thump(nil), r.thumps...)
}

// Reset drops everything recorded so far
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notes = nil
	r.thumps = nil
	r.mu.Unlock()
}

// Log writes triggers to the debug log
type Log struct{}

func (Log) RenderNote(n Note) {
	if n.Rest() {
		return
	}
	debug.Log("render", "note t=%.3f %s/%s %.2fHz dur=%.3f wave=%s", n.Time, n.Pattern, n.Voice, n.Freq, n.Duration, n.Wave)
}

func (Log) RenderThump(t Thump) {
	debug.Log("render", "thump t=%.3f preset=%s vol=%.2f", t.Time, t.Preset.Name, t.Volume)
}
