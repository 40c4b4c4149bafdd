// Package pulse is the pattern scheduler: it expands a JSON pattern spec into
// timed notes and keeps a lookahead window filled on the audio clock.
package pulse

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Spec defaults and limits
const (
	DefaultTempo = 120.0
	DefaultWave  = "sine"
	MinTempo     = 20.0
	MaxTempo     = 600.0
	MaxSteps     = 4096 // expanded steps per pattern
)

// SpecError reports a spec that could not be decoded
type SpecError struct {
	Reason string
	Err    error
}

func (e *SpecError) Error() string {
	if e.Err != nil {
		return "invalid pattern spec: " + e.Reason + ": " + e.Err.Error()
	}
	return "invalid pattern spec: " + e.Reason
}

func (e *SpecError) Unwrap() error {
	return e.Err
}

// IsSpecError reports whether err (or anything it wraps) is a *SpecError
func IsSpecError(err error) bool {
	var se *SpecError
	return errors.As(err, &se)
}

// Pattern is one expanded voice line. A zero frequency is a rest.
type Pattern struct {
	Name  string
	Notes []string  // source tokens, before repetition
	Freqs []float64 // expanded sequence
	Wave  string
}

// Spec is an immutable decoded pattern spec
type Spec struct {
	Tempo    float64
	Patterns map[string]*Pattern
}

// Beat is the length of one step in seconds
func (s *Spec) Beat() float64 {
	return 60 / s.Tempo
}

type rawPattern struct {
	Notes  []string `json:"notes"`
	Repeat *int     `json:"repeat"`
	Wave   string   `json:"wave"`
}

type rawSpec struct {
	Tempo    *float64              `json:"tempo"`
	Patterns map[string]rawPattern `json:"patterns"`
}

// Parse decodes and expands a spec
func Parse(text string) (*Spec, error) {
	var raw rawSpec
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &SpecError{Reason: "malformed JSON", Err: err}
	}

	spec := &Spec{Tempo: DefaultTempo, Patterns: make(map[string]*Pattern, len(raw.Patterns))}
	// A zero tempo means "unset"
	if raw.Tempo != nil && *raw.Tempo != 0 {
		tempo := *raw.Tempo
		if tempo < 0 || math.IsNaN(tempo) {
			return nil, &SpecError{Reason: fmt.Sprintf("tempo must be positive, got %v", tempo)}
		}
		spec.Tempo = math.Max(MinTempo, math.Min(MaxTempo, tempo))
	}

	for name, rp := range raw.Patterns {
		// A zero repeat means "unset"
		repeat := 1
		if rp.Repeat != nil && *rp.Repeat != 0 {
			repeat = *rp.Repeat
		}
		if repeat < 0 {
			return nil, &SpecError{Reason: fmt.Sprintf("pattern %q: repeat must be a positive integer, got %d", name, repeat)}
		}
		if repeat > MaxSteps || (len(rp.Notes) > 0 && repeat > MaxSteps/len(rp.Notes)) {
			return nil, &SpecError{Reason: fmt.Sprintf("pattern %q: %d notes x %d repeats exceeds %d steps", name, len(rp.Notes), repeat, MaxSteps)}
		}
		wave := rp.Wave
		if wave == "" {
			wave = DefaultWave
		}
		spec.Patterns[name] = &Pattern{
			Name:  name,
			Notes: rp.Notes,
			Freqs: Expand(rp.Notes, repeat),
			Wave:  wave,
		}
	}
	return spec, nil
}

// Expand repeats notes k times and decodes each token
func Expand(notes []string, k int) []float64 {
	if k < 0 || len(notes) == 0 {
		k = 0
	}
	out := make([]float64, 0, len(notes)*k)
	for i := 0; i < k; i++ {
		for _, n := range notes {
			out = append(out, NoteFreq(n))
		}
	}
	return out
}

var noteRe = regexp.MustCompile(`^([a-gA-G])([#b]?)([0-9]+)$`)

var steps = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// NoteMIDI converts a pitch token to a MIDI note number
func NoteMIDI(token string) (int, bool) {
	m := noteRe.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return 0, false
	}
	semi := steps[strings.ToLower(m[1])[0]]
	switch m[2] {
	case "#":
		semi++
	case "b":
		semi--
	}
	octave, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, false
	}
	return (octave+1)*12 + semi, true
}

// NoteFreq converts a pitch token to Hz at A4 = 440. Rests and unknown
// tokens return 0.
func NoteFreq(token string) float64 {
	if token == "_" || token == "." {
		return 0
	}
	midi, ok := NoteMIDI(token)
	if !ok {
		return 0
	}
	return MIDIFreq(midi)
}

// MIDIFreq is 12-TET frequency for a MIDI note number
func MIDIFreq(midi int) float64 {
	return 440 * math.Pow(2, float64(midi-69)/12)
}

// FreqMIDI is the nearest MIDI note number for a frequency
func FreqMIDI(freq float64) int {
	return int(math.Round(69 + 12*math.Log2(freq/440)))
}
