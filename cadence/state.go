// Package cadence turns raw input timing into tempo and articulation states.
package cadence

import "time"

// TempoState is a musical tempo bucket, ordered slow to fast
type TempoState int

const (
	Stopped TempoState = iota
	Largo              // very slow and broad
	Adagio             // slow and stately
	Andante            // walking pace
	Moderato           // moderate speed
	Allegro            // fast and lively
	Presto             // very fast
)

// TempoStates lists every state in rank order
var TempoStates = []TempoState{Stopped, Largo, Adagio, Andante, Moderato, Allegro, Presto}

var tempoNames = [...]string{"Stopped", "Largo", "Adagio", "Andante", "Moderato", "Allegro", "Presto"}

func (t TempoState) String() string {
	if t < Stopped || t > Presto {
		return "Unknown"
	}
	return tempoNames[t]
}

// Rank is the position in the slow-to-fast order
func (t TempoState) Rank() int {
	return int(t)
}

// Fast reports whether the state is in the fast bucket
func (t TempoState) Fast() bool {
	return t == Allegro || t == Presto
}

// Slow reports whether the state is in the slow bucket
func (t TempoState) Slow() bool {
	return t == Largo || t == Adagio || t == Andante
}

// ParseTempoState looks a state up by name
func ParseTempoState(name string) (TempoState, bool) {
	for i, n := range tempoNames {
		if n == name {
			return TempoState(i), true
		}
	}
	return Stopped, false
}

// MarshalText lets tempo states key JSON maps and appear as names
func (t TempoState) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// HoldState is the articulation implied by how long keys are held
type HoldState int

const (
	Staccato HoldState = iota
	Tenuto
	Legato
)

func (h HoldState) String() string {
	switch h {
	case Staccato:
		return "Staccato"
	case Tenuto:
		return "Tenuto"
	case Legato:
		return "Legato"
	}
	return "Unknown"
}

// MarshalText renders the state name in JSON
func (h HoldState) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// StreamID names an input stream
type StreamID string

const (
	Left  StreamID = "left"
	Right StreamID = "right"
)

// CadenceSample is one accepted input event inside a stream's scope window
type CadenceSample struct {
	At     time.Duration
	Stream StreamID
}

// MaxHoldSamples is the moving-average window for hold durations
const MaxHoldSamples = 8

// StreamState is everything known about one input stream. It is owned by the
// session and mutated only by the tracker and the classifiers.
type StreamState struct {
	ID            StreamID
	Rate          float64 // events per second over the scope window
	Tempo         TempoState
	PreviousTempo TempoState // last state the orchestrator observed
	Hold          HoldState
	MeanHoldMS    float64

	holds []float64
	scope []*CadenceSample
}

// NewStreamState creates an idle stream
func NewStreamState(id StreamID) *StreamState {
	return &StreamState{ID: id}
}

// Scope returns a copy of the samples currently in the window
func (s *StreamState) Scope() []CadenceSample {
	out := make([]CadenceSample, len(s.scope))
	for i, smp := range s.scope {
		out[i] = *smp
	}
	return out
}

// Holds returns a copy of the hold-duration buffer, oldest first
func (s *StreamState) Holds() []float64 {
	return append([]float64(nil), s.holds...)
}
