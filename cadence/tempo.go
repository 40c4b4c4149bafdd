package cadence

import (
	"fmt"
)

// Thresholds holds the inclusive upper rate bound (events/s) of Stopped
// through Allegro. Rates above the last bound are Presto.
type Thresholds [6]float64

var (
	// DefaultThresholds is the first tuning of the cut points
	DefaultThresholds = Thresholds{0.2, 0.8, 1.2, 2.0, 3.0, 4.5}
	// RevisedThresholds is the later, wider tuning
	RevisedThresholds = Thresholds{0.2, 1.2, 2.0, 3.0, 5.0, 9.0}
)

// Validate rejects tables that are not strictly increasing
func (th Thresholds) Validate() error {
	for i := 1; i < len(th); i++ {
		if !(th[i] > th[i-1]) {
			return fmt.Errorf("threshold %d (%g) must be greater than threshold %d (%g)", i, th[i], i-1, th[i-1])
		}
	}
	if th[0] < 0 {
		return fmt.Errorf("threshold 0 must be >= 0")
	}
	return nil
}

// State maps a rate onto a tempo state
func (th Thresholds) State(rate float64) TempoState {
	for i, upper := range th {
		if rate <= upper {
			return TempoState(i)
		}
	}
	return Presto
}

// ThresholdsFrom converts a config slice into a table
func ThresholdsFrom(values []float64) (Thresholds, error) {
	var th Thresholds
	if len(values) != len(th) {
		return th, fmt.Errorf("need %d thresholds, got %d", len(th), len(values))
	}
	copy(th[:], values)
	return th, th.Validate()
}

// Classifier assigns tempo states from stream rates
type Classifier struct {
	Thresholds Thresholds

	// OnUpdate is called after every classification (display hook, may be nil)
	OnUpdate func(s *StreamState)
}

// NewClassifier creates a classifier over the given table
func NewClassifier(th Thresholds) *Classifier {
	return &Classifier{Thresholds: th}
}

// Classify recomputes s.Tempo and reports a rising edge: true only when the
// new state ranks strictly above the old one. PreviousTempo is left alone;
// the orchestrator commits it once it has consumed the edge.
func (c *Classifier) Classify(s *StreamState) bool {
	old := s.Tempo
	s.Tempo = c.Thresholds.State(s.Rate)
	if c.OnUpdate != nil {
		c.OnUpdate(s)
	}
	return s.Tempo.Rank() > old.Rank()
}
