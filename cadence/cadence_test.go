package cadence

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pas-de-deux/loop"
)

func TestRegisterEventRateAndEviction(t *testing.T) {
	m := loop.NewManual()
	tr := NewTracker(m, 3*time.Second)
	s := NewStreamState(Left)

	updates := 0
	tr.OnUpdate = func(*StreamState) { updates++ }

	tr.RegisterEvent(s)
	m.Advance(time.Second)
	tr.RegisterEvent(s)
	m.Advance(time.Second)
	tr.RegisterEvent(s)

	assert.InDelta(t, 1.0, s.Rate, 1e-9)
	assert.Len(t, s.Scope(), 3)
	assert.Equal(t, 3, updates)

	// first sample expires at 3s
	m.Advance(time.Second)
	assert.Len(t, s.Scope(), 2)
	assert.InDelta(t, 2.0/3.0, s.Rate, 1e-9)
	assert.Equal(t, 4, updates)

	m.Advance(2 * time.Second)
	assert.Empty(t, s.Scope())
	assert.Zero(t, s.Rate)
	assert.Equal(t, 6, updates)
}

func TestScopeHoldsOnlyYoungSamples(t *testing.T) {
	m := loop.NewManual()
	tr := NewTracker(m, 0)
	require.Equal(t, DefaultScopeTimeout, tr.Timeout())
	s := NewStreamState(Right)

	for i := 0; i < 20; i++ {
		tr.RegisterEvent(s)
		for _, smp := range s.Scope() {
			assert.Less(t, m.Now()-smp.At, tr.Timeout())
			assert.Equal(t, Right, smp.Stream)
		}
		m.Advance(400 * time.Millisecond)
	}
}

func TestThresholdState(t *testing.T) {
	// DefaultThresholds low bands with the RevisedThresholds top band
	th := Thresholds{0.2, 0.8, 1.2, 2.0, 3.0, 9.0}
	require.NoError(t, th.Validate())

	rates := []float64{0.1, 0.5, 1.0, 2.5, 6.0}
	want := []TempoState{Stopped, Largo, Adagio, Moderato, Allegro}
	for i, r := range rates {
		assert.Equal(t, want[i], th.State(r), "rate %v", r)
	}

	// bounds are inclusive
	assert.Equal(t, Stopped, th.State(0.2))
	assert.Equal(t, Presto, th.State(9.01))
	assert.Equal(t, Stopped, th.State(0))
}

func TestClassifyRisingEdgeOnly(t *testing.T) {
	c := NewClassifier(Thresholds{0.2, 0.8, 1.2, 2.0, 3.0, 9.0})
	s := NewStreamState(Left)

	var edges []int
	for i, r := range []float64{0.1, 0.5, 1.0, 2.5, 6.0} {
		s.Rate = r
		if c.Classify(s) {
			edges = append(edges, i)
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4}, edges)
	assert.Equal(t, Allegro, s.Tempo)
	assert.Equal(t, Stopped, s.PreviousTempo)

	// falling never signals
	for _, r := range []float64{2.5, 1.0, 0.0} {
		s.Rate = r
		assert.False(t, c.Classify(s))
	}

	// equal state does not signal either
	s.Rate = 0.05
	assert.False(t, c.Classify(s))
}

func TestClassifyCallsHook(t *testing.T) {
	c := NewClassifier(DefaultThresholds)
	var seen TempoState
	c.OnUpdate = func(s *StreamState) { seen = s.Tempo }

	s := NewStreamState(Left)
	s.Rate = 5
	assert.True(t, c.Classify(s))
	assert.Equal(t, Presto, seen)
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds.Validate())
	assert.NoError(t, RevisedThresholds.Validate())
	assert.Error(t, Thresholds{0.2, 0.2, 1, 2, 3, 4}.Validate())
	assert.Error(t, Thresholds{0.2, 0.8, 0.5, 2, 3, 4}.Validate())

	_, err := ThresholdsFrom([]float64{1, 2, 3})
	assert.Error(t, err)
	th, err := ThresholdsFrom([]float64{0.2, 1.2, 2.0, 3.0, 5.0, 9.0})
	require.NoError(t, err)
	assert.Equal(t, RevisedThresholds, th)
}

func TestTrackHoldCapsAtEight(t *testing.T) {
	s := NewStreamState(Left)
	for i := 1; i <= 20; i++ {
		TrackHold(s, float64(i*10), nil)
		assert.LessOrEqual(t, len(s.Holds()), MaxHoldSamples)
	}
	// last eight: 130..200
	assert.Equal(t, []float64{130, 140, 150, 160, 170, 180, 190, 200}, s.Holds())
	assert.InDelta(t, 165.0, s.MeanHoldMS, 1e-9)
	assert.Equal(t, Legato, s.Hold)
}

func TestTrackHoldClassifiesMean(t *testing.T) {
	cases := []struct {
		holds []float64
		want  HoldState
	}{
		{[]float64{50, 60}, Staccato},
		{[]float64{79.9}, Staccato},
		{[]float64{80}, Tenuto},
		{[]float64{100, 140}, Tenuto},
		{[]float64{149.9}, Tenuto},
		{[]float64{150}, Legato},
		{[]float64{60, 300}, Legato},
	}
	for _, tc := range cases {
		s := NewStreamState(Right)
		calls := 0
		for _, h := range tc.holds {
			TrackHold(s, h, func(*StreamState) { calls++ })
		}
		assert.Equal(t, tc.want, s.Hold, "holds %v", tc.holds)
		assert.Equal(t, len(tc.holds), calls)
	}
}

func TestTrackHoldIgnoresInvalid(t *testing.T) {
	s := NewStreamState(Left)
	called := false
	TrackHold(s, 0, func(*StreamState) { called = true })
	TrackHold(s, -5, func(*StreamState) { called = true })
	TrackHold(s, math.NaN(), func(*StreamState) { called = true })

	assert.False(t, called)
	assert.Empty(t, s.Holds())
	assert.Equal(t, Staccato, s.Hold)
}

func TestTempoStateNames(t *testing.T) {
	for _, st := range TempoStates {
		got, ok := ParseTempoState(st.String())
		require.True(t, ok)
		assert.Equal(t, st, got)
	}
	_, ok := ParseTempoState("Vivace")
	assert.False(t, ok)

	assert.True(t, Presto.Fast())
	assert.True(t, Allegro.Fast())
	assert.False(t, Moderato.Fast())
	assert.False(t, Moderato.Slow())
	assert.True(t, Largo.Slow())
	assert.False(t, Stopped.Slow())
	assert.Equal(t, "Legato", Legato.String())
}
