package pulse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pas-de-deux/loop"
	"pas-de-deux/render"
)

func TestNoteFreq(t *testing.T) {
	assert.InDelta(t, 261.63, NoteFreq("c4"), 0.01)
	assert.InDelta(t, 440.0, NoteFreq("a4"), 1e-9)
	assert.InDelta(t, 440.0, NoteFreq("A4"), 1e-9)
	assert.InDelta(t, 277.18, NoteFreq("c#4"), 0.01)
	assert.InDelta(t, 277.18, NoteFreq("db4"), 0.01)
	assert.InDelta(t, 65.41, NoteFreq("c2"), 0.01)
	assert.Zero(t, NoteFreq("_"))
	assert.Zero(t, NoteFreq("."))
	assert.Zero(t, NoteFreq("h4"))
	assert.Zero(t, NoteFreq("c4x"))
	assert.Zero(t, NoteFreq(""))

	midi, ok := NoteMIDI("c4")
	require.True(t, ok)
	assert.Equal(t, 60, midi)
	assert.Equal(t, 69, FreqMIDI(440))
	assert.Equal(t, 60, FreqMIDI(NoteFreq("c4")))
}

func TestExpandLength(t *testing.T) {
	notes := []string{"c4", "_", "e4"}
	for k := 0; k <= 4; k++ {
		assert.Len(t, Expand(notes, k), k*len(notes))
	}
	assert.Equal(t, []float64{440, 0, 440, 0}, Expand([]string{"a4", "_"}, 2))
}

func TestParseDefaults(t *testing.T) {
	spec, err := Parse(`{"patterns": {"lead": {"notes": ["a4", "x"]}}}`)
	require.NoError(t, err)
	assert.Equal(t, DefaultTempo, spec.Tempo)
	lead := spec.Patterns["lead"]
	require.NotNil(t, lead)
	assert.Equal(t, DefaultWave, lead.Wave)
	assert.Equal(t, []float64{440, 0}, lead.Freqs)
	assert.InDelta(t, 0.5, spec.Beat(), 1e-12)

	// zero tempo and zero repeat mean "unset"
	spec, err = Parse(`{"tempo": 0, "patterns": {"a": {"notes": ["a4", "_"], "repeat": 0}}}`)
	require.NoError(t, err)
	assert.Equal(t, DefaultTempo, spec.Tempo)
	assert.Len(t, spec.Patterns["a"].Freqs, 2)
}

func TestParseClampsTempo(t *testing.T) {
	spec, err := Parse(`{"tempo": 1e20, "patterns": {"a": {"notes": ["a4"]}}}`)
	require.NoError(t, err)
	assert.Equal(t, MaxTempo, spec.Tempo)

	spec, err = Parse(`{"tempo": 0.001}`)
	require.NoError(t, err)
	assert.Equal(t, MinTempo, spec.Tempo)
}

func TestParseRejectsOversizedPatterns(t *testing.T) {
	cases := []string{
		`{"patterns": {"a": {"notes": ["a4", "b4", "c4", "d4"], "repeat": 4611686018427387904}}}`,
		`{"patterns": {"a": {"notes": [], "repeat": 4611686018427387904}}}`,
		`{"patterns": {"a": {"notes": ["a4", "b4"], "repeat": 2049}}}`,
	}
	for _, text := range cases {
		_, err := Parse(text)
		require.Error(t, err, text)
		assert.True(t, IsSpecError(err), text)
	}

	spec, err := Parse(`{"patterns": {"a": {"notes": ["a4", "b4"], "repeat": 2048}}}`)
	require.NoError(t, err)
	assert.Len(t, spec.Patterns["a"].Freqs, MaxSteps)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		`{"tempo": 120, "patterns": `,
		`not json`,
		`{"tempo": -10}`,
		`{"patterns": {"a": {"notes": ["c4"], "repeat": -2}}}`,
		`{"patterns": {"a": {"notes": ["c4"], "repeat": 1.5}}}`,
	}
	for _, text := range cases {
		_, err := Parse(text)
		require.Error(t, err, text)
		assert.True(t, IsSpecError(err), text)
	}
}

const twoBeat = `{"tempo": 120, "patterns": {"bass": {"notes": ["c4", "_", "a4"], "repeat": 2, "wave": "square"}}}`

func newTestEngine() (*loop.Manual, *render.Recorder, *Engine) {
	m := loop.NewManual()
	rec := &render.Recorder{}
	return m, rec, NewEngine(m, m, rec, Options{})
}

func TestEngineSchedulesLookahead(t *testing.T) {
	m, rec, e := newTestEngine()
	require.NoError(t, e.Start(twoBeat))
	assert.True(t, e.IsPlaying())

	// the immediate tick covers the first beat
	require.Len(t, rec.Notes(), 1)

	m.Advance(3 * time.Second)
	notes := rec.Notes()
	require.Len(t, notes, 7)
	for i, n := range notes {
		assert.InDelta(t, float64(i)*0.5, n.Time, 1e-9)
		assert.InDelta(t, 0.4, n.Duration, 1e-9)
		assert.Equal(t, "square", n.Wave)
		assert.Equal(t, "bass", n.Pattern)
		// never scheduled further ahead than the lookahead
		assert.Less(t, n.Time, 3.0+DefaultLookahead+1e-9)
	}
	assert.InDelta(t, 261.63, notes[0].Freq, 0.01)
	assert.True(t, notes[1].Rest())
	assert.InDelta(t, 440.0, notes[2].Freq, 1e-9)
	assert.InDelta(t, 261.63, notes[6].Freq, 0.01)
}

func TestEngineRestartKeepsOneLoop(t *testing.T) {
	m, rec, e := newTestEngine()
	require.NoError(t, e.Start(twoBeat))
	m.Advance(time.Second)
	require.NoError(t, e.Start(twoBeat))
	require.NoError(t, e.Start(twoBeat))
	assert.Equal(t, 1, m.Pending())

	rec.Reset()
	m.Advance(2 * time.Second)
	notes := rec.Notes()
	seen := map[float64]bool{}
	for _, n := range notes {
		assert.False(t, seen[n.Time], "duplicate trigger at %v", n.Time)
		seen[n.Time] = true
	}
	assert.Len(t, notes, 4)
}

func TestEngineLiveUpdateKeepsTiming(t *testing.T) {
	m, rec, e := newTestEngine()
	require.NoError(t, e.Start(twoBeat))
	m.Advance(time.Second)
	vt := e.VirtualTime()
	assert.InDelta(t, 1.5, vt, 1e-9)

	require.NoError(t, e.UpdateFromCode(`{"tempo": 60, "patterns": {"lead": {"notes": ["a4"], "wave": "triangle"}}}`))
	assert.Equal(t, vt, e.VirtualTime())
	assert.Equal(t, 1, m.Pending())
	assert.Equal(t, 60.0, e.Config().Tempo)

	rec.Reset()
	m.Advance(2 * time.Second)
	notes := rec.Notes()
	require.Len(t, notes, 2)
	assert.InDelta(t, 1.5, notes[0].Time, 1e-9)
	assert.InDelta(t, 2.5, notes[1].Time, 1e-9)
	for _, n := range notes {
		assert.Equal(t, "lead", n.Pattern)
		assert.InDelta(t, 0.8, n.Duration, 1e-9)
	}
}

func TestEngineBadSpecLeavesStateAlone(t *testing.T) {
	m, rec, e := newTestEngine()
	assert.Error(t, e.Start("{"))
	assert.False(t, e.IsPlaying())
	assert.Zero(t, m.Pending())

	require.NoError(t, e.Start(twoBeat))
	assert.Error(t, e.Start(`{"tempo": -1}`))
	assert.Error(t, e.UpdateFromCode("nope"))
	assert.True(t, e.IsPlaying())
	assert.Equal(t, 120.0, e.Config().Tempo)

	rec.Reset()
	m.Advance(time.Second)
	assert.NotEmpty(t, rec.Notes())
}

func TestEngineStopIsIdempotent(t *testing.T) {
	m, rec, e := newTestEngine()
	require.NoError(t, e.Start(twoBeat))
	e.Stop()
	e.Stop()
	assert.False(t, e.IsPlaying())
	assert.Zero(t, m.Pending())

	rec.Reset()
	m.Advance(2 * time.Second)
	assert.Empty(t, rec.Notes())
}

type panicky struct {
	render.Recorder
}

func (p *panicky) RenderNote(n render.Note) {
	if n.Pattern == "broken" {
		panic("synth exploded")
	}
	p.Recorder.RenderNote(n)
}

func TestEngineSurvivesRenderPanic(t *testing.T) {
	m := loop.NewManual()
	be := &panicky{}
	e := NewEngine(m, m, be, Options{})
	require.NoError(t, e.Start(`{"tempo": 120, "patterns": {
		"broken": {"notes": ["c4"]},
		"fine": {"notes": ["e4"]}}}`))

	m.Advance(time.Second)
	notes := be.Notes()
	assert.Len(t, notes, 3)
	for _, n := range notes {
		assert.Equal(t, "fine", n.Pattern)
	}
	assert.True(t, e.IsPlaying())
}

func TestEnginePatternOrderAndVoice(t *testing.T) {
	_, rec, e := newTestEngine()
	require.NoError(t, e.Start(`{"patterns": {"zeta": {"notes": ["c4"]}, "alpha": {"notes": ["c5"]}}}`))
	notes := rec.Notes()
	require.Len(t, notes, 2)
	assert.Equal(t, "alpha", notes[0].Pattern)
	assert.Equal(t, "zeta", notes[1].Pattern)
	assert.Equal(t, Voices[0].Name, notes[0].Voice)

	for range Voices {
		e.NextVoice()
	}
	assert.Equal(t, Voices[0], e.Voice())
	assert.Equal(t, Voices[1], e.NextVoice())
}

func TestEngineStopsWhenBeatCannotAdvance(t *testing.T) {
	m, _, e := newTestEngine()
	require.NoError(t, e.Start(twoBeat))
	e.spec = &Spec{Tempo: 1e20, Patterns: e.spec.Patterns}

	done := make(chan struct{})
	go func() {
		m.Advance(time.Second)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("tick never returned")
	}
	assert.False(t, e.IsPlaying())
	assert.Zero(t, m.Pending())
}
