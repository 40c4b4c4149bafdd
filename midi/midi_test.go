package midi

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"pas-de-deux/cadence"
	"pas-de-deux/render"
)

type holdCall struct {
	stream cadence.StreamID
	ms     float64
}

type fakeSink struct {
	keys  []cadence.StreamID
	holds []holdCall
}

func (f *fakeSink) Keystroke(id cadence.StreamID) { f.keys = append(f.keys, id) }
func (f *fakeSink) Hold(id cadence.StreamID, ms float64) {
	f.holds = append(f.holds, holdCall{id, ms})
}

func TestRouterSplitsAndMeasuresHolds(t *testing.T) {
	assert := assert.New(t)
	sink := &fakeSink{}
	r := NewRouter(sink, 60)
	t0 := time.Unix(100, 0)

	r.Handle(NoteEvent{Type: NoteOn, Note: 48, Velocity: 90, At: t0})
	r.Handle(NoteEvent{Type: NoteOn, Note: 72, Velocity: 90, At: t0})
	r.Handle(NoteEvent{Type: NoteOff, Note: 48, At: t0.Add(120 * time.Millisecond)})
	// velocity 0 note on is a release
	r.Handle(NoteEvent{Type: NoteOn, Note: 72, Velocity: 0, At: t0.Add(60 * time.Millisecond)})

	assert.Equal([]cadence.StreamID{cadence.Left, cadence.Right}, sink.keys)
	require.Len(t, sink.holds, 2)
	assert.Equal(holdCall{cadence.Left, 120}, sink.holds[0])
	assert.Equal(holdCall{cadence.Right, 60}, sink.holds[1])
}

func TestRouterIgnoresUnpairedRelease(t *testing.T) {
	sink := &fakeSink{}
	r := NewRouter(sink, 60)
	r.Handle(NoteEvent{Type: NoteOff, Note: 40, At: time.Now()})
	assert.Empty(t, sink.keys)
	assert.Empty(t, sink.holds)
}

func TestRouterSplitBoundary(t *testing.T) {
	r := NewRouter(&fakeSink{}, 60)
	assert.Equal(t, cadence.Left, r.StreamFor(59))
	assert.Equal(t, cadence.Right, r.StreamFor(60))
}

func TestOutputQueuesInTimeOrder(t *testing.T) {
	assert := assert.New(t)
	o := NewOutput(nil, nil, 1, 2)

	o.RenderNote(render.Note{Time: 1.0, Freq: 440, Duration: 0.4})
	o.RenderNote(render.Note{Time: 0.5, Freq: 0, Duration: 0.4}) // rest
	o.RenderThump(render.Thump{Time: 0.25, Volume: 0.5, Preset: render.Preset{BaseFreq: 55, Attack: 0.01, Decay: 0.3}})
	assert.Equal(4, o.Pending())

	due := o.Due(0.3)
	require.Len(t, due, 1)
	assert.Equal(NoteOn, due[0].Type)
	assert.Equal(uint8(1), due[0].Channel)
	assert.Equal(uint8(33), due[0].Note)
	assert.Equal(uint8(64), due[0].Velocity)

	due = o.Due(1.5)
	require.Len(t, due, 3)
	assert.Equal(NoteOff, due[0].Type)
	assert.InDelta(0.56, due[0].Time, 1e-9)
	assert.Equal(uint8(0), due[1].Channel)
	assert.Equal(uint8(69), due[1].Note)
	assert.Equal(NoteOff, due[2].Type)
	assert.InDelta(1.4, due[2].Time, 1e-9)
	assert.Equal(0, o.Pending())
}

func TestOutputSkipsSilentThumps(t *testing.T) {
	o := NewOutput(nil, nil, 1, 2)
	o.RenderThump(render.Thump{Time: 0, Volume: 0, Preset: render.Preset{BaseFreq: 55}})
	assert.Equal(t, 0, o.Pending())
}

func TestChannelIndex(t *testing.T) {
	assert.Equal(t, uint8(0), channelIndex(1))
	assert.Equal(t, uint8(15), channelIndex(16))
	assert.Equal(t, uint8(0), channelIndex(0))
	assert.Equal(t, uint8(0), channelIndex(17))
}

func TestExportWritesNotes(t *testing.T) {
	notes := []render.Note{
		{Time: 0, Freq: 261.63, Duration: 0.4},
		{Time: 0.5, Freq: 0, Duration: 0.4},
		{Time: 1.0, Freq: 440, Duration: 0.4},
	}
	thumps := []render.Thump{{Time: 0, Volume: 1, Preset: render.Preset{BaseFreq: 55, Decay: 0.3}}}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, notes, thumps, 1, 2))

	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, s.Tracks, 2)

	var keys []uint8
	for _, ev := range s.Tracks[1] {
		var ch, key, vel uint8
		if gomidi.Message(ev.Message).GetNoteOn(&ch, &key, &vel) && vel > 0 {
			keys = append(keys, key)
		}
	}
	assert.ElementsMatch(t, []uint8{60, 33, 69}, keys)
}

func TestDeviceManagerWants(t *testing.T) {
	assert := assert.New(t)

	all := NewDeviceManager(nil, "Synth Out")
	assert.True(all.Wants("USB Keyboard"))
	assert.False(all.Wants("Midi Through Port-0"))
	assert.False(all.Wants("Synth Out"))
	assert.False(all.Wants(""))

	some := NewDeviceManager([]string{"keystation"}, "")
	assert.True(some.Wants("Keystation 49 MIDI 1"))
	assert.False(some.Wants("USB Keyboard"))
}
