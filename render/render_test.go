package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"pas-de-deux/debug"
)

func TestMultiFansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, b}

	m.RenderNote(Note{Time: 1, Freq: 440})
	m.RenderThump(Thump{Time: 2, Volume: 0.5})

	for _, r := range []*Recorder{a, b} {
		assert.Len(t, r.Notes(), 1)
		assert.Len(t, r.Thumps(), 1)
	}
	a.Reset()
	assert.Empty(t, a.Notes())
	assert.Len(t, b.Notes(), 1)
}

func TestLogSkipsRests(t *testing.T) {
	var buf bytes.Buffer
	debug.EnableWriter(&buf)
	defer debug.Disable()

	Log{}.RenderNote(Note{Freq: 0, Pattern: "bass"})
	assert.Empty(t, buf.String())

	Log{}.RenderNote(Note{Freq: 110, Pattern: "bass", Wave: "square"})
	Log{}.RenderThump(Thump{Preset: Preset{Name: "classic"}, Volume: 1})
	assert.Contains(t, buf.String(), "bass")
	assert.Contains(t, buf.String(), "preset=classic")
}
