package midi

import (
	"io"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"pas-de-deux/render"
)

const (
	exportResolution = smf.MetricTicks(960)
	exportTempo      = 120.0 // file tempo; event times are absolute seconds
)

// Export writes recorded triggers as a standard MIDI file. Channels are 1-16.
func Export(w io.Writer, notes []render.Note, thumps []render.Thump, noteChannel, bassChannel int) error {
	out := NewOutput(nil, nil, noteChannel, bassChannel)
	for _, n := range notes {
		out.RenderNote(n)
	}
	for _, t := range thumps {
		out.RenderThump(t)
	}
	events := out.Due(math.Inf(1))

	s := smf.New()
	s.TimeFormat = exportResolution

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(exportTempo))
	tempo.Close(0)
	if err := s.Add(tempo); err != nil {
		return errors.Wrap(err, "add tempo track")
	}

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName("pas-de-deux"))
	var last uint32
	for _, e := range events {
		at := ticksAt(e.Time)
		delta := uint32(0)
		if at > last {
			delta = at - last
			last = at
		}
		switch e.Type {
		case NoteOn:
			track.Add(delta, gomidi.NoteOn(e.Channel, e.Note, e.Velocity))
		case NoteOff:
			track.Add(delta, gomidi.NoteOff(e.Channel, e.Note))
		}
	}
	track.Close(0)
	if err := s.Add(track); err != nil {
		return errors.Wrap(err, "add note track")
	}

	if _, err := s.WriteTo(w); err != nil {
		return errors.Wrap(err, "write midi file")
	}
	return nil
}

// ExportFile writes recorded triggers to a .mid file
func ExportFile(path string, notes []render.Note, thumps []render.Thump, noteChannel, bassChannel int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Export(f, notes, thumps, noteChannel, bassChannel); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ticksAt(seconds float64) uint32 {
	if seconds <= 0 {
		return 0
	}
	return exportResolution.Ticks(exportTempo, time.Duration(seconds*float64(time.Second)))
}
