package synth

import (
	"io"
	"os"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/pkg/errors"

	"pas-de-deux/loop"
)

// block is the number of samples rendered between loop advances
const block = 256

// bounce drives a manual loop in step with the synth's sample clock
type bounce struct {
	rt    *loop.Manual
	synth *Synth
}

func (b *bounce) Stream(samples [][2]float64) (int, bool) {
	for off := 0; off < len(samples); off += block {
		end := off + block
		if end > len(samples) {
			end = len(samples)
		}
		now := time.Duration(b.synth.CurrentTime() * float64(time.Second))
		if now > b.rt.Now() {
			b.rt.Advance(now - b.rt.Now())
		}
		b.synth.Stream(samples[off:end])
	}
	return len(samples), true
}

func (b *bounce) Err() error {
	return nil
}

// Bounce renders d of whatever is scheduled on rt to a WAV stream. rt and
// the synth both start at zero and are kept in step.
func Bounce(w io.WriteSeeker, rt *loop.Manual, s *Synth, d time.Duration) error {
	format := beep.Format{SampleRate: s.SampleRate, NumChannels: 2, Precision: 2}
	src := beep.Take(s.SampleRate.N(d), &bounce{rt: rt, synth: s})
	return errors.Wrap(wav.Encode(w, src, format), "encode wav")
}

// BounceFile renders to a .wav file
func BounceFile(path string, rt *loop.Manual, s *Synth, d time.Duration) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Bounce(f, rt, s, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
