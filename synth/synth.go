// Package synth renders triggers to audio with beep: a plain oscillator and
// envelope voice per trigger, mixed on a sample clock.
package synth

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/pkg/errors"

	"pas-de-deux/render"
)

// DefaultSampleRate is used when none is given
const DefaultSampleRate = beep.SampleRate(44100)

const (
	noteAttack   = 0.005 // seconds
	noteRelease  = 0.03  // seconds
	noteGain     = 0.25
	thumpGain    = 0.35
	thumpSustain = 0.3
)

// Synth is a beep.Streamer and a render.Backend. Trigger times are seconds on
// its own sample clock; triggers already in the past start at once.
type Synth struct {
	SampleRate beep.SampleRate

	mu      sync.Mutex
	pos     int64    // samples streamed so far
	pending []*voice // sorted by start
	active  []*voice
}

// New creates a synth at sample rate sr
func New(sr beep.SampleRate) *Synth {
	if sr <= 0 {
		sr = DefaultSampleRate
	}
	return &Synth{SampleRate: sr}
}

// CurrentTime is the sample clock in seconds
func (s *Synth) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.pos) / float64(s.SampleRate)
}

// Voices returns how many voices are queued or sounding
func (s *Synth) Voices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) + len(s.active)
}

func (s *Synth) samples(seconds float64) int64 {
	return int64(math.Round(seconds * float64(s.SampleRate)))
}

// RenderNote queues a pattern note. Rests are ignored.
func (s *Synth) RenderNote(n render.Note) {
	if n.Rest() || n.Duration <= 0 {
		return
	}
	hold := s.samples(n.Duration)
	s.add(n.Time, &voice{
		osc:  oscillator(n.Wave),
		freq: n.Freq,
		env: envelope{
			attack:  s.samples(noteAttack),
			hold:    hold,
			release: s.samples(noteRelease),
			sustain: 1,
		},
		gain: noteGain,
	})
}

// RenderThump queues a bass hit shaped by its preset and fade volume
func (s *Synth) RenderThump(t render.Thump) {
	p := t.Preset
	if t.Volume <= 0 || p.BaseFreq <= 0 {
		return
	}
	attack := s.samples(p.Attack)
	decay := s.samples(p.Decay)
	v := &voice{
		osc:  oscillator(p.Oscillator),
		freq: p.BaseFreq,
		env: envelope{
			attack:  attack,
			decay:   decay,
			hold:    attack + decay,
			release: s.samples(p.Release),
			sustain: thumpSustain,
		},
		gain:     thumpGain * p.Gain * t.Volume,
		cutoff:   p.Cutoff,
		q:        p.Q,
		lfoRate:  p.LFORate,
		lfoDepth: p.LFODepth,
	}
	if p.Detune > 0 {
		v.detune = math.Pow(2, p.Detune/1200)
	}
	if p.Cutoff > 0 {
		v.filter = newLowpass(float64(s.SampleRate), p.Cutoff, p.Q)
	}
	s.add(t.Time, v)
}

func (s *Synth) add(at float64, v *voice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v.start = s.samples(at)
	if v.start < s.pos {
		v.start = s.pos
	}
	i := sort.Search(len(s.pending), func(i int) bool {
		return s.pending[i].start > v.start
	})
	s.pending = append(s.pending, nil)
	copy(s.pending[i+1:], s.pending[i:])
	s.pending[i] = v
}

// Stream mixes every sounding voice. It never ends.
func (s *Synth) Stream(samples [][2]float64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr := float64(s.SampleRate)
	for i := range samples {
		for len(s.pending) > 0 && s.pending[0].start <= s.pos {
			s.active = append(s.active, s.pending[0])
			s.pending = s.pending[1:]
		}

		mix := 0.0
		live := s.active[:0]
		for _, v := range s.active {
			mix += v.next(sr)
			if !v.done() {
				live = append(live, v)
			}
		}
		for j := len(live); j < len(s.active); j++ {
			s.active[j] = nil
		}
		s.active = live

		out := math.Tanh(mix)
		samples[i][0] = out
		samples[i][1] = out
		s.pos++
	}
	return len(samples), true
}

func (s *Synth) Err() error {
	return nil
}

// Play opens the speaker and starts streaming
func (s *Synth) Play() error {
	if err := speaker.Init(s.SampleRate, s.SampleRate.N(time.Second/20)); err != nil {
		return errors.Wrap(err, "init speaker")
	}
	speaker.Play(s)
	return nil
}

// Close stops the speaker
func Close() {
	speaker.Close()
}
