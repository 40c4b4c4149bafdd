package synth

import (
	"math"
)

type oscFunc func(phase float64) float64

func sineOsc(ph float64) float64 {
	return math.Sin(2 * math.Pi * ph)
}

func sawOsc(ph float64) float64 {
	_, frac := math.Modf(ph)
	return 2*frac - 1
}

func squareOsc(ph float64) float64 {
	_, frac := math.Modf(ph)
	if frac < 0.5 {
		return 1
	}
	return -1
}

func triangleOsc(ph float64) float64 {
	_, frac := math.Modf(ph)
	return 1 - 4*math.Abs(frac-0.5)
}

// oscillator returns the wave function for a name, sine when unknown
func oscillator(name string) oscFunc {
	switch name {
	case "sawtooth", "saw":
		return sawOsc
	case "square":
		return squareOsc
	case "triangle":
		return triangleOsc
	default:
		return sineOsc
	}
}

// envelope is a linear ADSR measured in samples. Release starts at hold.
type envelope struct {
	attack, decay, hold, release int64
	sustain                      float64
}

func (e envelope) length() int64 {
	return e.hold + e.release
}

func (e envelope) level(age int64) float64 {
	switch {
	case age < 0 || age >= e.length():
		return 0
	case age >= e.hold:
		start := e.levelBeforeRelease(e.hold)
		if e.release <= 0 {
			return 0
		}
		return start * (1 - float64(age-e.hold)/float64(e.release))
	default:
		return e.levelBeforeRelease(age)
	}
}

func (e envelope) levelBeforeRelease(age int64) float64 {
	if age < e.attack {
		return float64(age) / float64(e.attack)
	}
	if age < e.attack+e.decay {
		return 1 - (1-e.sustain)*float64(age-e.attack)/float64(e.decay)
	}
	return e.sustain
}

// lowpass is an RBJ biquad low-pass filter
type lowpass struct {
	sampleRate float64
	b0, b1, b2 float64
	a1, a2     float64
	x1, x2     float64
	y1, y2     float64
}

func newLowpass(sampleRate, cutoff, q float64) *lowpass {
	f := &lowpass{sampleRate: sampleRate}
	f.set(cutoff, q)
	return f
}

func (f *lowpass) set(cutoff, q float64) {
	cutoff = math.Max(10, math.Min(cutoff, 0.45*f.sampleRate))
	if q <= 0 {
		q = 0.707
	}
	w0 := 2 * math.Pi * cutoff / f.sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cos := math.Cos(w0)
	a0 := 1 + alpha
	f.b0 = (1 - cos) / 2 / a0
	f.b1 = (1 - cos) / a0
	f.b2 = (1 - cos) / 2 / a0
	f.a1 = -2 * cos / a0
	f.a2 = (1 - alpha) / a0
}

func (f *lowpass) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// LFO cutoff is re-applied every this many samples
const filterUpdate = 32

// voice is one sounding trigger
type voice struct {
	start int64 // sample index on the synth clock
	age   int64

	osc    oscFunc
	freq   float64
	detune float64 // second oscillator ratio, 0 = single oscillator
	phase  float64
	phase2 float64

	env  envelope
	gain float64

	filter   *lowpass
	cutoff   float64
	q        float64
	lfoRate  float64
	lfoDepth float64 // Hz of cutoff swing
}

func (v *voice) done() bool {
	return v.age >= v.env.length()
}

// next renders one mono sample and advances the voice
func (v *voice) next(sampleRate float64) float64 {
	s := v.osc(v.phase)
	_, v.phase = math.Modf(v.phase + v.freq/sampleRate)
	if v.detune > 0 {
		s = (s + v.osc(v.phase2)) / 2
		_, v.phase2 = math.Modf(v.phase2 + v.freq*v.detune/sampleRate)
	}

	if v.filter != nil {
		if v.lfoDepth > 0 && v.age%filterUpdate == 0 {
			t := float64(v.age) / sampleRate
			v.filter.set(v.cutoff+v.lfoDepth*math.Sin(2*math.Pi*v.lfoRate*t), v.q)
		}
		s = v.filter.process(s)
	}

	s *= v.env.level(v.age) * v.gain
	v.age++
	return s
}
