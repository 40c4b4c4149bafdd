package rhythm

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"

	"pas-de-deux/render"
)

// DefaultPreset is used whenever a preset name cannot be resolved
const DefaultPreset = "classic"

var builtinPresets = []render.Preset{
	{Name: "classic", Oscillator: "sawtooth", BaseFreq: 55, LFORate: 5, LFODepth: 20, Cutoff: 180, Q: 8, Detune: 15, Gain: 1.2, Attack: 0.005, Decay: 0.4, Release: 0.15},
	{Name: "superDetune", Oscillator: "sawtooth", BaseFreq: 55, LFORate: 7, LFODepth: 45, Cutoff: 200, Q: 6, Detune: 40, Gain: 1.15, Attack: 0.01, Decay: 0.35, Release: 0.2},
	{Name: "deepSub", Oscillator: "sine", BaseFreq: 40, LFORate: 2, LFODepth: 8, Cutoff: 120, Q: 10, Detune: 5, Gain: 1.3, Attack: 0.01, Decay: 0.5, Release: 0.3},
	{Name: "chaosWobble", Oscillator: "sawtooth", BaseFreq: 60, LFORate: 12, LFODepth: 60, Cutoff: 250, Q: 15, Detune: 50, Gain: 1.0, Attack: 0.002, Decay: 0.3, Release: 0.1},
	{Name: "squareBass", Oscillator: "square", BaseFreq: 50, LFORate: 4, LFODepth: 15, Cutoff: 220, Q: 7, Detune: 10, Gain: 1.0, Attack: 0.004, Decay: 0.35, Release: 0.12},
	{Name: "triBass", Oscillator: "triangle", BaseFreq: 45, LFORate: 3, LFODepth: 10, Cutoff: 160, Q: 5, Detune: 8, Gain: 1.4, Attack: 0.008, Decay: 0.45, Release: 0.25},
	{Name: "heavyWobble", Oscillator: "sawtooth", BaseFreq: 48, LFORate: 8, LFODepth: 35, Cutoff: 160, Q: 20, Detune: 30, Gain: 1.2, Attack: 0.003, Decay: 0.5, Release: 0.2},
	{Name: "glitchBass", Oscillator: "square", BaseFreq: 65, LFORate: 15, LFODepth: 55, Cutoff: 300, Q: 5, Detune: 60, Gain: 1.0, Attack: 0.001, Decay: 0.25, Release: 0.08},
}

// Bank is an ordered set of presets. Rotation follows Names().
type Bank struct {
	order   []string
	presets map[string]render.Preset
}

// NewBank returns the built-in presets
func NewBank() *Bank {
	b := &Bank{presets: make(map[string]render.Preset, len(builtinPresets))}
	for _, p := range builtinPresets {
		b.add(p)
	}
	return b
}

func (b *Bank) add(p render.Preset) {
	if _, ok := b.presets[p.Name]; !ok {
		b.order = append(b.order, p.Name)
	}
	b.presets[p.Name] = p
}

// Names returns the rotation order
func (b *Bank) Names() []string {
	return append([]string(nil), b.order...)
}

// Get looks up a preset
func (b *Bank) Get(name string) (render.Preset, bool) {
	p, ok := b.presets[name]
	return p, ok
}

// Next returns the name after name in rotation order, wrapping around.
// Unknown names restart the rotation.
func (b *Bank) Next(name string) string {
	for i, n := range b.order {
		if n == name {
			return b.order[(i+1)%len(b.order)]
		}
	}
	return b.order[0]
}

// PresetFile is the JSON schema for preset overrides
type PresetFile struct {
	Presets map[string]PresetOverride `json:"presets"`
}

// PresetOverride is a partial preset entry. Missing fields keep the existing
// preset's values, or classic's for new names.
type PresetOverride struct {
	Oscillator *string  `json:"oscillator"`
	BaseFreq   *float64 `json:"baseFreq"`
	LFORate    *float64 `json:"lfoRate"`
	LFODepth   *float64 `json:"lfoDepth"`
	Cutoff     *float64 `json:"cutoff"`
	Q          *float64 `json:"q"`
	Detune     *float64 `json:"detune"`
	Gain       *float64 `json:"gain"`
	Attack     *float64 `json:"attack"`
	Decay      *float64 `json:"decay"`
	Release    *float64 `json:"release"`
}

// LoadPresets reads a preset file and applies it over the built-ins
func LoadPresets(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read preset file")
	}
	var f PresetFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parse preset file %s", path)
	}
	b := NewBank()
	if err := b.Apply(&f); err != nil {
		return nil, errors.Wrapf(err, "preset file %s", path)
	}
	return b, nil
}

// Apply merges a parsed preset file into the bank. New presets join the
// rotation in name order after the existing ones.
func (b *Bank) Apply(f *PresetFile) error {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.Presets))
	for name := range f.Presets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == "" {
			return fmt.Errorf("preset name must not be empty")
		}
		base, ok := b.presets[name]
		if !ok {
			base = b.presets[DefaultPreset]
			base.Name = name
		}
		p, err := applyOverride(base, f.Presets[name])
		if err != nil {
			return errors.Wrapf(err, "preset %q", name)
		}
		b.add(p)
	}
	return nil
}

var oscillators = map[string]bool{"sine": true, "square": true, "sawtooth": true, "triangle": true}

func applyOverride(p render.Preset, o PresetOverride) (render.Preset, error) {
	if o.Oscillator != nil {
		if !oscillators[*o.Oscillator] {
			return p, fmt.Errorf("oscillator must be sine, square, sawtooth or triangle, got %q", *o.Oscillator)
		}
		p.Oscillator = *o.Oscillator
	}
	positive := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"baseFreq", o.BaseFreq, &p.BaseFreq},
		{"cutoff", o.Cutoff, &p.Cutoff},
		{"q", o.Q, &p.Q},
	}
	for _, f := range positive {
		if f.src == nil {
			continue
		}
		if *f.src <= 0 {
			return p, fmt.Errorf("%s must be > 0", f.name)
		}
		*f.dst = *f.src
	}
	nonNegative := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"lfoRate", o.LFORate, &p.LFORate},
		{"lfoDepth", o.LFODepth, &p.LFODepth},
		{"detune", o.Detune, &p.Detune},
		{"gain", o.Gain, &p.Gain},
		{"attack", o.Attack, &p.Attack},
		{"decay", o.Decay, &p.Decay},
		{"release", o.Release, &p.Release},
	}
	for _, f := range nonNegative {
		if f.src == nil {
			continue
		}
		if *f.src < 0 {
			return p, fmt.Errorf("%s must be >= 0", f.name)
		}
		*f.dst = *f.src
	}
	return p, nil
}
