package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"pas-de-deux/cadence"
	"pas-de-deux/performance"
	"pas-de-deux/pulse"
	"pas-de-deux/rhythm"
)

// BackendType identifies a render backend
type BackendType string

const (
	BackendSynth BackendType = "synth"
	BackendMIDI  BackendType = "midi"
	BackendLog   BackendType = "log"
)

// CadenceConfig tunes classification
type CadenceConfig struct {
	ScopeTimeoutMS int       `json:"scopeTimeoutMs,omitempty"`
	Thresholds     []float64 `json:"thresholds,omitempty"` // six upper bounds, Stopped..Allegro
	PeriodMS       int       `json:"periodMs,omitempty"`   // orchestrator tick
}

// PulseConfig tunes the pattern scheduler
type PulseConfig struct {
	TickMS      int     `json:"tickMs,omitempty"`
	LookaheadMS int     `json:"lookaheadMs,omitempty"`
	Duty        float64 `json:"duty,omitempty"`
	SpecPath    string  `json:"specPath,omitempty"` // performance spec, built-in when empty
}

// RhythmConfig tunes the bass loop
type RhythmConfig struct {
	TickMS      int                `json:"tickMs,omitempty"`
	LookaheadMS int                `json:"lookaheadMs,omitempty"`
	PresetPath  string             `json:"presetPath,omitempty"`
	TempoBPM    map[string]float64 `json:"tempoBpm,omitempty"` // tempo state name -> BPM
}

// MIDIConfig defines MIDI input and output
type MIDIConfig struct {
	InputPorts  []string `json:"inputPorts,omitempty"` // empty = all
	SplitNote   int      `json:"splitNote,omitempty"`  // below = left stream
	OutputPort  string   `json:"outputPort,omitempty"`
	NoteChannel int      `json:"noteChannel,omitempty"` // 1-16
	BassChannel int      `json:"bassChannel,omitempty"` // 1-16
}

// SerialConfig defines a serial button box
type SerialConfig struct {
	Device string `json:"device,omitempty"`
	Baud   int    `json:"baud,omitempty"`
}

// ServerConfig defines the HTTP control API
type ServerConfig struct {
	Addr       string   `json:"addr,omitempty"`
	DebounceMS int      `json:"debounceMs,omitempty"`
	Origins    []string `json:"origins,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `json:"palette,omitempty"` // path to a GPL palette
}

// Config is the main configuration structure
type Config struct {
	Backend BackendType   `json:"backend,omitempty"`
	Cadence CadenceConfig `json:"cadence,omitempty"`
	Pulse   PulseConfig   `json:"pulse,omitempty"`
	Rhythm  RhythmConfig  `json:"rhythm,omitempty"`
	MIDI    MIDIConfig    `json:"midi,omitempty"`
	Serial  SerialConfig  `json:"serial,omitempty"`
	Server  ServerConfig  `json:"server,omitempty"`
	UI      UIConfig      `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendSynth,
		Cadence: CadenceConfig{
			ScopeTimeoutMS: int(cadence.DefaultScopeTimeout / time.Millisecond),
			Thresholds:     append([]float64(nil), cadence.DefaultThresholds[:]...),
			PeriodMS:       int(performance.DefaultPeriod / time.Millisecond),
		},
		Pulse: PulseConfig{
			TickMS:      int(pulse.DefaultTick / time.Millisecond),
			LookaheadMS: 100,
			Duty:        pulse.DefaultDuty,
		},
		Rhythm: RhythmConfig{
			TickMS:      int(rhythm.DefaultTick / time.Millisecond),
			LookaheadMS: 100,
		},
		MIDI: MIDIConfig{
			SplitNote:   60,
			NoteChannel: 1,
			BassChannel: 2,
		},
		Serial: SerialConfig{Baud: 115200},
		Server: ServerConfig{Addr: "127.0.0.1:8765", DebounceMS: 300},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pas-de-deux"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file over the defaults. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrap(err, "read config")
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the tunables that would break scheduling
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSynth, BackendMIDI, BackendLog, "":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if len(c.Cadence.Thresholds) > 0 {
		if _, err := cadence.ThresholdsFrom(c.Cadence.Thresholds); err != nil {
			return errors.Wrap(err, "cadence.thresholds")
		}
	}
	if _, err := c.BPMTable(); err != nil {
		return err
	}
	if c.Pulse.Duty < 0 || c.Pulse.Duty > 1 {
		return fmt.Errorf("pulse.duty must be in (0,1]")
	}
	for name, v := range map[string]int{
		"cadence.scopeTimeoutMs": c.Cadence.ScopeTimeoutMS,
		"cadence.periodMs":       c.Cadence.PeriodMS,
		"pulse.tickMs":           c.Pulse.TickMS,
		"pulse.lookaheadMs":      c.Pulse.LookaheadMS,
		"rhythm.tickMs":          c.Rhythm.TickMS,
		"rhythm.lookaheadMs":     c.Rhythm.LookaheadMS,
		"server.debounceMs":      c.Server.DebounceMS,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	if c.Pulse.TickMS > 0 && c.Pulse.LookaheadMS > 0 && c.Pulse.LookaheadMS < c.Pulse.TickMS {
		return fmt.Errorf("pulse.lookaheadMs must cover at least one tick")
	}
	if c.Rhythm.TickMS > 0 && c.Rhythm.LookaheadMS > 0 && c.Rhythm.LookaheadMS < c.Rhythm.TickMS {
		return fmt.Errorf("rhythm.lookaheadMs must cover at least one tick")
	}
	if c.MIDI.SplitNote < 0 || c.MIDI.SplitNote > 127 {
		return fmt.Errorf("midi.splitNote must be 0..127")
	}
	for name, ch := range map[string]int{"midi.noteChannel": c.MIDI.NoteChannel, "midi.bassChannel": c.MIDI.BassChannel} {
		if ch < 0 || ch > 16 {
			return fmt.Errorf("%s must be 1..16", name)
		}
	}
	return nil
}

// BPMTable merges the configured tempo map over the defaults
func (c *Config) BPMTable() (performance.BPMTable, error) {
	table := performance.DefaultBPMTable()
	for name, bpm := range c.Rhythm.TempoBPM {
		state, ok := cadence.ParseTempoState(name)
		if !ok || state == cadence.Stopped {
			return nil, fmt.Errorf("rhythm.tempoBpm: unknown tempo %q", name)
		}
		if bpm < rhythm.MinBPM || bpm > rhythm.MaxBPM {
			return nil, fmt.Errorf("rhythm.tempoBpm[%s] must be %v..%v", name, rhythm.MinBPM, rhythm.MaxBPM)
		}
		table[state] = bpm
	}
	return table, nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// SessionOptions builds performance options from the config. The preset bank
// and performance spec files are read here.
func (c *Config) SessionOptions() (performance.Options, error) {
	opts := performance.Options{
		ScopeTimeout: ms(c.Cadence.ScopeTimeoutMS),
		Period:       ms(c.Cadence.PeriodMS),
		Pulse: pulse.Options{
			Tick:      ms(c.Pulse.TickMS),
			Lookahead: float64(c.Pulse.LookaheadMS) / 1000,
			Duty:      c.Pulse.Duty,
		},
		Rhythm: rhythm.Options{
			Tick:      ms(c.Rhythm.TickMS),
			Lookahead: float64(c.Rhythm.LookaheadMS) / 1000,
		},
	}
	if len(c.Cadence.Thresholds) > 0 {
		th, err := cadence.ThresholdsFrom(c.Cadence.Thresholds)
		if err != nil {
			return opts, errors.Wrap(err, "cadence.thresholds")
		}
		opts.Thresholds = th
	}
	table, err := c.BPMTable()
	if err != nil {
		return opts, err
	}
	opts.BPM = table

	if c.Rhythm.PresetPath != "" {
		bank, err := rhythm.LoadPresets(c.Rhythm.PresetPath)
		if err != nil {
			return opts, err
		}
		opts.Bank = bank
	}
	if c.Pulse.SpecPath != "" {
		data, err := os.ReadFile(c.Pulse.SpecPath)
		if err != nil {
			return opts, errors.Wrap(err, "read performance spec")
		}
		if _, err := pulse.Parse(string(data)); err != nil {
			return opts, errors.Wrapf(err, "performance spec %s", c.Pulse.SpecPath)
		}
		opts.Spec = string(data)
	}
	return opts, nil
}
