package performance

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"pas-de-deux/cadence"
	"pas-de-deux/debug"
	"pas-de-deux/loop"
	"pas-de-deux/pulse"
	"pas-de-deux/render"
	"pas-de-deux/rhythm"
)

// Runtime is the event loop a session runs on: a scheduler with an audio clock
type Runtime interface {
	loop.Scheduler
	loop.Clock
}

// Options configure a session. Zero values take the defaults.
type Options struct {
	Thresholds   cadence.Thresholds
	ScopeTimeout time.Duration
	Period       time.Duration
	BPM          BPMTable
	Spec         string // performance spec for the pulse engine
	Pulse        pulse.Options
	Rhythm       rhythm.Options
	Bank         *rhythm.Bank
}

// Session owns one performance: both streams, both schedulers and the
// orchestrator, all on one loop
type Session struct {
	ID string

	rt      Runtime
	backend render.Backend
	opts    Options

	left, right *cadence.StreamState
	tracker     *cadence.Tracker
	classifier  *cadence.Classifier
	orch        *Orchestrator
	pulse       *pulse.Engine
	rhythm      *rhythm.Loop

	started time.Time
	take    Take

	// Notify listeners of updates
	updates chan struct{}
}

// New creates a session on a fresh real-time loop
func New(backend render.Backend, opts Options) *Session {
	return NewWithRuntime(loop.New(), backend, opts)
}

// NewWithRuntime creates a session on rt (loop.Manual for tests and offline renders)
func NewWithRuntime(rt Runtime, backend render.Backend, opts Options) *Session {
	if opts.Thresholds == (cadence.Thresholds{}) {
		opts.Thresholds = cadence.DefaultThresholds
	}
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if backend == nil {
		backend = render.Log{}
	}

	s := &Session{
		ID:      uuid.New().String(),
		rt:      rt,
		backend: backend,
		opts:    opts,
		left:    cadence.NewStreamState(cadence.Left),
		right:   cadence.NewStreamState(cadence.Right),
		updates: make(chan struct{}, 1),
	}
	s.tracker = cadence.NewTracker(rt, opts.ScopeTimeout)
	s.tracker.OnUpdate = func(*cadence.StreamState) { s.notify() }
	s.classifier = cadence.NewClassifier(opts.Thresholds)
	s.pulse = pulse.NewEngine(rt, rt, backend, opts.Pulse)
	s.rhythm = rhythm.New(rt, rt, backend, opts.Bank, opts.Rhythm)
	s.orch = NewOrchestrator(s.left, s.right, s.classifier, s.pulse, s.rhythm, opts.BPM, opts.Spec)
	s.orch.OnPush = func(CounterState) { s.notify() }
	s.take = Take{ID: s.ID}
	return s
}

// Start runs the loop (when it is a real one) and the orchestrator.
// Cancel ctx or call Close to stop.
func (s *Session) Start(ctx context.Context) {
	if l, ok := s.rt.(*loop.Loop); ok {
		go l.Run(ctx)
	}
	s.started = time.Now()
	s.rt.Do(func() {
		s.take.Started = s.started
		s.orch.Start(s.rt, s.opts.Period)
	})
	debug.Log("session", "session %s started", s.ID)
}

// Close stops every scheduler. The loop itself stops with its context.
func (s *Session) Close() {
	s.rt.Do(func() {
		s.orch.Stop()
		s.pulse.Stop()
		s.rhythm.StopBass()
	})
	debug.Log("session", "session %s closed", s.ID)
}

// Updates is signalled (non-blocking) whenever visible state changes
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func (s *Session) stream(id cadence.StreamID) *cadence.StreamState {
	if id == cadence.Right {
		return s.right
	}
	return s.left
}

// Keystroke registers one event on a stream. Safe from any goroutine.
func (s *Session) Keystroke(id cadence.StreamID) {
	s.rt.Post(func() { s.keystroke(id) })
}

// Hold feeds a key-hold duration to a stream. Safe from any goroutine.
func (s *Session) Hold(id cadence.StreamID, ms float64) {
	s.rt.Post(func() { s.hold(id, ms) })
}

// keystroke and hold must run on the loop
func (s *Session) keystroke(id cadence.StreamID) {
	s.take.add(TakeEvent{At: s.rt.Now(), Stream: id, Kind: EventKey})
	s.tracker.RegisterEvent(s.stream(id))
}

func (s *Session) hold(id cadence.StreamID, ms float64) {
	s.take.add(TakeEvent{At: s.rt.Now(), Stream: id, Kind: EventHold, HoldMS: ms})
	cadence.TrackHold(s.stream(id), ms, func(*cadence.StreamState) { s.notify() })
}

// Tick runs the orchestrator once, out of band
func (s *Session) Tick() {
	s.rt.Do(s.orch.Tick)
	s.notify()
}

// UpdatePatterns live-codes the pulse engine. A stopped engine is started.
func (s *Session) UpdatePatterns(text string) error {
	var err error
	s.rt.Do(func() {
		if s.pulse.IsPlaying() {
			err = s.pulse.UpdateFromCode(text)
		} else {
			err = s.pulse.Start(text)
		}
	})
	s.notify()
	return err
}

// StopPatterns stops the pulse engine
func (s *Session) StopPatterns() {
	s.rt.Do(s.pulse.Stop)
	s.notify()
}

// SetBPM commands the bass tempo
func (s *Session) SetBPM(bpm float64) {
	s.rt.Do(func() { s.rhythm.SetBPM(bpm) })
	s.notify()
}

// StartBass starts (or restarts) the bass loop
func (s *Session) StartBass() {
	s.rt.Do(s.rhythm.StartLoop)
	s.notify()
}

// StopBass arms the bass fade-out
func (s *Session) StopBass() {
	s.rt.Do(s.rhythm.StopBass)
	s.notify()
}

// NextPreset rotates the bass preset
func (s *Session) NextPreset() string {
	var name string
	s.rt.Do(func() { name = s.rhythm.NextPreset() })
	s.notify()
	return name
}

// SelectPreset picks a bass preset by name, falling back to classic
func (s *Session) SelectPreset(name string) string {
	var got string
	s.rt.Do(func() { got = s.rhythm.SelectPreset(name) })
	s.notify()
	return got
}

// Take returns a copy of the recorded input with the current counter state
func (s *Session) Take() Take {
	var t Take
	s.rt.Do(func() {
		t = s.take
		t.Events = append([]TakeEvent(nil), s.take.Events...)
		t.Counter = s.orch.Counter()
		t.Duration = s.rt.Now()
	})
	return t
}

// StreamSnapshot is the visible state of one stream
type StreamSnapshot struct {
	ID         cadence.StreamID   `json:"id"`
	Rate       float64            `json:"rate"`
	Tempo      cadence.TempoState `json:"tempo"`
	Previous   cadence.TempoState `json:"previous"`
	Hold       cadence.HoldState  `json:"hold"`
	MeanHoldMS float64            `json:"meanHoldMs"`
	InScope    int                `json:"inScope"`
}

// PatternSnapshot is one active pulse pattern
type PatternSnapshot struct {
	Name   string   `json:"name"`
	Notes  []string `json:"notes"`
	Wave   string   `json:"wave"`
	Length int      `json:"length"`
}

// PulseSnapshot is the visible state of the pulse engine
type PulseSnapshot struct {
	Playing  bool              `json:"playing"`
	Config   pulse.Config      `json:"config"`
	Voice    string            `json:"voice"`
	Patterns []PatternSnapshot `json:"patterns"`
}

// Snapshot is everything a display needs, copied off the loop
type Snapshot struct {
	ID         string         `json:"id"`
	Clock      float64        `json:"clock"`
	Left       StreamSnapshot `json:"left"`
	Right      StreamSnapshot `json:"right"`
	Counter    CounterState   `json:"counter"`
	Rhythm     rhythm.State   `json:"rhythm"`
	Presets    []string       `json:"presets"`
	Pulse      PulseSnapshot  `json:"pulse"`
	ClickSound string         `json:"clickSound"`
}

// Snapshot copies the visible state. Safe from any goroutine.
func (s *Session) Snapshot() Snapshot {
	var snap Snapshot
	s.rt.Do(func() {
		snap = Snapshot{
			ID:         s.ID,
			Clock:      s.rt.CurrentTime(),
			Left:       streamSnapshot(s.left),
			Right:      streamSnapshot(s.right),
			Counter:    s.orch.Counter(),
			Rhythm:     s.rhythm.State(),
			Presets:    s.rhythm.Presets(),
			ClickSound: s.orch.ClickSound().Name,
			Pulse: PulseSnapshot{
				Playing: s.pulse.IsPlaying(),
				Config:  s.pulse.Config(),
				Voice:   s.pulse.Voice().Name,
			},
		}
		for name, p := range s.pulse.Patterns() {
			snap.Pulse.Patterns = append(snap.Pulse.Patterns, PatternSnapshot{
				Name:   name,
				Notes:  append([]string(nil), p.Notes...),
				Wave:   p.Wave,
				Length: len(p.Freqs),
			})
		}
		sort.Slice(snap.Pulse.Patterns, func(i, j int) bool {
			return snap.Pulse.Patterns[i].Name < snap.Pulse.Patterns[j].Name
		})
	})
	return snap
}

func streamSnapshot(s *cadence.StreamState) StreamSnapshot {
	return StreamSnapshot{
		ID:         s.ID,
		Rate:       s.Rate,
		Tempo:      s.Tempo,
		Previous:   s.PreviousTempo,
		Hold:       s.Hold,
		MeanHoldMS: s.MeanHoldMS,
		InScope:    len(s.Scope()),
	}
}
