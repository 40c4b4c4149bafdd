package cmd

import (
	"context"

	"github.com/pkg/errors"

	"pas-de-deux/config"
	"pas-de-deux/loop"
	"pas-de-deux/midi"
	"pas-de-deux/render"
	"pas-de-deux/synth"
)

// openBackend starts the live render backend named by kind. The returned
// func releases it.
func openBackend(ctx context.Context, cfg *config.Config, kind config.BackendType, clock loop.Clock) (render.Backend, func(), error) {
	switch kind {
	case config.BackendSynth, "":
		s := synth.New(synth.DefaultSampleRate)
		if err := s.Play(); err != nil {
			return nil, nil, err
		}
		return s, synth.Close, nil

	case config.BackendMIDI:
		if cfg.MIDI.OutputPort == "" {
			return nil, nil, errors.New("midi backend needs midi.outputPort (see `pas-de-deux ports`)")
		}
		out, err := midi.OpenOutput(cfg.MIDI.OutputPort, clock, cfg.MIDI.NoteChannel, cfg.MIDI.BassChannel)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			out.Run(ctx)
			close(done)
		}()
		return out, func() {
			cancel()
			<-done
		}, nil

	case config.BackendLog:
		return render.Log{}, func() {}, nil
	}
	return nil, nil, errors.Errorf("unknown backend %q", kind)
}
