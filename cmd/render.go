package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"pas-de-deux/config"
	"pas-de-deux/loop"
	"pas-de-deux/midi"
	"pas-de-deux/performance"
	"pas-de-deux/render"
	"pas-de-deux/synth"
	"pas-de-deux/takes"
)

var (
	renderOut      string
	renderDuration time.Duration
	renderTake     string
	renderBass     bool
)

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "out.wav", "output file, .wav or .mid")
	renderCmd.Flags().DurationVarP(&renderDuration, "duration", "d", 8*time.Second, "length to render")
	renderCmd.Flags().StringVarP(&renderTake, "take", "t", "", "replay a saved take instead of a spec (\"latest\" for the newest)")
	renderCmd.Flags().BoolVar(&renderBass, "bass", false, "run the bass loop under the patterns")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render [spec.json]",
	Short: "Bounce a spec or a saved take offline",
	Long: `Render runs the schedulers on virtual time and writes the result without
touching the audio device. With no spec the built-in performance spec is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if renderDuration <= 0 {
			return errors.New("--duration must be positive")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		spec := ""
		if len(args) == 1 {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			spec = string(data)
		}
		return renderOffline(cfg, spec)
	},
}

// renderOffline sets up a session on a manual loop, then bounces it
func renderOffline(cfg *config.Config, spec string) error {
	opts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(renderOut))
	if ext != ".wav" && ext != ".mid" && ext != ".midi" {
		return errors.Errorf("unknown output type %q, use .wav or .mid", ext)
	}

	m := loop.NewManual()
	var backend render.Backend
	var s *synth.Synth
	rec := &render.Recorder{}
	if ext == ".wav" {
		s = synth.New(synth.DefaultSampleRate)
		backend = s
	} else {
		backend = rec
	}

	session := performance.NewWithRuntime(m, backend, opts)
	if renderTake != "" {
		take, err := loadTake(renderTake)
		if err != nil {
			return err
		}
		session.Start(context.Background())
		session.Replay(take)
	} else {
		if spec == "" {
			spec = opts.Spec
		}
		if spec == "" {
			spec = performance.PerformanceSpec
		}
		if err := session.UpdatePatterns(spec); err != nil {
			return err
		}
		if renderBass {
			session.StartBass()
		}
	}

	if s != nil {
		err = synth.BounceFile(renderOut, m, s, renderDuration)
	} else {
		m.Advance(renderDuration)
		err = midi.ExportFile(renderOut, rec.Notes(), rec.Thumps(), cfg.MIDI.NoteChannel, cfg.MIDI.BassChannel)
	}
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s)\n", renderOut, renderDuration)
	return nil
}

func loadTake(name string) (performance.Take, error) {
	store, err := takes.DefaultStore()
	if err != nil {
		return performance.Take{}, err
	}
	if name == "latest" {
		name = ""
	}
	return store.Load(name)
}
