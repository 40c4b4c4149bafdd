package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"pas-de-deux/config"
	"pas-de-deux/debug"
	"pas-de-deux/loop"
	"pas-de-deux/pulse"
)

var (
	playWatch   bool
	playBackend string
)

func init() {
	playCmd.Flags().BoolVarP(&playWatch, "watch", "w", false, "reload the patterns whenever the file changes")
	playCmd.Flags().StringVarP(&playBackend, "backend", "b", "", "render backend: synth, midi or log (default from config)")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <spec.json>",
	Short: "Play a pattern spec, optionally live-coding it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if playBackend != "" {
			cfg.Backend = config.BackendType(playBackend)
		}
		return play(cfg, args[0])
	},
}

func play(cfg *config.Config, path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	opts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	rt := loop.New()
	go rt.Run(loopCtx)

	backend, closeBackend, err := openBackend(ctx, cfg, cfg.Backend, rt)
	if err != nil {
		return err
	}
	defer closeBackend()

	eng := pulse.NewEngine(rt, rt, backend, opts.Pulse)
	rt.Do(func() { err = eng.Start(string(text)) })
	if err != nil {
		return err
	}
	fmt.Printf("playing %s (ctrl+c to stop)\n", path)

	if playWatch {
		go func() {
			err := watch(ctx, path, time.Duration(cfg.Server.DebounceMS)*time.Millisecond, func(text string) {
				var err error
				rt.Do(func() { err = eng.UpdateFromCode(text) })
				if err != nil {
					fmt.Fprintf(os.Stderr, "%v\n", err)
					return
				}
				fmt.Printf("reloaded %s\n", path)
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
		}()
	}

	<-ctx.Done()
	rt.Do(eng.Stop)
	return nil
}

// watch calls apply with the file's contents after it changes and settles.
// The directory is watched so editors that replace the file are followed.
func watch(ctx context.Context, path string, wait time.Duration, apply func(text string)) error {
	debounced := func(f func()) { f() }
	if wait > 0 {
		debounced = debounce.New(wait)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "watch")
	}
	defer w.Close()

	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "watch %s", path)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			debug.Warn("watch", "%s: %v", path, err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			debounced(func() {
				data, err := os.ReadFile(path)
				if err != nil {
					debug.Warn("watch", "read %s: %v", path, err)
					return
				}
				apply(string(data))
			})
		}
	}
}
