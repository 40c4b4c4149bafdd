package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"pas-de-deux/config"
	"pas-de-deux/debug"
	"pas-de-deux/loop"
	"pas-de-deux/midi"
	"pas-de-deux/performance"
	"pas-de-deux/serialin"
	"pas-de-deux/server"
	"pas-de-deux/takes"
	"pas-de-deux/theme"
	"pas-de-deux/tui"
)

var (
	performBackend string
	performSerial  string
	performHTTP    string
	performNoMIDI  bool
	performNoSave  bool
	performName    string
)

func init() {
	performCmd.Flags().StringVarP(&performBackend, "backend", "b", "", "render backend: synth, midi or log (default from config)")
	performCmd.Flags().StringVar(&performSerial, "serial", "", "serial button box device")
	performCmd.Flags().StringVar(&performHTTP, "http", "", "control API address, \"off\" to disable (default from config)")
	performCmd.Flags().BoolVar(&performNoMIDI, "no-midi", false, "don't listen to MIDI keyboards")
	performCmd.Flags().BoolVar(&performNoSave, "no-save", false, "don't save the take on exit")
	performCmd.Flags().StringVarP(&performName, "name", "n", "", "name for the saved take")
	rootCmd.AddCommand(performCmd)
}

var performCmd = &cobra.Command{
	Use:   "perform",
	Short: "Perform with both hands in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if performBackend != "" {
			cfg.Backend = config.BackendType(performBackend)
		}
		if performSerial != "" {
			cfg.Serial.Device = performSerial
		}
		if performHTTP != "" {
			cfg.Server.Addr = performHTTP
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return perform(cfg)
	},
}

func perform(cfg *config.Config) error {
	opts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	rt := loop.New()
	backend, closeBackend, err := openBackend(ctx, cfg, cfg.Backend, rt)
	if err != nil {
		return err
	}
	defer closeBackend()

	session := performance.NewWithRuntime(rt, backend, opts)
	session.Start(ctx)
	defer session.Close()

	var deviceMgr *midi.DeviceManager
	var router *midi.Router
	if !performNoMIDI {
		deviceMgr = midi.NewDeviceManager(cfg.MIDI.InputPorts, cfg.MIDI.OutputPort)
		router = midi.NewRouter(session, uint8(cfg.MIDI.SplitNote))
		go deviceMgr.Run(ctx)
	}

	if cfg.Serial.Device != "" {
		port, err := serialin.Open(cfg.Serial.Device, cfg.Serial.Baud)
		if err != nil {
			return err
		}
		go func() {
			if err := port.Run(ctx, session); err != nil {
				debug.Warn("serial", "%v", err)
			}
		}()
	}

	if cfg.Server.Addr != "" && cfg.Server.Addr != "off" {
		srv := server.New(session, cfg)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				debug.Warn("server", "%v", err)
			}
		}()
	}

	th, err := loadTheme(cfg)
	if err != nil {
		return err
	}

	m := tui.NewModel(session, deviceMgr, router, th)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}

	if performNoSave {
		return nil
	}
	take := session.Take()
	if len(take.Events) == 0 {
		return nil
	}
	take.Name = performName
	store, err := takes.DefaultStore()
	if err != nil {
		return err
	}
	name, err := store.Save(take)
	if err != nil {
		return err
	}
	fmt.Printf("saved take %s (%d events, stack %v)\n", name, len(take.Events), take.Counter.Stack)
	return nil
}

func loadTheme(cfg *config.Config) (*theme.Theme, error) {
	if cfg.UI.Palette == "" {
		return theme.New(nil), nil
	}
	p, err := theme.LoadGPL(cfg.UI.Palette)
	if err != nil {
		return nil, err
	}
	return theme.New(p), nil
}
