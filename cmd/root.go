package cmd

import (
	"github.com/spf13/cobra"

	"pas-de-deux/config"
	"pas-de-deux/debug"
)

var (
	configPath string
	debugPath  string
	debugOn    bool
)

var rootCmd = &cobra.Command{
	Use:   "pas-de-deux",
	Short: "Two-handed typing performance",
	Long: `pas-de-deux turns two typing streams into music. Each hand's cadence is
classified into a tempo; when both hands agree, a bass loop and a pattern
sequencer start, and the counter machine keeps score.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debugOn || debugPath != "" {
			return debug.Enable(debugPath)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		debug.Disable()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/pas-de-deux/config.json)")
	rootCmd.PersistentFlags().BoolVar(&debugOn, "debug", false, "write a debug log to ~/.config/pas-de-deux/debug.log")
	rootCmd.PersistentFlags().StringVar(&debugPath, "debug-log", "", "write the debug log to this file")
}

// loadConfig reads --config, or the default config file
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
