package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pas-de-deux/midi"
	"pas-de-deux/serialin"
)

func init() {
	rootCmd.AddCommand(portsCmd)
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI and serial ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("=== MIDI Input Ports ===")
		fmt.Println("(waiting up to 3 seconds...)")
		ins, outs, err := midi.Ports()
		if err != nil {
			fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
			fmt.Println("Fix: sudo killall coreaudiod midiserver")
			return err
		}
		for i, p := range ins {
			fmt.Printf("  %d: %s\n", i, p)
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range outs {
			fmt.Printf("  %d: %s\n", i, p)
		}

		fmt.Println("\n=== Serial Ports ===")
		serials, err := serialin.Ports()
		if err != nil {
			return err
		}
		for i, p := range serials {
			fmt.Printf("  %d: %s\n", i, p)
		}
		return nil
	},
}
