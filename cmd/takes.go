package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pas-de-deux/takes"
)

var takesShow string

func init() {
	takesCmd.Flags().StringVarP(&takesShow, "show", "s", "", "print one take's summary (\"latest\" for the newest)")
	rootCmd.AddCommand(takesCmd)
}

var takesCmd = &cobra.Command{
	Use:   "takes",
	Short: "List saved takes, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := takes.DefaultStore()
		if err != nil {
			return err
		}

		if takesShow != "" {
			take, err := loadTake(takesShow)
			if err != nil {
				return err
			}
			fmt.Printf("id:       %s\n", take.ID)
			fmt.Printf("started:  %s\n", take.Started.Format("2006-01-02 15:04:05"))
			fmt.Printf("duration: %s\n", take.Duration)
			fmt.Printf("events:   %d\n", len(take.Events))
			fmt.Printf("counter:  %d  stack %v\n", take.Counter.Counter, take.Counter.Stack)
			return nil
		}

		saves, err := store.List()
		if err != nil {
			return err
		}
		if len(saves) == 0 {
			fmt.Printf("no takes in %s\n", store.Dir)
			return nil
		}
		for _, s := range saves {
			name := s.Name
			if name == "" {
				name = "-"
			}
			fmt.Printf("%s  %-20s %s\n", s.Timestamp.Format("2006-01-02 15:04:05"), name, s.Filename)
		}
		return nil
	},
}
