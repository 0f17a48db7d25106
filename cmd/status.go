package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/minhvu/chatrake/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current capture session status",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewStore()
		if err != nil {
			return err
		}

		s, err := store.Load()
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				cmd.Println("no active session")
				return nil
			}
			return err
		}

		cmd.Printf("Started: %s\n", s.StartTime.Format(time.RFC3339))
		cmd.Printf("Duration: %s\n", time.Since(s.StartTime).Round(time.Second).String())
		cmd.Printf("Batch dir: %s\n", s.BatchDir)
		cmd.Printf("Cycles: %d\n", s.Cycles)
		cmd.Printf("Rows: %d accepted, %d duplicates skipped\n", s.RowsAccepted, s.RowsDuplicate)
		cmd.Printf("Parts emitted: %d\n", s.PartsEmitted)
		cmd.Printf("Pacing: %dms delay, %d stalls, %d nudges\n", s.DelayMs, s.Stalls, s.Nudges)
		if s.StopRequested {
			cmd.Println("Stop requested: waiting for the engine to flush")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
