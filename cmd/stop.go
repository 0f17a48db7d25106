package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minhvu/chatrake/internal/session"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Request graceful stop of the running capture session",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewStore()
		if err != nil {
			return err
		}

		s, err := store.Load()
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				return fmt.Errorf("no active session")
			}
			return err
		}
		if s.StopRequested {
			fmt.Println("Stop already requested; the session will flush and exit shortly.")
			return nil
		}

		s.StopRequested = true
		if err := store.Save(s); err != nil {
			return err
		}

		fmt.Println("Stop requested. The session will flush its buffer and exit at the next cycle.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
