package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/minhvu/chatrake/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [raw-dir]",
	Short: "Live-tail part files as a capture writes them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawDir := GetConfig().OutputDir
		if len(args) == 1 {
			rawDir = args[0]
		}
		if _, err := os.Stat(rawDir); err != nil {
			return fmt.Errorf("raw dir %s: %w", rawDir, err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		events := make(chan watch.Event, 16)
		errc := make(chan error, 1)
		go func() {
			errc <- watch.Watch(ctx, rawDir, events)
		}()

		fmt.Printf("Watching %s (ctrl-c to stop)\n", rawDir)
		for {
			select {
			case ev := <-events:
				if ev.Err != nil {
					fmt.Fprintf(os.Stderr, "warning: %s\n", ev.Err)
					continue
				}
				fmt.Printf("%s/part %d: %d rows\n", ev.Batch, ev.Part, ev.Rows)
			case err := <-errc:
				return err
			case <-ctx.Done():
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
