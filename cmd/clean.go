package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minhvu/chatrake/internal/clean"
	"github.com/minhvu/chatrake/internal/row"
)

var cleanOut string

var cleanCmd = &cobra.Command{
	Use:   "clean <stitched-file>",
	Short: "Filter, group and deduplicate stitched rows into the final conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := row.ReadStitched(args[0])
		if err != nil {
			return err
		}

		c := clean.New(cfg.SelfName, cfg.PartnerName, cfg.NoiseAttachmentThreshold)
		msgs := c.Clean(rows)

		if err := row.WriteCleaned(cleanOut, msgs); err != nil {
			return err
		}
		fmt.Printf("Cleaned %d rows into %d messages: %s\n", len(rows), len(msgs), cleanOut)
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanOut, "out", "o", "clean_rows.json", "Output file for cleaned messages")
	rootCmd.AddCommand(cleanCmd)
}
