package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/minhvu/chatrake/internal/row"
	"github.com/minhvu/chatrake/internal/stitch"
)

var stitchOut string

var stitchCmd = &cobra.Command{
	Use:   "stitch [raw-dir]",
	Short: "Merge all emitted part files into one ordered rows file",
	Long: `Stitch concatenates every part file under the raw directory in
(batch, part) order, preserving provenance. It never deduplicates:
overlap across batches is resolved later by clean, which has the batch
context needed to tell capture artifacts from genuine repeats.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawDir := GetConfig().OutputDir
		if len(args) == 1 {
			rawDir = args[0]
		}

		res, err := stitch.Stitch(rawDir)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}

		if err := row.WriteStitched(stitchOut, res.Rows); err != nil {
			return err
		}
		fmt.Printf("Stitched %d rows into %s\n", len(res.Rows), stitchOut)
		return nil
	},
}

func init() {
	stitchCmd.Flags().StringVarP(&stitchOut, "out", "o", "stitched_rows.json", "Output file for stitched rows")
	rootCmd.AddCommand(stitchCmd)
}
