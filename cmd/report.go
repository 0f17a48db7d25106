package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minhvu/chatrake/internal/report"
	"github.com/minhvu/chatrake/internal/stitch"
)

var reportDupes bool

var reportCmd = &cobra.Command{
	Use:   "report [raw-dir]",
	Short: "Show batch/part coverage and gaps for a raw capture directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawDir := GetConfig().OutputDir
		if len(args) == 1 {
			rawDir = args[0]
		}

		rep, err := report.Coverage(rawDir)
		if err != nil {
			return err
		}
		for _, w := range rep.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}

		if len(rep.Batches) == 0 {
			cmd.Println("no part files found")
			return nil
		}

		for _, b := range rep.Batches {
			cmd.Printf("%s: %d parts (%d..%d), %d rows", b.Batch, b.Parts, b.MinPart, b.MaxPart, b.Rows)
			if len(b.Missing) > 0 {
				cmd.Printf("  MISSING %v", b.Missing)
			}
			cmd.Println()
		}
		cmd.Printf("total: %d parts, %d rows\n", rep.TotalParts, rep.TotalRows)

		if reportDupes {
			res, err := stitch.Stitch(rawDir)
			if err != nil {
				return err
			}
			groups := report.Duplicates(res.Rows)
			cmd.Printf("\nrepeated content: %d groups\n", len(groups))
			limit := 10
			if len(groups) < limit {
				limit = len(groups)
			}
			for _, g := range groups[:limit] {
				preview := g.Content
				if len(preview) > 60 {
					preview = preview[:60] + "…"
				}
				preview = strings.ReplaceAll(preview, "\n", "⏎")
				cmd.Printf("  %dx [%s] %q (batches: %s)\n", g.Count, g.Sender, preview, strings.Join(g.Batches, ","))
			}
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportDupes, "dupes", false, "Also list repeated (sender, content) groups")
	rootCmd.AddCommand(reportCmd)
}
