package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/minhvu/chatrake/internal/row"
	"github.com/minhvu/chatrake/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <cleaned-file>",
	Short: "View a cleaned conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		msgs, err := row.ReadCleaned(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}

		// Fall back to plain output when not attached to a terminal.
		if plainOutput || !term.IsTerminal(os.Stdout.Fd()) {
			printConversation(msgs)
			return nil
		}
		return tui.Run(msgs, path, cfg.SelfName)
	},
}

// printConversation writes a plain-text transcript to stdout.
func printConversation(msgs []row.CleanedMessage) {
	lastTS := ""
	for _, msg := range msgs {
		if msg.Timestamp != "" && msg.Timestamp != lastTS {
			fmt.Printf("\n── %s ──\n", msg.Timestamp)
			lastTS = msg.Timestamp
		}
		fmt.Printf("%s:\n", msg.Sender)
		if msg.Content != "" {
			fmt.Printf("  %s\n", msg.Content)
		}
		for _, att := range msg.Attachments {
			fmt.Printf("  [attachment] %s\n", att)
		}
	}
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "Print a plain transcript instead of the TUI")
	rootCmd.AddCommand(viewCmd)
}
