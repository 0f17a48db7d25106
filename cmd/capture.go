package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/minhvu/chatrake/internal/capture"
	"github.com/minhvu/chatrake/internal/hostview"
	"github.com/minhvu/chatrake/internal/session"
)

var captureOut string

var captureCmd = &cobra.Command{
	Use:   "capture <frames-file>",
	Short: "Run a capture session against a recorded conversation view",
	Long: `Capture walks backward through the conversation in the given frames
file, extracting and deduplicating visible rows and emitting them as
numbered part files into a fresh batch directory. The session runs until
history is exhausted, a stop is requested (chatrake stop), or SIGINT.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewStore()
		if err != nil {
			return err
		}

		s, err := store.Load()
		if err != nil && !errors.Is(err, session.ErrNoSession) {
			return err
		}
		if s != nil && s.StopTime == nil {
			return fmt.Errorf("capture session already in progress (started at %s)", s.StartTime.Format(time.RFC3339))
		}

		spec, err := hostview.LoadSpec(args[0])
		if err != nil {
			return err
		}
		view := hostview.NewReplay(*spec)

		outDir := captureOut
		if outDir == "" {
			outDir = GetConfig().OutputDir
		}
		batchDir, err := nextBatchDir(outDir)
		if err != nil {
			return err
		}

		framesFile, err := filepath.Abs(args[0])
		if err != nil {
			framesFile = args[0]
		}
		sess := &session.Session{
			ID:         uuid.New().String(),
			StartTime:  time.Now(),
			FramesFile: framesFile,
			BatchDir:   batchDir,
		}
		if err := store.Save(sess); err != nil {
			return err
		}

		// SIGINT/SIGTERM cancel the loop; the engine still flushes.
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		log := NewLogger()
		log.Info().Str("frames", framesFile).Str("batch_dir", batchDir).Msg("capture session started")

		engine := capture.NewEngine(view, GetConfig(), batchDir, log, store, sess)
		sum, err := engine.Run(ctx)
		if derr := store.Delete(); derr != nil && err == nil {
			err = derr
		}
		if err != nil {
			return err
		}

		fmt.Printf("Capture finished (%s).\n", sum.Reason)
		fmt.Printf("  cycles: %d  rows: %d (+%d duplicates skipped)  parts: %d\n",
			sum.Cycles, sum.RowsAccepted, sum.RowsDuplicate, sum.PartsEmitted)
		fmt.Printf("  stalls: %d  nudges: %d\n", sum.Stalls, sum.Nudges)
		fmt.Printf("Output: %s\n", batchDir)
		return nil
	},
}

var batchDirRe = regexp.MustCompile(`^batch(\d+)$`)

// nextBatchDir creates and returns the next numbered batch directory under
// root. Batch numbers are monotonic across sessions so the stitcher's
// folder ordering follows capture order.
func nextBatchDir(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("scanning output dir: %w", err)
	}
	next := 1
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := batchDirRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n >= next {
			next = n + 1
		}
	}
	dir := filepath.Join(root, fmt.Sprintf("batch%d", next))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating batch dir: %w", err)
	}
	return dir, nil
}

func init() {
	captureCmd.Flags().StringVarP(&captureOut, "out", "o", "", "Output root for batch directories (overrides config)")
	rootCmd.AddCommand(captureCmd)
}
