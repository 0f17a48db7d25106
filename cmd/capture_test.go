package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/minhvu/chatrake/internal/session"
)

func TestNextBatchDirMonotonic(t *testing.T) {
	root := t.TempDir()

	first, err := nextBatchDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(first) != "batch1" {
		t.Errorf("first dir: %q", first)
	}

	second, err := nextBatchDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(second) != "batch2" {
		t.Errorf("second dir: %q", second)
	}

	// Gaps are never refilled: numbering continues past the highest.
	if err := os.MkdirAll(filepath.Join(root, "batch9"), 0o755); err != nil {
		t.Fatal(err)
	}
	third, err := nextBatchDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(third) != "batch10" {
		t.Errorf("after batch9: %q", third)
	}
}

func TestNextBatchDirIgnoresForeignEntries(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"batchX", "stitched", "batch2extra"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	dir, err := nextBatchDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(dir) != "batch1" {
		t.Errorf("dir: %q", dir)
	}
}

func TestNextBatchDirCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data", "raw")
	dir, err := nextBatchDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("batch dir not created: %v", err)
	}
}

// TestCaptureRefusesConcurrentSession verifies the single-session guard.
func TestCaptureRefusesConcurrentSession(t *testing.T) {
	isolate(t)

	store, err := session.NewStore()
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(&session.Session{ID: "running", StartTime: time.Now()}); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand(rootCmd, "capture", "frames.json")
	if err == nil {
		t.Fatal("expected an error while another session is active")
	}
	combined := out + err.Error()
	if !strings.Contains(combined, "already in progress") {
		t.Errorf("expected error to mention the running session, got: %q", combined)
	}
}
