package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minhvu/chatrake/internal/row"
	"github.com/minhvu/chatrake/internal/watch"
)

func TestWatchAnnouncesNewParts(t *testing.T) {
	raw := t.TempDir()
	batchDir := filepath.Join(raw, "batch1")
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan watch.Event, 8)
	done := make(chan error, 1)
	go func() { done <- watch.Watch(ctx, raw, events) }()

	// Give the watcher time to register the directories.
	time.Sleep(100 * time.Millisecond)

	rows := []row.RowRecord{
		{Sender: row.SenderSelf, RawText: "one"},
		{Sender: row.SenderOther, RawText: "two"},
	}
	path := filepath.Join(batchDir, row.PartFileName(3))
	if err := row.WritePartFile(path, rows); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Err != nil {
			t.Fatalf("event error: %v", ev.Err)
		}
		if ev.Batch != "batch1" || ev.Part != 3 || ev.Rows != 2 {
			t.Errorf("event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event for the new part file")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop on cancel")
	}
}

func TestWatchIgnoresForeignFiles(t *testing.T) {
	raw := t.TempDir()
	batchDir := filepath.Join(raw, "batch1")
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan watch.Event, 8)
	go watch.Watch(ctx, raw, events)
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(batchDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		t.Errorf("unexpected event for a non-part file: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}
