// Package watch tails a raw capture directory and announces part files as
// they land, so progress is visible while a capture session (or an external
// collaborator downloading parts) is still running.
package watch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/minhvu/chatrake/internal/row"
	"github.com/minhvu/chatrake/internal/stitch"
)

// Event describes one observed part-file arrival.
type Event struct {
	Path  string
	Batch string
	Part  int
	Rows  int
	Err   error // set when the file appeared but could not be read
}

// Watch starts a recursive fsnotify watcher on rawDir and sends an Event
// for every part file created or rewritten, until ctx is cancelled. New
// batch directories are picked up as they appear.
func Watch(ctx context.Context, rawDir string, events chan<- Event) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Walk the tree and watch every directory.
	if err := filepath.WalkDir(rawDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			// New batch directory: watch it too.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
					continue
				}
			}

			name := filepath.Base(event.Name)
			if ok, _ := filepath.Match(row.PartFilePattern, name); !ok {
				continue
			}

			ev := Event{
				Path:  event.Name,
				Batch: filepath.Base(filepath.Dir(event.Name)),
				Part:  stitch.PartNumber(name),
			}
			rows, err := row.ReadPartFile(event.Name)
			if err != nil {
				ev.Err = err
			} else {
				ev.Rows = len(rows)
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
		}
	}
}
