package session_test

import (
	"errors"
	"os"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/minhvu/chatrake/internal/session"
)

// generateTime produces an arbitrary time.Time value, truncated to second
// precision to match JSON round-trip fidelity.
func generateTime(t *rapid.T, label string) time.Time {
	sec := rapid.Int64Range(0, 1_700_000_000).Draw(t, label)
	return time.Unix(sec, 0).UTC()
}

func generateSession(t *rapid.T) *session.Session {
	var stopTime *time.Time
	if rapid.Bool().Draw(t, "has_stop_time") {
		st := generateTime(t, "stop_sec")
		stopTime = &st
	}
	return &session.Session{
		ID:            rapid.StringN(1, 36, -1).Draw(t, "id"),
		StartTime:     generateTime(t, "start_sec"),
		StopTime:      stopTime,
		FramesFile:    rapid.StringN(1, 100, -1).Draw(t, "frames_file"),
		BatchDir:      rapid.StringN(1, 100, -1).Draw(t, "batch_dir"),
		StopRequested: rapid.Bool().Draw(t, "stop_requested"),
		Cycles:        rapid.IntRange(0, 100000).Draw(t, "cycles"),
		RowsAccepted:  rapid.IntRange(0, 100000).Draw(t, "rows_accepted"),
		RowsDuplicate: rapid.IntRange(0, 100000).Draw(t, "rows_duplicate"),
		PartsEmitted:  rapid.IntRange(0, 1000).Draw(t, "parts_emitted"),
		Stalls:        rapid.IntRange(0, 1000).Draw(t, "stalls"),
		Nudges:        rapid.IntRange(0, 100).Draw(t, "nudges"),
		DelayMs:       rapid.IntRange(0, 10000).Draw(t, "delay_ms"),
	}
}

// Feature: chatrake, Property 7: Session persistence round-trip
func TestSessionPersistenceRoundTrip(t *testing.T) {
	// Point the store at a temp directory via XDG_DATA_HOME.
	// Use the outer *testing.T for TempDir/Setenv (rapid.T doesn't have these).
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	store, err := session.NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	rapid.Check(t, func(t *rapid.T) {
		original := generateSession(t)

		if err := store.Save(original); err != nil {
			t.Fatalf("Save: %v", err)
		}
		loaded, err := store.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}

		if loaded.ID != original.ID {
			t.Errorf("ID mismatch: got %q, want %q", loaded.ID, original.ID)
		}
		if !loaded.StartTime.Equal(original.StartTime) {
			t.Errorf("StartTime mismatch: got %v, want %v", loaded.StartTime, original.StartTime)
		}
		if (loaded.StopTime == nil) != (original.StopTime == nil) {
			t.Errorf("StopTime nil mismatch: got %v, want %v", loaded.StopTime, original.StopTime)
		} else if loaded.StopTime != nil && !loaded.StopTime.Equal(*original.StopTime) {
			t.Errorf("StopTime mismatch: got %v, want %v", *loaded.StopTime, *original.StopTime)
		}
		if loaded.FramesFile != original.FramesFile {
			t.Errorf("FramesFile mismatch: got %q, want %q", loaded.FramesFile, original.FramesFile)
		}
		if loaded.BatchDir != original.BatchDir {
			t.Errorf("BatchDir mismatch: got %q, want %q", loaded.BatchDir, original.BatchDir)
		}
		if loaded.StopRequested != original.StopRequested {
			t.Errorf("StopRequested mismatch: got %v, want %v", loaded.StopRequested, original.StopRequested)
		}

		counters := [][2]int{
			{loaded.Cycles, original.Cycles},
			{loaded.RowsAccepted, original.RowsAccepted},
			{loaded.RowsDuplicate, original.RowsDuplicate},
			{loaded.PartsEmitted, original.PartsEmitted},
			{loaded.Stalls, original.Stalls},
			{loaded.Nudges, original.Nudges},
			{loaded.DelayMs, original.DelayMs},
		}
		for i, c := range counters {
			if c[0] != c[1] {
				t.Errorf("counter %d mismatch: got %d, want %d", i, c[0], c[1])
			}
		}
	})
}

// TestLoadReturnsErrNoSession verifies that Load returns ErrNoSession when no
// session file exists on disk.
func TestLoadReturnsErrNoSession(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	store, err := session.NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	_, err = store.Load()
	if err == nil {
		t.Fatal("expected ErrNoSession, got nil")
	}
	if !errors.Is(err, session.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got: %v", err)
	}
}

// TestDeleteIsIdempotent verifies that Delete succeeds whether or not a
// session file exists.
func TestDeleteIsIdempotent(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	store, err := session.NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := store.Delete(); err != nil {
		t.Errorf("Delete with no session: %v", err)
	}
	if err := store.Save(&session.Session{ID: "x", StartTime: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(); err != nil {
		t.Errorf("Delete: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Load after Delete: %v", err)
	}
}

// TestSaveFailurePropagatesError verifies that Save returns an error when the
// underlying directory is not writable.
func TestSaveFailurePropagatesError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root; permission checks are ineffective")
	}

	tmp := t.TempDir()
	if err := os.Chmod(tmp, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(tmp, 0o755) })

	t.Setenv("XDG_DATA_HOME", tmp)

	// NewStore calls os.MkdirAll on the chatrake sub-dir; that fails because
	// tmp is unreadable/unwritable, so we expect the error here.
	_, err := session.NewStore()
	if err == nil {
		t.Fatal("expected error creating store in unwritable directory, got nil")
	}
}
