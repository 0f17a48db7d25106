package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhvu/chatrake/internal/config"
	"github.com/minhvu/chatrake/internal/hostview"
	"github.com/minhvu/chatrake/internal/row"
)

func testEngineConfig() config.Config {
	cfg := config.Defaults()
	cfg.BatchSize = 5
	cfg.WindowCapacity = 50
	cfg.BaseDelayMs = 1
	cfg.MaxDelayMs = 3
	cfg.DelayStepMs = 1
	cfg.SettleDelayMs = 0
	cfg.NudgeAfterStalls = 2
	cfg.NudgePx = 50
	cfg.MemoryPressure = 0
	cfg.StripGraceMs = 0
	cfg.CollapseEvery = 0
	return cfg
}

// replaySpec builds n rows of 100px each, alternating sides, unique text.
func replaySpec(n int) hostview.ReplaySpec {
	items := make([]hostview.ReplayItem, n)
	for i := range items {
		side := "left"
		if i%2 == 1 {
			side = "right"
		}
		items[i] = hostview.ReplayItem{
			ID:     fmt.Sprintf("item-%d", i),
			Height: 100,
			Side:   side,
			Text:   fmt.Sprintf("msg-%d", i),
		}
	}
	return hostview.ReplaySpec{
		ViewportHeight: 400,
		RegionWidth:    600,
		Chunk:          4,
		LoadLatency:    1,
		MemoryCapacity: 100,
		Items:          items,
	}
}

// cappedSleep returns an injected sleep that never waits and aborts the run
// after maxCycles, so a looping engine fails the test instead of hanging it.
func cappedSleep(maxCycles int) func(ctx context.Context, d time.Duration) bool {
	calls := 0
	return func(ctx context.Context, d time.Duration) bool {
		calls++
		return calls < maxCycles
	}
}

func TestEngineCapturesFullHistory(t *testing.T) {
	tmp := t.TempDir()
	view := hostview.NewReplay(replaySpec(12))

	e := NewEngine(view, testEngineConfig(), tmp, zerolog.Nop(), nil, nil)
	e.sleep = cappedSleep(500)

	sum, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Reason != ReasonExhausted {
		t.Errorf("Reason: got %q, want %q", sum.Reason, ReasonExhausted)
	}
	if sum.RowsAccepted != 12 {
		t.Errorf("RowsAccepted: got %d, want 12", sum.RowsAccepted)
	}
	if sum.RowsDuplicate != 0 {
		t.Errorf("RowsDuplicate: got %d, want 0", sum.RowsDuplicate)
	}
	if sum.PartsEmitted != 3 {
		// 12 rows at batch size 5: two full parts and a flushed remainder.
		t.Errorf("PartsEmitted: got %d, want 3", sum.PartsEmitted)
	}
	if !view.Exhausted() {
		t.Error("run ended without loading all history")
	}

	// Every recorded row lands in exactly one part, each exactly once.
	seen := make(map[string]int)
	for p := 1; p <= sum.PartsEmitted; p++ {
		rows, err := row.ReadPartFile(filepath.Join(tmp, row.PartFileName(p)))
		if err != nil {
			t.Fatalf("part %d: %v", p, err)
		}
		for _, r := range rows {
			seen[r.RawText]++
		}
	}
	for i := 0; i < 12; i++ {
		if n := seen[fmt.Sprintf("msg-%d", i)]; n != 1 {
			t.Errorf("msg-%d captured %d times, want 1", i, n)
		}
	}
}

func TestEngineSendersFromSpatialPosition(t *testing.T) {
	tmp := t.TempDir()
	view := hostview.NewReplay(replaySpec(4))

	e := NewEngine(view, testEngineConfig(), tmp, zerolog.Nop(), nil, nil)
	e.sleep = cappedSleep(500)

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rows, err := row.ReadPartFile(filepath.Join(tmp, row.PartFileName(1)))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		// Odd indexes were laid out on the right.
		idx := 0
		fmt.Sscanf(r.RawText, "msg-%d", &idx)
		wantSender := row.SenderOther
		if idx%2 == 1 {
			wantSender = row.SenderSelf
		}
		if r.Sender != wantSender {
			t.Errorf("%s: sender %q, want %q", r.RawText, r.Sender, wantSender)
		}
	}
}

func TestEngineClassifiesRepeatedContentDuplicate(t *testing.T) {
	tmp := t.TempDir()
	spec := replaySpec(12)
	// Same side, same text, different rendered rows.
	spec.Items[2].Side = "left"
	spec.Items[9].Side = "left"
	spec.Items[2].Text = "dup"
	spec.Items[9].Text = "dup"

	e := NewEngine(hostview.NewReplay(spec), testEngineConfig(), tmp, zerolog.Nop(), nil, nil)
	e.sleep = cappedSleep(500)

	sum, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.RowsAccepted != 11 {
		t.Errorf("RowsAccepted: got %d, want 11", sum.RowsAccepted)
	}
	if sum.RowsDuplicate != 1 {
		t.Errorf("RowsDuplicate: got %d, want 1", sum.RowsDuplicate)
	}
}

func TestEngineRetriesFlakyItems(t *testing.T) {
	tmp := t.TempDir()
	spec := replaySpec(8)
	spec.Items[5].Flaky = true

	e := NewEngine(hostview.NewReplay(spec), testEngineConfig(), tmp, zerolog.Nop(), nil, nil)
	e.sleep = cappedSleep(500)

	sum, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.RowsAccepted != 8 {
		t.Errorf("RowsAccepted: got %d, want 8; a flaky row must be retried, not lost", sum.RowsAccepted)
	}
}

// A cancelled run still flushes whatever is buffered.
func TestEngineFlushesOnInterrupt(t *testing.T) {
	tmp := t.TempDir()
	view := hostview.NewReplay(replaySpec(12))

	e := NewEngine(view, testEngineConfig(), tmp, zerolog.Nop(), nil, nil)
	// Abort at the end of the first cycle, with 4 rows buffered and no part
	// yet written.
	e.sleep = cappedSleep(1)

	sum, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Reason != ReasonInterrupted {
		t.Errorf("Reason: got %q, want %q", sum.Reason, ReasonInterrupted)
	}
	if sum.PartsEmitted != 1 {
		t.Fatalf("PartsEmitted: got %d, want 1", sum.PartsEmitted)
	}
	rows, err := row.ReadPartFile(filepath.Join(tmp, row.PartFileName(1)))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Errorf("flushed %d rows, want the 4 visible in the first cycle", len(rows))
	}
}

func TestEngineCollapseDoesNotLoseRows(t *testing.T) {
	tmp := t.TempDir()
	cfg := testEngineConfig()
	cfg.CollapseEvery = 2
	cfg.CollapseDistancePx = 300
	cfg.ScrollbackBufferPx = 600

	e := NewEngine(hostview.NewReplay(replaySpec(12)), cfg, tmp, zerolog.Nop(), nil, nil)
	e.sleep = cappedSleep(500)

	sum, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.RowsAccepted != 12 {
		t.Errorf("RowsAccepted with collapsing on: got %d, want 12", sum.RowsAccepted)
	}
}
