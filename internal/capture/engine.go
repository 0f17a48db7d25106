// Package capture runs the adaptive capture loop: sample the rendered view,
// extract and dedup visible rows, emit part files, reclaim rendering memory,
// and pace itself against the content loader.
//
// One goroutine owns the view. Each cycle runs its phases against the same
// pass boundary (extract, then strip, then collapse, then scroll) so
// reclamation can never race extraction on an item.
package capture

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhvu/chatrake/internal/config"
	"github.com/minhvu/chatrake/internal/dedup"
	"github.com/minhvu/chatrake/internal/extract"
	"github.com/minhvu/chatrake/internal/hostview"
	"github.com/minhvu/chatrake/internal/pacing"
	"github.com/minhvu/chatrake/internal/reclaim"
	"github.com/minhvu/chatrake/internal/session"
)

// itemState tracks what the engine has done with a rendered item, keyed by
// the item's stable id. Absence means unseen. The markers make re-entrant
// passes idempotent: a handled item is never reconsidered, a collapsed one
// never re-collapsed.
type itemState uint8

const (
	stateUnseen itemState = iota
	stateCaptured
	stateCollapsed
)

// Stop reasons reported in Summary.
const (
	ReasonStopped     = "stop requested"
	ReasonInterrupted = "interrupted"
	ReasonExhausted   = "history exhausted"
)

// endAfterFruitlessNudges is how many consecutive nudges may pass without
// any observed progress before the engine concludes there is no more
// history to load.
const endAfterFruitlessNudges = 3

// Summary describes a finished capture run.
type Summary struct {
	Cycles        int
	RowsAccepted  int
	RowsDuplicate int
	PartsEmitted  int
	Stalls        int
	Nudges        int
	Reason        string
}

// Engine wires the pipeline components around one host view.
type Engine struct {
	view  hostview.View
	cfg   config.Config
	log   zerolog.Logger
	store session.Store
	sess  *session.Session

	extractor  *extract.Extractor
	window     *dedup.Window
	reclaimer  *reclaim.Reclaimer
	controller *pacing.Controller
	emitter    *Emitter

	states map[string]itemState

	// sleep is swappable so tests run without real delays.
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewEngine builds an engine for one capture session. batchDir is the
// directory part files are written into; store and sess may be nil when no
// session bookkeeping is wanted (tests).
func NewEngine(view hostview.View, cfg config.Config, batchDir string, log zerolog.Logger, store session.Store, sess *session.Session) *Engine {
	return &Engine{
		view:      view,
		cfg:       cfg,
		log:       log,
		store:     store,
		sess:      sess,
		extractor: extract.New(),
		window:    dedup.NewWindow(cfg.WindowCapacity),
		reclaimer: &reclaim.Reclaimer{
			GraceDelay:      time.Duration(cfg.StripGraceMs) * time.Millisecond,
			CollapseBelowPx: float64(cfg.CollapseDistancePx),
			CollapseAbovePx: float64(cfg.ScrollbackBufferPx),
		},
		controller: pacing.New(pacing.Config{
			Base:              time.Duration(cfg.BaseDelayMs) * time.Millisecond,
			Max:               time.Duration(cfg.MaxDelayMs) * time.Millisecond,
			Step:              time.Duration(cfg.DelayStepMs) * time.Millisecond,
			NudgeAfterStalls:  cfg.NudgeAfterStalls,
			PressureThreshold: cfg.MemoryPressure,
		}),
		emitter: NewEmitter(batchDir, cfg.BatchSize),
		states:  make(map[string]itemState),
		sleep:   sleepCtx,
	}
}

// Run drives the capture loop until the context is cancelled, a stop is
// requested through the session store, or the loader has nothing left to
// give. The final partial buffer is always flushed on the way out.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	var (
		cycles          int
		accepted        int
		duplicates      int
		fruitlessNudges int
		lastHeight      float64
		reason          = ReasonInterrupted
	)

	settle := time.Duration(e.cfg.SettleDelayMs) * time.Millisecond
	scrollStep := e.scrollStep()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}
		cycles++

		// Phase 1: capture everything currently in the band.
		pass, err := e.capturePass()
		if err != nil {
			// The view itself is unreadable this cycle; treat like a
			// stall and retry after the current delay.
			e.log.Warn().Err(err).Int("cycle", cycles).Msg("sampling failed, retrying")
		} else {
			accepted += pass.accepted
			duplicates += pass.duplicates
		}

		// Phase 2: short settle, then re-scan the same band once to catch
		// content that arrived while the first pass ran.
		if settle > 0 {
			if !e.sleep(ctx, settle) {
				break loop
			}
			late, err := e.capturePass()
			if err == nil {
				accepted += late.accepted
				duplicates += late.duplicates
			}
		}

		now := time.Now()

		// Phase 3: reclamation at the pass boundary, extraction already
		// done for everything readable this cycle.
		e.reclaimer.RunStrips(now)
		if e.cfg.CollapseEvery > 0 && cycles%e.cfg.CollapseEvery == 0 {
			e.collapsePass()
		}

		// Phase 4: pacing.
		metrics, err := e.view.Metrics()
		if err != nil {
			metrics = hostview.Metrics{}
		}
		act := e.controller.Observe(pacing.Signals{
			TopItemID:     pass.topID,
			TopItemTop:    pass.topTop,
			ScrollHeight:  metrics.ScrollHeight,
			MemoryUsedPct: metrics.MemoryUsedPct,
		})

		// A nudge is fruitful only when the loader actually yields new
		// content. Position jitter from the nudge scroll itself reads as
		// progress to the controller, so the exhaustion count keys on the
		// scrollable extent instead.
		if metrics.ScrollHeight > lastHeight {
			fruitlessNudges = 0
		}
		lastHeight = metrics.ScrollHeight
		if act.Nudge {
			fruitlessNudges++
			e.log.Info().Int("cycle", cycles).Int("nudge_px", e.cfg.NudgePx).Msg("deep stall, nudging loader")
			if fruitlessNudges >= endAfterFruitlessNudges {
				reason = ReasonExhausted
				break loop
			}
			e.view.ScrollBy(float64(e.cfg.NudgePx))
		} else {
			e.view.ScrollBy(-scrollStep)
		}

		e.log.Debug().
			Int("cycle", cycles).
			Int("accepted", pass.accepted).
			Int("duplicate", pass.duplicates).
			Dur("delay", act.Delay).
			Bool("stalled", act.Stalled).
			Int("memory_pct", metrics.MemoryUsedPct).
			Msg("cycle complete")

		// Phase 5: session heartbeat and stop polling.
		if e.heartbeat(cycles, accepted, duplicates, act.Delay) {
			reason = ReasonStopped
			break loop
		}

		if !e.sleep(ctx, act.Delay) {
			break loop
		}
	}

	// Shutdown flush: whatever is buffered still becomes a part.
	if part, err := e.emitter.Flush(); err != nil {
		return Summary{}, err
	} else if part > 0 {
		e.log.Info().Int("part", part).Msg("flushed final partial part")
	}

	summary := Summary{
		Cycles:        cycles,
		RowsAccepted:  accepted,
		RowsDuplicate: duplicates,
		PartsEmitted:  e.emitter.PartsEmitted(),
		Stalls:        e.controller.TotalStalls(),
		Nudges:        e.controller.Nudges(),
		Reason:        reason,
	}
	e.finishSession(summary)
	return summary, nil
}

// passResult aggregates one sampling pass.
type passResult struct {
	accepted   int
	duplicates int
	topID      string
	topTop     float64
}

// capturePass samples the view once: extract every unseen item whose
// leading edge is inside the band, classify it, and hand accepted rows to
// the emitter. Per-item read failures are skipped and retried next cycle;
// they never abort the pass.
func (e *Engine) capturePass() (passResult, error) {
	var res passResult

	viewport, err := e.view.Viewport()
	if err != nil {
		return res, err
	}
	items, err := e.view.Items()
	if err != nil {
		return res, err
	}

	topSet := false
	for _, item := range items {
		// Topmost visible item, for the pacing signal.
		if !topSet {
			if b, err := item.Bounds(); err == nil && b.Bottom() > viewport.Top {
				res.topID = item.ID()
				res.topTop = b.Top
				topSet = true
			}
		}

		if e.states[item.ID()] != stateUnseen {
			continue
		}

		rec, ok, err := e.extractor.Row(item, viewport)
		if err != nil {
			// Transient: leave unseen, retry next cycle.
			e.log.Debug().Str("item", item.ID()).Err(err).Msg("item unreadable, will retry")
			continue
		}
		if !ok {
			continue
		}

		sig := dedup.Compute(rec, e.cfg.SignatureTextLen, e.cfg.SignatureMediaN)
		if e.window.CheckAndRecord(sig) {
			part, err := e.emitter.Append(rec)
			if err != nil {
				return res, err
			}
			if part > 0 {
				e.log.Info().Int("part", part).Int("rows", e.cfg.BatchSize).Msg("emitted part")
				if e.sess != nil {
					e.sess.PartsEmitted = e.emitter.PartsEmitted()
				}
			}
			res.accepted++
		} else {
			// Already in the window: don't re-emit, but still mark the
			// item handled so later passes short-circuit on the state
			// check instead of recomputing the signature.
			res.duplicates++
		}

		e.states[item.ID()] = stateCaptured
		e.reclaimer.MarkCaptured(item, time.Now())
	}
	return res, nil
}

// collapsePass runs the out-of-band collapse against the current item set
// and records collapsed ids in the state index.
func (e *Engine) collapsePass() {
	viewport, err := e.view.Viewport()
	if err != nil {
		return
	}
	items, err := e.view.Items()
	if err != nil {
		return
	}
	collapsed := e.reclaimer.CollapsePass(items, viewport)
	for _, item := range items {
		if item.Collapsed() {
			e.states[item.ID()] = stateCollapsed
		}
	}
	if collapsed > 0 {
		e.log.Debug().Int("collapsed", collapsed).Msg("collapse pass")
	}
}

// scrollStep is the distance of one backward scroll: most of a viewport,
// leaving overlap so rows on the seam are sampled by both cycles.
func (e *Engine) scrollStep() float64 {
	viewport, err := e.view.Viewport()
	if err != nil || viewport.Height <= 0 {
		return 600
	}
	return viewport.Height * 0.8
}

// heartbeat publishes live counters to the session store and reports
// whether a stop has been requested. Best-effort: store failures never
// abort a capture.
func (e *Engine) heartbeat(cycles, accepted, duplicates int, delay time.Duration) bool {
	if e.store == nil || e.sess == nil {
		return false
	}
	if s, err := e.store.Load(); err == nil && s.StopRequested {
		e.sess.StopRequested = true
	}
	e.sess.Cycles = cycles
	e.sess.RowsAccepted = accepted
	e.sess.RowsDuplicate = duplicates
	e.sess.PartsEmitted = e.emitter.PartsEmitted()
	e.sess.Stalls = e.controller.TotalStalls()
	e.sess.Nudges = e.controller.Nudges()
	e.sess.DelayMs = int(delay / time.Millisecond)
	_ = e.store.Save(e.sess)
	return e.sess.StopRequested
}

// finishSession records stop time and final counters.
func (e *Engine) finishSession(sum Summary) {
	if e.store == nil || e.sess == nil {
		return
	}
	now := time.Now()
	e.sess.StopTime = &now
	e.sess.Cycles = sum.Cycles
	e.sess.RowsAccepted = sum.RowsAccepted
	e.sess.RowsDuplicate = sum.RowsDuplicate
	e.sess.PartsEmitted = sum.PartsEmitted
	e.sess.Stalls = sum.Stalls
	e.sess.Nudges = sum.Nudges
	_ = e.store.Save(e.sess)
}

// sleepCtx waits for d or until ctx is cancelled. Returns false when the
// wait was cut short.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
