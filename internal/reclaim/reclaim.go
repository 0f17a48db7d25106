// Package reclaim releases rendering memory for rows the capture loop has
// already handled. Two independent policies: a post-capture strip of heavy
// payloads, and a slower out-of-band collapse of rows far outside the
// visible band. Both run at pass boundaries of the engine's cycle, never
// interleaved mid-item, so extraction always reads a payload before either
// policy removes it.
package reclaim

import (
	"time"

	"github.com/minhvu/chatrake/internal/hostview"
)

// Reclaimer applies the strip and collapse policies. Not safe for
// concurrent use; the engine owns it along with the view.
type Reclaimer struct {
	// GraceDelay postpones the payload strip briefly after capture so the
	// row doesn't visibly flicker while the capture is still settling.
	GraceDelay time.Duration

	// CollapseBelowPx is how far past the bottom of the band an item must
	// lie before it is collapsed. Below is already-visited territory.
	CollapseBelowPx float64

	// CollapseAbovePx is the same distance in the scroll-back direction.
	// Deliberately larger: the loader prepends content above the band and
	// may still need to reference it, and rows up there have not been
	// captured yet.
	CollapseAbovePx float64

	pending []pendingStrip
}

type pendingStrip struct {
	item hostview.Item
	due  time.Time
}

// MarkCaptured schedules the item's heavy payload for release. With no
// grace delay the strip happens immediately.
func (r *Reclaimer) MarkCaptured(item hostview.Item, now time.Time) {
	if r.GraceDelay <= 0 {
		item.ReleaseMedia()
		return
	}
	r.pending = append(r.pending, pendingStrip{item: item, due: now.Add(r.GraceDelay)})
}

// RunStrips releases every pending payload whose grace period has elapsed.
// Called at a pass boundary. Returns the number of items stripped.
func (r *Reclaimer) RunStrips(now time.Time) int {
	stripped := 0
	remaining := r.pending[:0]
	for _, p := range r.pending {
		if p.due.After(now) {
			remaining = append(remaining, p)
			continue
		}
		p.item.ReleaseMedia()
		stripped++
	}
	r.pending = remaining
	return stripped
}

// PendingStrips returns how many strips are still waiting on their grace
// period.
func (r *Reclaimer) PendingStrips() int { return len(r.pending) }

// CollapsePass replaces every item lying beyond the safety buffers with a
// height-preserving placeholder. Idempotent: already-collapsed items are
// skipped by their marker. Items whose bounds are unreadable this cycle are
// left alone. Returns the number of items collapsed.
func (r *Reclaimer) CollapsePass(items []hostview.Item, viewport hostview.Rect) int {
	collapsed := 0
	for _, item := range items {
		if item.Collapsed() {
			continue
		}
		bounds, err := item.Bounds()
		if err != nil {
			continue
		}
		farAbove := bounds.Bottom() < viewport.Top-r.CollapseAbovePx
		farBelow := bounds.Top > viewport.Bottom()+r.CollapseBelowPx
		if !farAbove && !farBelow {
			continue
		}
		if err := item.Collapse(); err != nil {
			continue
		}
		collapsed++
	}
	return collapsed
}
