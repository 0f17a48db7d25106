// Package hostview defines the boundary between the capture engine and the
// environment that renders the conversation. The engine only ever needs the
// five operations below: identify the region, enumerate rendered items,
// read their attributes, scroll, and swap an item for a placeholder.
//
// The bundled Replay implementation simulates a virtualized, lazily-loading
// scroll region from a recorded frame file; a live UI-automation binding
// would implement the same two interfaces.
package hostview

import "errors"

// ErrUnreadable is returned by item accessors when the underlying node is
// mid-mutation and cannot be read this cycle. Transient: callers skip the
// item and retry on the next sampling pass.
var ErrUnreadable = errors.New("item unreadable")

// Rect is a bounding box in viewport coordinates (Top may be negative for
// items rendered above the visible band).
type Rect struct {
	Top    float64
	Left   float64
	Width  float64
	Height float64
}

// Bottom returns the bottom edge of the rect.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// MidX returns the horizontal center of the rect.
func (r Rect) MidX() float64 { return r.Left + r.Width/2 }

// Metrics is the view's scroll and resource state at sampling time.
type Metrics struct {
	ScrollTop    float64
	ScrollHeight float64
	// MemoryUsedPct is the environment's memory-pressure readout as a
	// percentage; zero when unavailable.
	MemoryUsedPct int
}

// Item is a handle to one currently rendered row.
type Item interface {
	// ID is stable for the lifetime of the row in the view. Identity never
	// crosses a session boundary.
	ID() string
	Bounds() (Rect, error)
	Text() (string, error)
	MediaRefs() ([]string, error)

	// ReleaseMedia drops the item's heavy rendering payload while
	// preserving its layout height.
	ReleaseMedia() error

	// Collapse replaces the item with a fixed-height placeholder holding no
	// payload. Idempotent.
	Collapse() error
	Collapsed() bool
}

// View is the scrollable conversation region.
type View interface {
	// Viewport returns the visible band in viewport coordinates.
	Viewport() (Rect, error)

	// Items enumerates the currently rendered item handles, top to bottom.
	Items() ([]Item, error)

	// ScrollBy shifts the scroll offset; negative moves back through
	// history.
	ScrollBy(delta float64) error

	Metrics() (Metrics, error)
}
