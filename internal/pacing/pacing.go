// Package pacing regulates the sample-scroll-wait cycle against an
// unreliable content loader. It is a hysteresis controller over a single
// variable, the inter-cycle delay, chosen over PID-style control for
// bounded, explainable behavior under noisy load signals.
package pacing

import "time"

// positionEpsilon is the minimum movement of the topmost item counted as a
// material change; sub-pixel jitter is not progress.
const positionEpsilon = 4.0

// Signals is what the controller observes about the view each cycle.
type Signals struct {
	TopItemID     string
	TopItemTop    float64
	ScrollHeight  float64
	MemoryUsedPct int
}

// Action is the controller's decision for the cycle that just ended.
type Action struct {
	// Delay to wait before the next cycle.
	Delay time.Duration
	// Nudge requests a small reverse scroll to coax a deeply stalled
	// loader.
	Nudge bool
	// Stalled reports whether this cycle observed no progress.
	Stalled bool
}

// Config bounds the controller.
type Config struct {
	Base              time.Duration // fastest pace
	Max               time.Duration // slowest pace
	Step              time.Duration
	NudgeAfterStalls  int // consecutive stalls at Max before a nudge
	PressureThreshold int // MemoryUsedPct at which to slow unconditionally
}

// Controller paces the capture loop. Not safe for concurrent use.
type Controller struct {
	cfg Config

	delay       time.Duration
	atMaxStalls int // consecutive stalls observed at Max; reset by a nudge or progress
	totalStalls int // cumulative, never reset
	nudges      int

	prev    Signals
	hasPrev bool
}

// New returns a Controller starting at the base pace.
func New(cfg Config) *Controller {
	if cfg.Max < cfg.Base {
		cfg.Max = cfg.Base
	}
	if cfg.Step <= 0 {
		cfg.Step = cfg.Base
	}
	if cfg.NudgeAfterStalls <= 0 {
		cfg.NudgeAfterStalls = 3
	}
	return &Controller{cfg: cfg, delay: cfg.Base}
}

// Observe feeds one cycle's signals and returns the pacing decision.
func (c *Controller) Observe(sig Signals) Action {
	advanced := c.advanced(sig)
	c.prev = sig
	c.hasPrev = true

	act := Action{}
	if advanced {
		// Recovering: content is flowing, speed back up.
		c.atMaxStalls = 0
		c.delay -= c.cfg.Step
		if c.delay < c.cfg.Base {
			c.delay = c.cfg.Base
		}
	} else {
		act.Stalled = true
		c.totalStalls++
		c.delay += c.cfg.Step
		if c.delay >= c.cfg.Max {
			c.delay = c.cfg.Max
			c.atMaxStalls++
		} else {
			c.atMaxStalls = 0
		}
		if c.atMaxStalls >= c.cfg.NudgeAfterStalls {
			// Deep stall: ask for a corrective nudge and restart the
			// consecutive count. The cumulative stall total is untouched.
			act.Nudge = true
			c.nudges++
			c.atMaxStalls = 0
		}
	}

	// Memory pressure overrides everything: grant the environment time to
	// reclaim, even while content is advancing.
	if c.cfg.PressureThreshold > 0 && sig.MemoryUsedPct >= c.cfg.PressureThreshold {
		c.delay += c.cfg.Step
		if c.delay > c.cfg.Max {
			c.delay = c.cfg.Max
		}
	}

	act.Delay = c.delay
	return act
}

// advanced reports whether the view made material progress since the last
// observation: the top item moved or changed identity, or the scrollable
// extent grew. The first observation counts as progress.
func (c *Controller) advanced(sig Signals) bool {
	if !c.hasPrev {
		return true
	}
	if sig.ScrollHeight > c.prev.ScrollHeight {
		return true
	}
	if sig.TopItemID != c.prev.TopItemID {
		return true
	}
	diff := sig.TopItemTop - c.prev.TopItemTop
	if diff < 0 {
		diff = -diff
	}
	return diff > positionEpsilon
}

// Delay returns the current inter-cycle delay.
func (c *Controller) Delay() time.Duration { return c.delay }

// TotalStalls returns the cumulative stall count.
func (c *Controller) TotalStalls() int { return c.totalStalls }

// Nudges returns how many corrective nudges have been issued.
func (c *Controller) Nudges() int { return c.nudges }
