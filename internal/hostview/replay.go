package hostview

import (
	"encoding/json"
	"fmt"
	"os"
)

// ReplaySpec describes a recorded conversation region for the Replay view.
// Items are ordered oldest to newest, the way the host lays them out top to
// bottom.
type ReplaySpec struct {
	ViewportHeight float64      `json:"viewport_height"`
	RegionWidth    float64      `json:"region_width"`
	Chunk          int          `json:"chunk"`           // items loaded per fetch
	LoadLatency    int          `json:"load_latency"`    // sampling cycles before a fetch lands
	StallEvery     int          `json:"stall_every"`     // every Nth fetch is rate-limited
	StallExtra     int          `json:"stall_extra"`     // extra cycles a rate-limited fetch takes
	MemoryCapacity int          `json:"memory_capacity"` // heavy items at which pressure reads 100%
	Items          []ReplayItem `json:"items"`
}

// ReplayItem is one recorded row.
type ReplayItem struct {
	ID     string   `json:"id"`
	Height float64  `json:"height"`
	Side   string   `json:"side"` // "left" (other) or "right" (self)
	Text   string   `json:"text"`
	Media  []string `json:"media"`
	// Flaky items fail their first attribute read with ErrUnreadable, then
	// read normally. Models a node sampled mid-mutation.
	Flaky bool `json:"flaky,omitempty"`
}

// LoadSpec reads a ReplaySpec from a JSON frame file.
func LoadSpec(path string) (*ReplaySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading frames file: %w", err)
	}
	var spec ReplaySpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing frames file %s: %w", path, err)
	}
	if len(spec.Items) == 0 {
		return nil, fmt.Errorf("frames file %s holds no items", path)
	}
	return &spec, nil
}

// Replay is a View that simulates the host's virtualized conversation
// region: content loads lazily in chunks as the consumer scrolls back, with
// configurable loader latency and rate-limit stalls, and everything loaded
// stays rendered until collapsed, which is the memory behavior the
// reclaimer exists to fight.
//
// Not safe for concurrent use: the capture engine is the single owner of
// the view, matching the cooperative scheduling model.
type Replay struct {
	spec ReplaySpec

	loadedFrom int     // index of the oldest loaded item
	scrollTop  float64 // offset into the loaded extent

	pendingLoad int // cycles until the in-flight fetch lands; 0 = none
	fetchCount  int

	released  []bool
	collapsed []bool
	readTried []bool
}

// NewReplay builds a Replay positioned at the newest content, with the last
// chunk already loaded.
func NewReplay(spec ReplaySpec) *Replay {
	if spec.ViewportHeight <= 0 {
		spec.ViewportHeight = 800
	}
	if spec.RegionWidth <= 0 {
		spec.RegionWidth = 600
	}
	if spec.Chunk <= 0 {
		spec.Chunk = 30
	}
	if spec.MemoryCapacity <= 0 {
		spec.MemoryCapacity = 400
	}
	r := &Replay{
		spec:      spec,
		released:  make([]bool, len(spec.Items)),
		collapsed: make([]bool, len(spec.Items)),
		readTried: make([]bool, len(spec.Items)),
	}
	r.loadedFrom = len(spec.Items) - spec.Chunk
	if r.loadedFrom < 0 {
		r.loadedFrom = 0
	}
	r.scrollTop = r.maxScroll()
	return r
}

func (r *Replay) loadedExtent() float64 {
	var h float64
	for i := r.loadedFrom; i < len(r.spec.Items); i++ {
		h += r.spec.Items[i].Height
	}
	return h
}

func (r *Replay) maxScroll() float64 {
	m := r.loadedExtent() - r.spec.ViewportHeight
	if m < 0 {
		m = 0
	}
	return m
}

// Viewport implements View.
func (r *Replay) Viewport() (Rect, error) {
	return Rect{Top: 0, Left: 0, Width: r.spec.RegionWidth, Height: r.spec.ViewportHeight}, nil
}

// ScrollBy implements View. Scrolling near the top of the loaded extent
// requests the previous chunk from the loader.
func (r *Replay) ScrollBy(delta float64) error {
	r.scrollTop += delta
	if r.scrollTop < 0 {
		r.scrollTop = 0
	}
	if max := r.maxScroll(); r.scrollTop > max {
		r.scrollTop = max
	}

	if r.scrollTop < r.spec.ViewportHeight && r.loadedFrom > 0 && r.pendingLoad == 0 {
		r.fetchCount++
		latency := r.spec.LoadLatency
		if latency <= 0 {
			latency = 1
		}
		if r.spec.StallEvery > 0 && r.fetchCount%r.spec.StallEvery == 0 {
			latency += r.spec.StallExtra
		}
		r.pendingLoad = latency
	}
	return nil
}

// Metrics implements View. Each call advances the simulated loader by one
// cycle; a landing fetch prepends its chunk and shifts scrollTop so the
// visible content keeps its position, the way scroll anchoring does.
func (r *Replay) Metrics() (Metrics, error) {
	if r.pendingLoad > 0 {
		r.pendingLoad--
		if r.pendingLoad == 0 {
			newFrom := r.loadedFrom - r.spec.Chunk
			if newFrom < 0 {
				newFrom = 0
			}
			var added float64
			for i := newFrom; i < r.loadedFrom; i++ {
				added += r.spec.Items[i].Height
			}
			r.loadedFrom = newFrom
			r.scrollTop += added
		}
	}

	heavy := 0
	for i := r.loadedFrom; i < len(r.spec.Items); i++ {
		if len(r.spec.Items[i].Media) > 0 && !r.released[i] && !r.collapsed[i] {
			heavy++
		}
	}
	pct := heavy * 100 / r.spec.MemoryCapacity
	if pct > 100 {
		pct = 100
	}

	return Metrics{
		ScrollTop:     r.scrollTop,
		ScrollHeight:  r.loadedExtent(),
		MemoryUsedPct: pct,
	}, nil
}

// Items implements View. Everything loaded stays rendered; the host never
// unloads scrolled-past rows on its own.
func (r *Replay) Items() ([]Item, error) {
	items := make([]Item, 0, len(r.spec.Items)-r.loadedFrom)
	y := -r.scrollTop
	for i := r.loadedFrom; i < len(r.spec.Items); i++ {
		items = append(items, &replayItem{view: r, idx: i, top: y})
		y += r.spec.Items[i].Height
	}
	return items, nil
}

// Exhausted reports whether all recorded history has been loaded. Not part
// of the View contract; the CLI uses it for end-of-run reporting.
func (r *Replay) Exhausted() bool {
	return r.loadedFrom == 0 && r.pendingLoad == 0
}

// replayItem is an Item handle into a Replay. The top coordinate is fixed
// at enumeration time; handles are re-enumerated every sampling pass.
type replayItem struct {
	view *Replay
	idx  int
	top  float64
}

func (it *replayItem) ID() string {
	src := it.view.spec.Items[it.idx]
	if src.ID != "" {
		return src.ID
	}
	return fmt.Sprintf("row-%d", it.idx)
}

func (it *replayItem) Bounds() (Rect, error) {
	src := it.view.spec.Items[it.idx]
	rect := Rect{Top: it.top, Height: src.Height}
	if src.Side == "right" {
		rect.Left = it.view.spec.RegionWidth * 0.4
	}
	rect.Width = it.view.spec.RegionWidth * 0.6
	return rect, nil
}

func (it *replayItem) Text() (string, error) {
	if err := it.checkReadable(); err != nil {
		return "", err
	}
	if it.view.collapsed[it.idx] {
		return "", nil
	}
	return it.view.spec.Items[it.idx].Text, nil
}

func (it *replayItem) MediaRefs() ([]string, error) {
	if err := it.checkReadable(); err != nil {
		return nil, err
	}
	if it.view.collapsed[it.idx] || it.view.released[it.idx] {
		return nil, nil
	}
	return it.view.spec.Items[it.idx].Media, nil
}

func (it *replayItem) ReleaseMedia() error {
	it.view.released[it.idx] = true
	return nil
}

func (it *replayItem) Collapse() error {
	it.view.collapsed[it.idx] = true
	it.view.released[it.idx] = true
	return nil
}

func (it *replayItem) Collapsed() bool {
	return it.view.collapsed[it.idx]
}

// checkReadable makes a flaky item's first read fail, once.
func (it *replayItem) checkReadable() error {
	if it.view.spec.Items[it.idx].Flaky && !it.view.readTried[it.idx] {
		it.view.readTried[it.idx] = true
		return ErrUnreadable
	}
	return nil
}
