// Package dedup decides new-vs-duplicate for captured rows using a bounded
// recency window of row signatures.
package dedup

import (
	"strings"

	"github.com/minhvu/chatrake/internal/row"
)

// Signature is a derived near-identity key for a row. Two rows with equal
// signatures are considered the same underlying row unless downstream batch
// context proves otherwise. Never serialized into output.
type Signature string

// Compute derives a signature from sender, the first textLen bytes of the
// raw text and the first mediaN media refs. Truncation keeps comparison
// cheap at an accepted cost: two distinct long messages sharing the same
// leading bytes and leading media are indistinguishable, and the later one
// will be classified duplicate.
func Compute(rec row.RowRecord, textLen, mediaN int) Signature {
	text := rec.RawText
	if textLen > 0 && len(text) > textLen {
		text = text[:textLen]
	}
	media := rec.MediaURLs
	if mediaN > 0 && len(media) > mediaN {
		media = media[:mediaN]
	}
	var b strings.Builder
	b.Grow(len(rec.Sender) + len(text) + 16)
	b.WriteString(rec.Sender)
	b.WriteByte('|')
	b.WriteString(text)
	for _, m := range media {
		b.WriteByte('|')
		b.WriteString(m)
	}
	return Signature(b.String())
}

// Window is a bounded, ordered set of signatures with FIFO eviction.
// Membership means "seen within the last capacity distinct captures"; the
// bound trades memory for a bounded re-capture risk when very old rows
// re-enter view. Not safe for concurrent use.
type Window struct {
	capacity int
	order    []Signature // insertion order, oldest first
	head     int         // index of the oldest entry once full
	count    int
	members  map[Signature]struct{}
}

// NewWindow returns a Window holding at most capacity signatures.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		capacity: capacity,
		order:    make([]Signature, capacity),
		members:  make(map[Signature]struct{}, capacity),
	}
}

// CheckAndRecord reports whether sig is new. A new signature is recorded,
// evicting exactly the oldest surviving one when the window is full. A
// duplicate leaves the window untouched: order reflects first capture, not
// most recent sighting.
func (w *Window) CheckAndRecord(sig Signature) bool {
	if _, seen := w.members[sig]; seen {
		return false
	}
	if w.count == w.capacity {
		oldest := w.order[w.head]
		delete(w.members, oldest)
		w.order[w.head] = sig
		w.head = (w.head + 1) % w.capacity
	} else {
		w.order[(w.head+w.count)%w.capacity] = sig
		w.count++
	}
	w.members[sig] = struct{}{}
	return true
}

// Contains reports membership without recording.
func (w *Window) Contains(sig Signature) bool {
	_, seen := w.members[sig]
	return seen
}

// Len returns the number of signatures currently held.
func (w *Window) Len() int {
	return len(w.members)
}

// Capacity returns the configured bound.
func (w *Window) Capacity() int {
	return w.capacity
}
