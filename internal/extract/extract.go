// Package extract turns a rendered item into a RowRecord. Extraction is
// pure: it reads the item, never mutates it.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/minhvu/chatrake/internal/hostview"
	"github.com/minhvu/chatrake/internal/row"
)

// SenderRule infers the sender from an item's text, overriding the spatial
// heuristic when the provider leaves explicit cues in the markup. Swappable
// so the pipeline stays provider-agnostic.
type SenderRule interface {
	// FromText returns the sender and true when the text carries an
	// explicit cue, or false when the spatial heuristic should decide.
	FromText(text string) (string, bool)
}

// CueRule matches configurable leading phrases, e.g. "You sent" for self.
type CueRule struct {
	SelfCues  []string
	OtherCues []string
}

// DefaultCues covers the Messenger-style labels the source view leaves in
// row text.
func DefaultCues() *CueRule {
	return &CueRule{
		SelfCues:  []string{"You sent", "You:", "sent by me"},
		OtherCues: []string{"sent by other"},
	}
}

// FromText implements SenderRule.
func (c *CueRule) FromText(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	for _, cue := range c.SelfCues {
		if strings.HasPrefix(trimmed, cue) {
			return row.SenderSelf, true
		}
	}
	for _, cue := range c.OtherCues {
		if strings.HasPrefix(trimmed, cue) {
			return row.SenderOther, true
		}
	}
	return "", false
}

// avatarSizeToken matches fixed-size thumbnail path segments like
// "s64x64", "p32x32" or a bare "40x40" between path separators.
var avatarSizeToken = regexp.MustCompile(`(?:^|[/_.])[sp]?\d{2,3}x\d{2,3}(?:[/_.]|$)`)

// avatarPathTokens are substrings that mark profile chrome rather than
// message media.
var avatarPathTokens = []string{"avatar", "profile_pic", "profile-pic"}

// Extractor produces RowRecords from visible items.
type Extractor struct {
	Senders SenderRule
	// Now returns the capture timestamp; overridable in tests.
	Now func() time.Time
}

// New returns an Extractor with the default cue rules.
func New() *Extractor {
	return &Extractor{Senders: DefaultCues(), Now: time.Now}
}

// Row extracts a RowRecord from item. The second return is false when the
// item is rejected because its leading edge lies outside the visible band —
// requiring the top edge inside the band means a tall item that never fully
// fits is still captured once its top scrolls into view. A returned error
// is transient (hostview.ErrUnreadable): skip this cycle, retry next.
func (e *Extractor) Row(item hostview.Item, viewport hostview.Rect) (row.RowRecord, bool, error) {
	bounds, err := item.Bounds()
	if err != nil {
		return row.RowRecord{}, false, err
	}
	if bounds.Top < viewport.Top || bounds.Top >= viewport.Bottom() {
		return row.RowRecord{}, false, nil
	}

	text, err := item.Text()
	if err != nil {
		return row.RowRecord{}, false, err
	}
	refs, err := item.MediaRefs()
	if err != nil {
		return row.RowRecord{}, false, err
	}

	sender, ok := e.Senders.FromText(text)
	if !ok {
		// Spatial heuristic: rows on the right half of the region are the
		// account owner's.
		if bounds.MidX() > viewport.MidX() {
			sender = row.SenderSelf
		} else {
			sender = row.SenderOther
		}
	}

	rec := row.RowRecord{
		Y:         bounds.Top,
		Sender:    sender,
		RawText:   text,
		MediaURLs: filterMediaRefs(refs),
		TS:        e.Now().UnixMilli(),
	}
	return rec, true, nil
}

// filterMediaRefs drops refs that cannot or should not survive capture:
// session-transient handles are unresolvable once the session ends, and
// avatar-shaped refs are UI chrome, not message media.
func filterMediaRefs(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if strings.HasPrefix(ref, "blob:") || strings.HasPrefix(ref, "data:") {
			continue
		}
		if looksLikeAvatar(ref) {
			continue
		}
		out = append(out, ref)
	}
	return out
}

func looksLikeAvatar(ref string) bool {
	lower := strings.ToLower(ref)
	for _, token := range avatarPathTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	// Only the path part; size-like query params are common on real media.
	path := lower
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return avatarSizeToken.MatchString(path)
}
