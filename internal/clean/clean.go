// Package clean turns stitched rows into the final conversation: structural
// noise is dropped, consecutive same-sender rows merge, and only those
// duplicates attributable to capture overlap within one source batch are
// removed. A repeat of the same message across batches is someone actually
// sending it twice, and stays.
package clean

import (
	"strings"

	"github.com/minhvu/chatrake/internal/row"
)

// unknownTime is the rolling-timestamp placeholder for rows captured before
// any timestamp label was seen.
const unknownTime = "Unknown Time"

// Cleaner applies the grouping and dedup pipeline.
type Cleaner struct {
	Rules          *Rules
	NoiseThreshold int // media refs appearing this often corpus-wide are chrome
	SelfName       string
	PartnerName    string
}

// New builds a Cleaner with Messenger rules and the given display names.
func New(selfName, partnerName string, noiseThreshold int) *Cleaner {
	if noiseThreshold < 1 {
		noiseThreshold = 25
	}
	return &Cleaner{
		Rules:          MessengerRules(selfName, partnerName),
		NoiseThreshold: noiseThreshold,
		SelfName:       selfName,
		PartnerName:    partnerName,
	}
}

// Clean runs the full pipeline over stitched rows.
func (c *Cleaner) Clean(rows []row.StitchedRow) []row.CleanedMessage {
	noise := c.noiseRefs(rows)

	var cleaned []row.CleanedMessage
	currentTS := ""
	for _, r := range rows {
		var msg *row.CleanedMessage
		currentTS, msg = c.cleanEntry(r, currentTS, noise)
		if msg != nil {
			cleaned = append(cleaned, *msg)
		}
	}

	grouped := groupMessages(cleaned)
	grouped = dedupeConsecutive(grouped)
	grouped = c.dedupeArtifacts(grouped)
	return stripInternal(grouped)
}

// noiseRefs counts every attachment ref corpus-wide and returns the set of
// canonical refs frequent enough to be recurring chrome (avatars rendered
// on every row). This is a second avatar filter, independent of the
// single-item heuristic applied at extraction time: some chrome only
// reveals itself statistically.
func (c *Cleaner) noiseRefs(rows []row.StitchedRow) map[string]struct{} {
	counts := make(map[string]int)
	for _, r := range rows {
		for _, ref := range r.MediaURLs {
			if !keepableRef(ref) || c.Rules.isNoiseMedia(ref) {
				continue
			}
			counts[noiseKey(ref)]++
		}
	}
	noise := make(map[string]struct{})
	for ref, n := range counts {
		if n >= c.NoiseThreshold {
			noise[ref] = struct{}{}
		}
	}
	return noise
}

// cleanEntry filters one stitched row. Returns the updated rolling
// timestamp and the cleaned message, nil when nothing survives.
func (c *Cleaner) cleanEntry(r row.StitchedRow, currentTS string, noise map[string]struct{}) (string, *row.CleanedMessage) {
	content := strings.ReplaceAll(r.Content, c.Rules.BreakSentinel, "\n")

	var lines []string
	for _, rawLine := range strings.Split(content, "\n") {
		line := c.Rules.stripLeadingLabel(strings.TrimSpace(rawLine))
		if line == "" {
			continue
		}
		if c.Rules.isTimestamp(line) {
			currentTS = line
			continue
		}
		if c.Rules.TimeOnlyRe.MatchString(line) {
			continue
		}
		if c.Rules.dropLine(line) {
			continue
		}
		lines = append(lines, line)
	}

	attachments := c.filterAttachments(r.MediaURLs, noise)
	if len(lines) == 0 && len(attachments) == 0 {
		return currentTS, nil
	}

	ts := currentTS
	if ts == "" {
		ts = unknownTime
	}
	msg := &row.CleanedMessage{
		Timestamp:   ts,
		Sender:      c.displayName(r.Sender),
		Content:     strings.Join(lines, "\n"),
		Attachments: attachments,
		SourceBatch: r.Batch,
		SourcePart:  r.Part,
		SourceIndex: r.Index,
	}
	return currentTS, msg
}

// filterAttachments keeps resolvable, non-chrome refs, deduplicated within
// the row.
func (c *Cleaner) filterAttachments(refs []string, noise map[string]struct{}) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if !keepableRef(ref) || c.Rules.isNoiseMedia(ref) {
			continue
		}
		key := noiseKey(ref)
		if _, bad := noise[key]; bad {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// keepableRef rejects refs that cannot be resolved after capture.
func keepableRef(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "blob:") {
		return false
	}
	return strings.HasPrefix(ref, "http")
}

// noiseKey canonicalizes a ref for frequency counting: the query string is
// dropped so avatar variants aggregate.
func noiseKey(ref string) string {
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		return ref[:i]
	}
	return ref
}

func (c *Cleaner) displayName(sender string) string {
	switch sender {
	case row.SenderSelf:
		return c.SelfName
	case row.SenderOther:
		return c.PartnerName
	default:
		return sender
	}
}

// groupMessages merges consecutive same-sender messages: text concatenates,
// attachments union in order, and a real timestamp backfills an earlier
// "Unknown Time". Provenance of the first fragment is kept for dedup.
func groupMessages(msgs []row.CleanedMessage) []row.CleanedMessage {
	if len(msgs) == 0 {
		return nil
	}
	grouped := []row.CleanedMessage{msgs[0]}
	for _, msg := range msgs[1:] {
		last := &grouped[len(grouped)-1]
		if msg.Sender != last.Sender {
			grouped = append(grouped, msg)
			continue
		}
		if msg.Content != "" {
			if last.Content != "" {
				last.Content += "\n" + msg.Content
			} else {
				last.Content = msg.Content
			}
		}
		if len(msg.Attachments) > 0 {
			existing := make(map[string]struct{}, len(last.Attachments))
			for _, a := range last.Attachments {
				existing[a] = struct{}{}
			}
			for _, a := range msg.Attachments {
				if _, ok := existing[a]; !ok {
					last.Attachments = append(last.Attachments, a)
					existing[a] = struct{}{}
				}
			}
		}
		if last.Timestamp == unknownTime && msg.Timestamp != unknownTime {
			last.Timestamp = msg.Timestamp
		}
	}
	return grouped
}

// dedupeConsecutive removes exact back-to-back duplicates surviving the
// merge (possible when an overlap artifact lands between two senders).
func dedupeConsecutive(msgs []row.CleanedMessage) []row.CleanedMessage {
	if len(msgs) == 0 {
		return nil
	}
	out := []row.CleanedMessage{msgs[0]}
	for _, msg := range msgs[1:] {
		prev := out[len(out)-1]
		if msg.Sender == prev.Sender &&
			msg.Content == prev.Content &&
			sameSet(msg.Attachments, prev.Attachments) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, s := range a {
		set[s]++
	}
	for _, s := range b {
		set[s]--
		if set[s] < 0 {
			return false
		}
	}
	return true
}

// dedupeArtifacts removes duplicates attributable to scroll-overlap
// recapture: same timestamp label, sender and normalized content, from the
// same source batch. The same content appearing in a different batch or
// under a different timestamp is an intentional repeat and is preserved.
// Attachments of a dropped artifact merge into the surviving occurrence.
//
// Known approximation, preserved deliberately: a genuine repeat landing in
// one batch is collapsed, and an artifact spanning a batch boundary
// survives. The capture layer cannot distinguish these cases.
func (c *Cleaner) dedupeArtifacts(msgs []row.CleanedMessage) []row.CleanedMessage {
	type key struct {
		ts      string
		sender  string
		content string
	}
	// batch -> key -> surviving message index in out
	seen := make(map[string]map[key]int)

	var out []row.CleanedMessage
	for _, msg := range msgs {
		k := key{ts: msg.Timestamp, sender: msg.Sender, content: c.normText(msg.Content)}
		batch := msg.SourceBatch

		if seen[batch] == nil {
			seen[batch] = make(map[key]int)
		}
		if idx, dup := seen[batch][k]; dup {
			// Capture artifact: keep its attachments, drop the message.
			surv := &out[idx]
			existing := make(map[string]struct{}, len(surv.Attachments))
			for _, a := range surv.Attachments {
				existing[a] = struct{}{}
			}
			for _, a := range msg.Attachments {
				if _, ok := existing[a]; !ok {
					surv.Attachments = append(surv.Attachments, a)
					existing[a] = struct{}{}
				}
			}
			continue
		}
		seen[batch][k] = len(out)
		out = append(out, msg)
	}
	return out
}

// normText canonicalizes content for artifact comparison: embedded sender
// labels go, whitespace collapses.
func (c *Cleaner) normText(text string) string {
	text = strings.ReplaceAll(text, c.PartnerName, "")
	return strings.Join(strings.Fields(text), " ")
}

// stripInternal clears provenance before output.
func stripInternal(msgs []row.CleanedMessage) []row.CleanedMessage {
	for i := range msgs {
		msgs[i].SourceBatch = ""
		msgs[i].SourcePart = 0
		msgs[i].SourceIndex = 0
	}
	return msgs
}
