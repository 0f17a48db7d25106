package clean

import (
	"regexp"
	"strings"
)

// Rules captures the provider-specific noise patterns the cleaner applies.
// Kept behind a value the Cleaner receives so the pipeline logic itself
// stays provider-agnostic.
type Rules struct {
	// TimestampRe matches bare timestamp lines like "18 Dec 2025, 16:19",
	// "Today at 19:30" or "Mon 12:00 PM". Such a line becomes the rolling
	// timestamp label for subsequent rows.
	TimestampRe *regexp.Regexp
	// TimeOnlyRe matches bare clock fragments like "19:30".
	TimeOnlyRe *regexp.Regexp

	// BreakSentinel is the marker the view renders for an in-message line
	// break; normalized to "\n" before line splitting.
	BreakSentinel string

	// IgnoreExact lines are dropped outright.
	IgnoreExact map[string]struct{}
	// IgnorePrefixes and IgnoreContains are matched case-insensitively.
	IgnorePrefixes []string
	IgnoreContains []string
	// MetaNoise are service-notice fragments, also case-insensitive.
	MetaNoise []string

	// LeadingLabels are sender-label echoes stripped from the front of a
	// content line.
	LeadingLabels []string

	// NoiseMediaTokens mark media refs that are always chrome (emoji
	// assets and similar), regardless of frequency.
	NoiseMediaTokens []string
}

var (
	timestampRe = regexp.MustCompile(`(?i)^(?:(?:\d{1,2}\s+[A-Za-z]+)|(?:Today|Yesterday|[A-Za-z]{3,}))(?:\s+\d{4})?,?\s+(?:at\s+)?\d{1,2}:\d{2}(?:\s?[AP]M)?$`)
	timeOnlyRe  = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
)

// MessengerRules builds the rule set for Messenger-style markup, with the
// configured display names woven into the label patterns.
func MessengerRules(selfName, partnerName string) *Rules {
	ignoreExact := map[string]struct{}{
		"Enter":              {},
		"Seen":               {},
		"Sent":               {},
		"You sent":           {},
		"You":                {},
		"Media":              {},
		"Double tap to like": {},
	}
	ignoreExact[partnerName] = struct{}{}

	return &Rules{
		TimestampRe:   timestampRe,
		TimeOnlyRe:    timeOnlyRe,
		BreakSentinel: "Enter",
		IgnoreExact:   ignoreExact,
		IgnorePrefixes: []string{
			"You replied to",
			"You reacted to",
			"You unsent",
			"You removed",
			"You changed",
			partnerName + " replied to",
		},
		IgnoreContains: []string{
			"replied to you",
			"Original message:",
		},
		MetaNoise: []string{
			"Meta AI",
			"Use the Messenger mobile app to see it",
		},
		LeadingLabels: []string{
			"You sent",
			"You",
			partnerName,
		},
		NoiseMediaTokens: []string{
			"static.xx.fbcdn.net/images/emoji",
		},
	}
}

// isTimestamp reports whether line is a bare timestamp label.
func (r *Rules) isTimestamp(line string) bool {
	return r.TimestampRe.MatchString(line)
}

// stripLeadingLabel removes one leading sender-label echo from line.
func (r *Rules) stripLeadingLabel(line string) string {
	for _, label := range r.LeadingLabels {
		if strings.HasPrefix(line, label) {
			return strings.TrimSpace(line[len(label):])
		}
	}
	return line
}

// dropLine reports whether a (label-stripped, non-timestamp) line is
// structural noise.
func (r *Rules) dropLine(line string) bool {
	if _, ok := r.IgnoreExact[line]; ok {
		return true
	}
	lower := strings.ToLower(line)
	for _, p := range r.IgnorePrefixes {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	for _, tok := range r.IgnoreContains {
		if strings.Contains(lower, strings.ToLower(tok)) {
			return true
		}
	}
	for _, tok := range r.MetaNoise {
		if strings.Contains(lower, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}

// isNoiseMedia reports whether ref is always-chrome media.
func (r *Rules) isNoiseMedia(ref string) bool {
	for _, tok := range r.NoiseMediaTokens {
		if strings.Contains(ref, tok) {
			return true
		}
	}
	return false
}
