// Package dates turns loosely formatted date-range text into a contiguous
// sequence of calendar days.
package dates

import (
	"regexp"
	"strings"
	"time"
)

// ISOLayout is the calendar date format used throughout the planner.
const ISOLayout = "2006-01-02"

// MaxDays bounds the length of a resolved sequence.
const MaxDays = 366

var isoDateRe = regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}`)

// separators are tried in order when no ISO date is found in the text.
var separators = []string{"~", "～", " to ", " until ", "—", "–", "至", "到", "-"}

// fallbackLayouts are accepted on each side of a separator.
var fallbackLayouts = []string{"2006-1-2", "2006/1/2", "2006.1.2", "20060102"}

// Sequence is an ascending, gap-free list of UTC midnight dates.
type Sequence []time.Time

// Strings renders the sequence as ISO dates.
func (s Sequence) Strings() []string {
	out := make([]string, len(s))
	for i, d := range s {
		out[i] = d.Format(ISOLayout)
	}
	return out
}

// Start returns the first date.
func (s Sequence) Start() time.Time { return s[0] }

// End returns the last date.
func (s Sequence) End() time.Time { return s[len(s)-1] }

// Resolve parses text into a date sequence. It never fails: when nothing can
// be parsed the result is a single day anchored on now, and degraded is true.
// A span longer than MaxDays is truncated and also reported as degraded.
func Resolve(text string, now time.Time) (seq Sequence, degraded bool) {
	start, end, ok := scanISO(text)
	if !ok {
		start, end, ok = splitOnSeparator(text)
	}
	if !ok {
		today := midnight(now)
		return Sequence{today}, true
	}

	if end.Before(start) {
		start, end = end, start
	}

	days := int(end.Sub(start).Hours()/24) + 1
	if days > MaxDays {
		days = MaxDays
		degraded = true
	}

	seq = make(Sequence, days)
	for i := range seq {
		seq[i] = start.AddDate(0, 0, i)
	}
	return seq, degraded
}

// scanISO takes the first two ISO-looking tokens of text. Tokens that are not
// real dates (2025-13-40) are skipped.
func scanISO(text string) (time.Time, time.Time, bool) {
	tokens := isoDateRe.FindAllString(text, 2)

	var parsed []time.Time
	for _, tok := range tokens {
		if d, err := time.Parse("2006-1-2", tok); err == nil {
			parsed = append(parsed, d)
		}
	}

	switch len(parsed) {
	case 0:
		return time.Time{}, time.Time{}, false
	case 1:
		return parsed[0], parsed[0], true
	default:
		return parsed[0], parsed[1], true
	}
}

func splitOnSeparator(text string) (time.Time, time.Time, bool) {
	for _, sep := range separators {
		if !strings.Contains(text, sep) {
			continue
		}

		var parts []string
		for _, p := range strings.Split(text, sep) {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}

		start, ok := parseLoose(parts[0])
		if !ok {
			continue
		}
		if len(parts) == 1 {
			return start, start, true
		}
		end, ok := parseLoose(parts[1])
		if !ok {
			continue
		}
		return start, end, true
	}

	if d, ok := parseLoose(strings.TrimSpace(text)); ok {
		return d, d, true
	}
	return time.Time{}, time.Time{}, false
}

func parseLoose(s string) (time.Time, bool) {
	for _, layout := range fallbackLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
