package naming

import (
	"strings"
	"time"
)

// The verbose dialect renders timestamps as compact UTC ISO-8601,
// e.g. "20020820T070000Z". Whole seconds only; the encoding is lossless
// for every timestamp in [0, 9999-12-31T23:59:59Z].
const longTimeLayout = "20060102T150405"

func formatLongTime(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(longTimeLayout) + "Z"
}

// parseLongTime converts a verbose timestamp back to epoch seconds. It
// reports false for anything that is not an exact, valid UTC timestamp.
func parseLongTime(s string) (int64, bool) {
	s, ok := strings.CutSuffix(s, "Z")
	if !ok {
		return 0, false
	}
	t, err := time.Parse(longTimeLayout, s)
	if err != nil {
		return 0, false
	}
	return t.Unix(), true
}

// formatTime renders a timestamp in the scheme's dialect.
func (s Scheme) formatTime(sec int64) string {
	if s.Short {
		return formatBase36(sec)
	}
	return formatLongTime(sec)
}

// parseTime converts a timestamp field back to epoch seconds, rejecting
// values outside the encodable range.
func (s Scheme) parseTime(field string) (int64, bool) {
	var sec int64
	var ok bool
	if s.Short {
		sec, ok = parseBase36(field)
	} else {
		sec, ok = parseLongTime(field)
	}
	if !ok || !validTime(sec) {
		return 0, false
	}
	return sec, true
}
