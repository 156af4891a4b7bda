package lineup

import (
	"fmt"
	"strings"
	"time"
)

// Layouts accepted for slot times, tried in order. Clashfinder exports use
// slash-separated dates with seconds; hand-maintained sheets tend to drop
// the seconds.
var slotTimeLayouts = []string{
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// ParseSlotTime parses a raw schedule timestamp as local wall-clock time in
// loc and returns the UTC instant. Sources that already carry an offset
// (RFC3339) keep it.
func ParseSlotTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range slotTimeLayouts {
		var t time.Time
		var err error
		if layout == time.RFC3339 {
			t, err = time.Parse(layout, raw)
		} else {
			t, err = time.ParseInLocation(layout, raw, loc)
		}
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}

// NormalizeRange rolls an end that falls at or before its start forward by
// one day. Overnight sets ("23:30–00:30") are exported this way by sources
// that only carry wall-clock times.
func NormalizeRange(start, end time.Time) (time.Time, time.Time) {
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return start, end
}
