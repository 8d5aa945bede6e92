package engine

import (
	"math"
	"time"
)

// TimeLayout is the textual timestamp format used on the HTTP boundary.
// Internally everything is time.Time in UTC; the layout only exists for
// interoperability with non-engine consumers.
const TimeLayout = "2006-01-02 15:04:05"

// Cost computes the charge for an occupancy interval: every started hour
// bills as a full hour, so a ten-minute stay costs one hour and an hour
// plus one second costs two.  A zero-length interval bills zero.  The
// result is rounded to cents to keep ledger sums stable.
func Cost(start, end time.Time, hourlyRate float64) float64 {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	hours := int64(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	return math.Round(float64(hours)*hourlyRate*100) / 100
}

// ParseTimestamp parses a boundary timestamp in TimeLayout, interpreted as
// UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// FormatTimestamp renders a timestamp in TimeLayout in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
