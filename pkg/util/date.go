package util

import "time"

// DateLayout is the wire format for date-granularity ranges.
const DateLayout = "2006-01-02"

// FormatDate renders a timestamp as a date-granularity string.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// TruncateMinute drops sub-minute precision, the resolution of stored bars.
func TruncateMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}
