package summary

import (
	"strconv"
	"time"
)

// FormatTimestamp renders a unix millisecond timestamp relative to now, in
// now's location. Timestamps in the future count as just now.
func FormatTimestamp(ts int64, now time.Time) string {
	t := time.UnixMilli(ts).In(now.Location())
	d := now.Sub(t)

	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return strconv.Itoa(int(d/time.Minute)) + "m ago"
	case d < 24*time.Hour:
		return t.Format("3:04 PM")
	case d < 7*24*time.Hour:
		return t.Format("Mon 3:04 PM")
	default:
		return t.Format("Jan 2, 3:04 PM")
	}
}
