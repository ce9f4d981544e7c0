package cli

import (
	"fmt"
	"time"
)

// FormatDuration formats a duration to human readable string
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	secs := float64(ms) / 1000
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	secs = secs - float64(mins*60)
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}

// FormatScore formats a similarity score against its threshold, e.g.
// "0.8123 >= 0.75".
func FormatScore(score, threshold float64) string {
	op := "<"
	if score >= threshold {
		op = ">="
	}
	return fmt.Sprintf("%.4f %s %.2f", score, op, threshold)
}

// FormatTime formats a timestamp in local time for tables.
func FormatTime(t time.Time) string {
	return t.Local().Format(time.DateTime)
}
