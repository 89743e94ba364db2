package reconciler

import (
	"fmt"
	"time"
)

const timestampLayout = "Jan 2, 2006, 3:04:05 PM"

// FormatTimestamp renders ts for humans in loc. The zero time renders as "".
func FormatTimestamp(ts time.Time, loc *time.Location) string {
	if ts.IsZero() || ts.Year() <= 1 {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return ts.In(loc).Format(timestampLayout)
}

func tooltip(executionID string, started time.Time, loc *time.Location) string {
	return fmt.Sprintf("ID: %s\nStarted: %s", executionID, FormatTimestamp(started, loc))
}
