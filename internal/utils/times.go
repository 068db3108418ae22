package utils

import (
	"fmt"
	"time"

	"step-tracker/internal/daykey"
)

// GetTimezoneInfo describes the current time in loc next to server UTC time.
func GetTimezoneInfo(now time.Time, loc *time.Location) string {
	local := now.In(loc)
	name, offset := local.Zone()

	return fmt.Sprintf("🕐 Current time: %s %s (UTC%+d)\n   Server time: %s UTC",
		local.Format("15:04"), name, offset/3600, now.UTC().Format("15:04"))
}

// UntilMidnight formats the time left in the local day containing now.
func UntilMidnight(now time.Time, loc *time.Location) string {
	left := daykey.New(loc).NextMidnight(now).Sub(now).Truncate(time.Minute)
	return fmt.Sprintf("%dh %02dm", int(left.Hours()), int(left.Minutes())%60)
}
