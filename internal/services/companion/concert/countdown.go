package concert

import (
	"time"

	"github.com/louisbranch/encore/internal/platform/i18n"
)

// DateLayout renders dates like "Tue, Oct 20, 07:30 PM".
const DateLayout = "Mon, Jan 2, 03:04 PM"

// Countdown describes the time until start as seen at now.
//
// A start at or before now is "Live now!". Beyond 24 whole hours the
// countdown is in whole days; otherwise it is "Starts in {h}h {m}m" with
// both parts floored.
func Countdown(start, now time.Time) string {
	delta := start.Sub(now)
	if delta <= 0 {
		return i18n.Sprintf(i18n.KeyCountdownLive)
	}
	hours := int64(delta / time.Hour)
	minutes := int64((delta % time.Hour) / time.Minute)
	if hours > 24 {
		return i18n.Sprintf(i18n.KeyCountdownDays, hours/24)
	}
	return i18n.Sprintf(i18n.KeyCountdownHours, hours, minutes)
}

// FormatDate renders t in the short en-US catalog style.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
