package reminder

import (
	"fmt"
	"time"
)

// Frequency limits how often a reminder is shown across navigations.
type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency validates s. The empty string is valid and means the
// reminder is limited only by the once-per-navigation rule.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(s); f {
	case "", FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return f, nil
	default:
		return "", fmt.Errorf("unknown frequency %q (want once, daily, weekly or monthly)", s)
	}
}

// ShouldShow reports whether a reminder last shown at lastShown may be shown
// again at now. A zero lastShown means it was never shown. Calendar
// comparisons use now's location.
func ShouldShow(lastShown time.Time, frequency Frequency, now time.Time) bool {
	if lastShown.IsZero() {
		return true
	}
	last := lastShown.In(now.Location())
	switch frequency {
	case FrequencyOnce:
		return false
	case FrequencyDaily:
		ly, lm, ld := last.Date()
		ny, nm, nd := now.Date()
		return ly != ny || lm != nm || ld != nd
	case FrequencyWeekly:
		return now.Sub(last) >= 7*24*time.Hour
	case FrequencyMonthly:
		return last.Year() != now.Year() || last.Month() != now.Month()
	default:
		return true
	}
}
