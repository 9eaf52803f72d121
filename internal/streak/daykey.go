// Package streak holds the calendar rules behind Catchup streaks. Continuity is
// judged by civil day in the user's own timezone, never by elapsed 24h windows.
package streak

import (
	"sync"
	"time"
	_ "time/tzdata" // zones resolve the same on hosts without a zoneinfo database
)

// DayKeyLayout is the stored day-key format, e.g. "2025-12-01".
const DayKeyLayout = "2006-01-02"

// DefaultTimezone is used whenever a timezone identifier cannot be resolved.
const DefaultTimezone = "UTC"

var locations sync.Map // tz identifier -> *time.Location

// Location resolves an IANA timezone identifier. Empty or unknown identifiers
// resolve to DefaultTimezone.
func Location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	if loc, ok := locations.Load(tz); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	locations.Store(tz, loc)
	return loc
}

// ValidTimezone reports whether tz names a loadable IANA zone.
func ValidTimezone(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// NormalizeTimezone returns tz when it names a loadable zone and
// DefaultTimezone otherwise.
func NormalizeTimezone(tz string) string {
	if ValidTimezone(tz) {
		return tz
	}
	return DefaultTimezone
}

// StartOfDay returns midnight of t's civil day in tz.
func StartOfDay(t time.Time, tz string) time.Time {
	loc := Location(tz)
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Day keys carry a four digit year. Instants outside these bounds are clamped
// so every key DayKey returns parses again.
const (
	MinDayKey = "0000-01-01"
	MaxDayKey = "9999-12-31"
)

// DayKey returns the civil-day key of t in tz, clamped to
// [MinDayKey, MaxDayKey].
func DayKey(t time.Time, tz string) string {
	day := StartOfDay(t, tz)
	switch y := day.Year(); {
	case y > 9999:
		return MaxDayKey
	case y < 0:
		return MinDayKey
	}
	return day.Format(DayKeyLayout)
}

// ParseDayKey parses a day key into the start of that civil day in tz.
// ok is false for malformed keys.
func ParseDayKey(key, tz string) (time.Time, bool) {
	t, err := time.ParseInLocation(DayKeyLayout, key, Location(tz))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DayDelta returns the number of civil days from fromKey to toKey. It counts
// calendar days, so DST transitions never produce fractional results.
func DayDelta(fromKey, toKey, tz string) (int, bool) {
	from, ok := ParseDayKey(fromKey, tz)
	if !ok {
		return 0, false
	}
	to, ok := ParseDayKey(toKey, tz)
	if !ok {
		return 0, false
	}
	return civilDays(to) - civilDays(from), true
}

func civilDays(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
