package streak

// State is a consecutive-day counter plus the day key that produced it.
// An empty LastDayKey means the streak has never been active.
type State struct {
	Count      int    `json:"count"`
	LastDayKey string `json:"lastDayKey,omitempty"`
}

// Valid reports whether Count is zero exactly when LastDayKey is absent.
func (s State) Valid() bool {
	if s.Count < 0 {
		return false
	}
	return (s.Count == 0) == (s.LastDayKey == "")
}

// Update applies one qualifying activity on todayKey to old.
//
// Repeated activity on the same day is idempotent. A missing or unparsable
// previous key starts fresh, a consecutive day increments, and any other gap
// (including a previous key after today) resets to 1.
func Update(old State, todayKey, tz string) State {
	if old.LastDayKey == todayKey {
		return old
	}

	delta, ok := DayDelta(old.LastDayKey, todayKey, tz)
	if !ok {
		return State{Count: max(old.Count, 1), LastDayKey: todayKey}
	}

	if delta == 1 {
		return State{Count: old.Count + 1, LastDayKey: todayKey}
	}
	return State{Count: 1, LastDayKey: todayKey}
}
