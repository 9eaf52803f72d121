package streak

import (
	"testing"
	"time"
)

func TestDayKey(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		tz   string
		want string
	}{
		{
			name: "UTC late evening",
			at:   time.Date(2025, 12, 1, 23, 59, 0, 0, time.UTC),
			tz:   "UTC",
			want: "2025-12-01",
		},
		{
			name: "Tokyo just after midnight",
			at:   time.Date(2025, 1, 1, 15, 30, 0, 0, time.UTC), // 00:30 JST on Jan 2
			tz:   "Asia/Tokyo",
			want: "2025-01-02",
		},
		{
			name: "New York still previous day",
			at:   time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC), // 22:00 EDT on Mar 9
			tz:   "America/New_York",
			want: "2025-03-09",
		},
		{
			name: "Unknown zone falls back to UTC",
			at:   time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC),
			tz:   "Mars/Olympus_Mons",
			want: "2025-06-30",
		},
		{
			name: "Empty zone falls back to UTC",
			at:   time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC),
			tz:   "",
			want: "2025-06-30",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayKey(tt.at, tt.tz); got != tt.want {
				t.Errorf("DayKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDayKey_SameCivilDayIsStable(t *testing.T) {
	tz := "Europe/Berlin"
	loc := Location(tz)
	morning := time.Date(2025, 7, 14, 0, 0, 1, 0, loc)
	night := time.Date(2025, 7, 14, 23, 59, 59, 0, loc)

	if DayKey(morning, tz) != DayKey(night, tz) {
		t.Errorf("DayKey(%v) = %q, DayKey(%v) = %q, want equal", morning, DayKey(morning, tz), night, DayKey(night, tz))
	}
}

func TestDayKey_RoundTrip(t *testing.T) {
	zones := []string{"UTC", "Asia/Tokyo", "America/New_York", "America/Sao_Paulo", "Pacific/Kiritimati", "Asia/Kolkata"}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, tz := range zones {
		t.Run(tz, func(t *testing.T) {
			// Every 7 hours over a year crosses every DST boundary in these zones.
			for at := start; at.Before(start.AddDate(1, 0, 0)); at = at.Add(7 * time.Hour) {
				key := DayKey(at, tz)
				parsed, ok := ParseDayKey(key, tz)
				if !ok {
					t.Fatalf("ParseDayKey(%q) failed", key)
				}
				if again := DayKey(parsed, tz); again != key {
					t.Fatalf("round trip of %v: %q -> %q", at, key, again)
				}
			}
		})
	}
}

func TestDayKey_ClampsYearRange(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"Past year 9999", time.Date(10000, 1, 1, 12, 0, 0, 0, time.UTC), MaxDayKey},
		{"Last representable day", time.Date(9999, 12, 31, 23, 0, 0, 0, time.UTC), "9999-12-31"},
		{"Before year zero", time.Date(-1, 6, 1, 0, 0, 0, 0, time.UTC), MinDayKey},
		{"Year zero", time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC), "0000-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := DayKey(tt.at, "UTC")
			if key != tt.want {
				t.Errorf("DayKey(%v) = %q, want %q", tt.at, key, tt.want)
			}
			if _, ok := ParseDayKey(key, "UTC"); !ok {
				t.Errorf("ParseDayKey(%q) ok = false", key)
			}
		})
	}
}

func TestParseDayKey_Malformed(t *testing.T) {
	keys := []string{"", "2025-1-5", "2025/12/01", "2025-02-30", "2025-13-01", "yesterday", "2025-12-01T00:00:00Z", " 2025-12-01"}

	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			if _, ok := ParseDayKey(key, "UTC"); ok {
				t.Errorf("ParseDayKey(%q) ok = true, want false", key)
			}
		})
	}
}

func TestParseDayKey_StartOfDayInZone(t *testing.T) {
	got, ok := ParseDayKey("2025-12-01", "Asia/Tokyo")
	if !ok {
		t.Fatal("ParseDayKey() ok = false")
	}
	want := time.Date(2025, 11, 30, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseDayKey() = %v, want %v", got, want)
	}
}

func TestDayDelta(t *testing.T) {
	tests := []struct {
		name   string
		from   string
		to     string
		tz     string
		want   int
		wantOK bool
	}{
		{"Same day", "2025-12-01", "2025-12-01", "UTC", 0, true},
		{"Consecutive", "2025-12-01", "2025-12-02", "UTC", 1, true},
		{"Month boundary", "2025-01-31", "2025-02-01", "UTC", 1, true},
		{"Leap day", "2024-02-28", "2024-02-29", "UTC", 1, true},
		{"Year boundary", "2024-12-31", "2025-01-01", "Asia/Tokyo", 1, true},
		{"Spring forward", "2025-03-08", "2025-03-09", "America/New_York", 1, true},
		{"Fall back", "2025-11-02", "2025-11-03", "America/New_York", 1, true},
		{"Gap", "2025-12-02", "2025-12-05", "UTC", 3, true},
		{"Backwards", "2025-12-05", "2025-12-02", "UTC", -3, true},
		{"Malformed from", "bogus", "2025-12-02", "UTC", 0, false},
		{"Malformed to", "2025-12-02", "", "UTC", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DayDelta(tt.from, tt.to, tt.tz)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("DayDelta(%q, %q) = (%d, %v), want (%d, %v)", tt.from, tt.to, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalizeTimezone(t *testing.T) {
	tests := map[string]string{
		"Asia/Tokyo": "Asia/Tokyo",
		"GMT+7":      DefaultTimezone,
		"Moon/Base":  DefaultTimezone,
		"":           DefaultTimezone,
	}
	for in, want := range tests {
		if got := NormalizeTimezone(in); got != want {
			t.Errorf("NormalizeTimezone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidTimezone(t *testing.T) {
	if !ValidTimezone("Europe/London") {
		t.Error("ValidTimezone(Europe/London) = false")
	}
	if ValidTimezone("Not/AZone") {
		t.Error("ValidTimezone(Not/AZone) = true")
	}
	if ValidTimezone("") {
		t.Error("ValidTimezone(\"\") = true")
	}
}
