package schedule

import (
	"testing"
	"time"
)

func TestParseDailyOpenWindow(t *testing.T) {
	bh, err := ParseDaily("09:00", "18:00", "UTC")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tests := []struct {
		ts   string
		want bool
	}{
		{"2024-02-05T09:00:00Z", true},
		{"2024-02-05T12:30:00Z", true},
		{"2024-02-05T17:59:00Z", true},
		{"2024-02-05T18:00:00Z", false},
		{"2024-02-05T08:59:00Z", false},
		{"2024-02-05T03:00:00Z", false},
	}
	for _, tc := range tests {
		ts, _ := time.Parse(time.RFC3339, tc.ts)
		if got := bh.Open(ts); got != tc.want {
			t.Fatalf("Open(%s)=%v want %v", tc.ts, got, tc.want)
		}
	}
}

func TestOpenRespectsTimezone(t *testing.T) {
	bh, err := ParseDaily("09:00", "18:00", "America/Mexico_City")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// 16:00 UTC is 10:00 in Mexico City (UTC-6).
	ts, _ := time.Parse(time.RFC3339, "2024-02-05T16:00:00Z")
	if !bh.Open(ts) {
		t.Fatal("expected open at 10:00 local")
	}
	// 03:00 UTC is 21:00 local the previous day.
	ts, _ = time.Parse(time.RFC3339, "2024-02-05T03:00:00Z")
	if bh.Open(ts) {
		t.Fatal("expected closed at 21:00 local")
	}
}

func TestOpenDisabledWeekday(t *testing.T) {
	windows := map[time.Weekday]Window{
		time.Monday: {Enabled: true, StartMinutes: 9 * 60, EndMinutes: 18 * 60},
	}
	bh, err := New(windows, "UTC")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	monday, _ := time.Parse(time.RFC3339, "2024-02-05T10:00:00Z")
	if !bh.Open(monday) {
		t.Fatal("expected Monday open")
	}
	sunday, _ := time.Parse(time.RFC3339, "2024-02-04T10:00:00Z")
	if bh.Open(sunday) {
		t.Fatal("expected Sunday closed")
	}
}

func TestOpenWindowCrossingMidnight(t *testing.T) {
	windows := map[time.Weekday]Window{
		time.Friday:   {Enabled: true, StartMinutes: 22 * 60, EndMinutes: 2 * 60},
		time.Saturday: {Enabled: true, StartMinutes: 22 * 60, EndMinutes: 2 * 60},
	}
	bh, err := New(windows, "UTC")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ts, _ := time.Parse(time.RFC3339, "2024-02-09T23:00:00Z") // Friday
	if !bh.Open(ts) {
		t.Fatal("expected open at 23:00")
	}
	ts, _ = time.Parse(time.RFC3339, "2024-02-10T01:00:00Z") // Saturday early
	if !bh.Open(ts) {
		t.Fatal("expected open at 01:00")
	}
	ts, _ = time.Parse(time.RFC3339, "2024-02-10T03:00:00Z")
	if bh.Open(ts) {
		t.Fatal("expected closed at 03:00")
	}
}

func TestNilBusinessHoursAlwaysOpen(t *testing.T) {
	var bh *BusinessHours
	if !bh.Open(time.Now()) {
		t.Fatal("nil business hours should always be open")
	}
}

func TestParseDailyErrors(t *testing.T) {
	if _, err := ParseDaily("", "18:00", "UTC"); err == nil {
		t.Fatal("expected error for empty start")
	}
	if _, err := ParseDaily("9am", "18:00", "UTC"); err == nil {
		t.Fatal("expected error for malformed start")
	}
	if _, err := ParseDaily("09:00", "18:00", "Mars/Phobos"); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}
