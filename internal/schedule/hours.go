// Package schedule models the per-instance business-hours windows used to
// gate automatic replies.
package schedule

import (
	"fmt"
	"time"
)

// Window is one weekday's reply window in minutes from midnight, local time.
type Window struct {
	Enabled      bool
	StartMinutes int
	EndMinutes   int
}

// BusinessHours holds one window per weekday plus the instance timezone.
type BusinessHours struct {
	windows  [7]Window
	location *time.Location
}

// New builds a BusinessHours from per-weekday windows keyed by time.Weekday.
// Weekdays absent from the map are treated as closed.
func New(windows map[time.Weekday]Window, tz string) (*BusinessHours, error) {
	loc := time.UTC
	if tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("schedule: load timezone: %w", err)
		}
	}
	bh := &BusinessHours{location: loc}
	for day, w := range windows {
		if day < time.Sunday || day > time.Saturday {
			return nil, fmt.Errorf("schedule: invalid weekday %d", day)
		}
		bh.windows[day] = w
	}
	return bh, nil
}

// ParseDaily builds a BusinessHours with the same HH:MM window enabled every
// day of the week. It covers the common single-schedule tenant setup.
func ParseDaily(start, end, tz string) (*BusinessHours, error) {
	startMin, err := ParseClock(start)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse start: %w", err)
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse end: %w", err)
	}
	windows := make(map[time.Weekday]Window, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		windows[day] = Window{Enabled: true, StartMinutes: startMin, EndMinutes: endMin}
	}
	return New(windows, tz)
}

// ParseClock converts an HH:MM string into minutes from midnight.
func ParseClock(v string) (int, error) {
	if v == "" {
		return 0, fmt.Errorf("empty clock")
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Open reports whether the given moment falls inside the scheduled window
// for its weekday in the instance's timezone. A nil receiver means no
// business hours are configured and replies are always allowed.
func (b *BusinessHours) Open(now time.Time) bool {
	if b == nil {
		return true
	}
	local := now.In(b.location)
	w := b.windows[local.Weekday()]
	if !w.Enabled {
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	if w.StartMinutes == w.EndMinutes {
		return false
	}
	if w.StartMinutes < w.EndMinutes {
		return minutes >= w.StartMinutes && minutes < w.EndMinutes
	}
	// Window crosses midnight.
	return minutes >= w.StartMinutes || minutes < w.EndMinutes
}

// Location returns the configured timezone, defaulting to UTC.
func (b *BusinessHours) Location() *time.Location {
	if b == nil || b.location == nil {
		return time.UTC
	}
	return b.location
}
