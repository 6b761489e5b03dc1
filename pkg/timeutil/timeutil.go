// Package timeutil provides calendar-day helpers bound to a configurable timezone.
// Streaks, "today's lesson" and daily statistics are all computed in one location,
// so every caller goes through a Clock instead of calling time.Now directly.
package timeutil

import (
	"fmt"
	"time"
)

// Common date formats.
const (
	// FormatDate is YYYY-MM-DD.
	FormatDate = "2006-01-02"
	// FormatDateTime is used in bot messages.
	FormatDateTime = "2006-01-02 15:04"
)

// Clock is the source of "now" for domain code.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock creates a clock for the given location (UTC when nil).
func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return &SystemClock{loc: loc}
}

// LoadClock resolves an IANA zone name, e.g. "America/Mexico_City".
func LoadClock(name string) (*SystemClock, error) {
	if name == "" || name == "UTC" {
		return NewSystemClock(time.UTC), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return NewSystemClock(loc), nil
}

// Now returns the current time in the clock's location.
func (c *SystemClock) Now() time.Time { return time.Now().In(c.loc) }

// Location returns the clock's location.
func (c *SystemClock) Location() *time.Location { return c.loc }

// FixedClock always returns the same instant. Used in tests and replays.
type FixedClock struct {
	T   time.Time
	Loc *time.Location
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T.In(c.Location()) }

// Location returns the configured location or UTC.
func (c FixedClock) Location() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last nanosecond of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// IsSameDay reports whether both instants fall on the same calendar day in loc.
func IsSameDay(a, b time.Time, loc *time.Location) bool {
	return StartOfDay(a, loc).Equal(StartOfDay(b, loc))
}

// DaysBetween returns the signed number of calendar days from `from` to `to`.
// Negative when `to` is earlier (clock skew).
func DaysBetween(from, to time.Time, loc *time.Location) int {
	a := StartOfDay(from, loc)
	b := StartOfDay(to, loc)
	// AddDate-based midnight keeps DST days at 23/25h, so round instead of truncating.
	hours := b.Sub(a).Hours()
	if hours >= 0 {
		return int((hours + 12) / 24)
	}
	return -int((-hours + 12) / 24)
}

// DaysSince returns whole days elapsed between t and now (not calendar days).
func DaysSince(t, now time.Time) int {
	if now.Before(t) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}

// FormatDateIn formats t as YYYY-MM-DD in loc.
func FormatDateIn(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(FormatDate)
}
