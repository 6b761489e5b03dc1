package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysBetween(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*60*60)
	base := time.Date(2026, 3, 10, 23, 30, 0, 0, loc)

	tests := []struct {
		name string
		to   time.Time
		want int
	}{
		{"same day", base.Add(10 * time.Minute), 0},
		{"next day just after midnight", base.Add(40 * time.Minute), 1},
		{"three days", base.AddDate(0, 0, 3), 3},
		{"skew backwards", base.AddDate(0, 0, -1), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(base, tt.to, loc))
		})
	}
}

func TestDaysBetween_UsesLocation(t *testing.T) {
	// 23:00 UTC and 01:00 UTC next day are the same day in UTC-6.
	a := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysBetween(a, b, time.UTC))
	assert.Equal(t, 0, DaysBetween(a, b, time.FixedZone("UTC-6", -6*60*60)))
}

func TestStartEndOfDay(t *testing.T) {
	ts := time.Date(2026, 5, 2, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), StartOfDay(ts, time.UTC))
	assert.True(t, EndOfDay(ts, time.UTC).Before(time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)))
	assert.True(t, IsSameDay(StartOfDay(ts, time.UTC), EndOfDay(ts, time.UTC), time.UTC))
}

func TestDaysSince(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, DaysSince(now.Add(-73*time.Hour), now))
	assert.Equal(t, 0, DaysSince(now.Add(time.Hour), now))
}
