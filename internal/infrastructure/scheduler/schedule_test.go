package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(15 * time.Minute)
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(15*time.Minute), s.Next(base))
	assert.Equal(t, "@every 15m0s", s.String())
}

func TestParseCron_Next(t *testing.T) {
	mexico, err := time.LoadLocation("America/Mexico_City")
	require.NoError(t, err)

	tests := []struct {
		expr  string
		after time.Time
		want  time.Time
	}{
		{
			expr:  "10 0 * * *",
			after: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 5, 5, 0, 10, 0, 0, time.UTC),
		},
		{
			expr:  "*/15 * * * *",
			after: time.Date(2026, 5, 4, 10, 7, 30, 0, time.UTC),
			want:  time.Date(2026, 5, 4, 10, 15, 0, 0, time.UTC),
		},
		{
			// строго после: ровно 10:15 даёт 10:30
			expr:  "*/15 * * * *",
			after: time.Date(2026, 5, 4, 10, 15, 0, 0, time.UTC),
			want:  time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
		},
		{
			expr:  "0 9 * * 1-5",
			after: time.Date(2026, 5, 9, 12, 0, 0, 0, time.UTC), // суббота
			want:  time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			expr:  "0 8,20 1 * *",
			after: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC),
		},
		{
			expr:  "10 0 * * *",
			after: time.Date(2026, 5, 4, 23, 0, 0, 0, mexico),
			want:  time.Date(2026, 5, 5, 0, 10, 0, 0, mexico),
		},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			cs, err := ParseCron(tt.expr)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(cs.Next(tt.after)), "got %s", cs.Next(tt.after))
		})
	}
}

func TestParseCron_Invalid(t *testing.T) {
	for _, expr := range []string{
		"",
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"*/0 * * * *",
		"a * * * *",
		"5-1 * * * *",
		"* * * * 7",
	} {
		_, err := ParseCron(expr)
		assert.Error(t, err, expr)
	}
}

func TestCron_NeverMatches(t *testing.T) {
	cs := MustParseCron("0 0 31 2 *")
	assert.True(t, cs.Next(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).IsZero())
	assert.Equal(t, "0 0 31 2 *", cs.String())
}

func TestMustParseCron_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParseCron("bad") })
}
