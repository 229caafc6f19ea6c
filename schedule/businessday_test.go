package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestIsBusinessDay(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want bool
	}{
		{"monday", date(2025, time.March, 3, 12), true},
		{"friday", date(2025, time.March, 7, 12), true},
		{"saturday", date(2025, time.March, 8, 12), false},
		{"sunday", date(2025, time.March, 9, 12), false},
		{"new years day", date(2025, time.January, 1, 12), false},
		{"independence day", date(2025, time.July, 4, 12), false},
		{"veterans day", date(2025, time.November, 11, 12), false},
		{"christmas", date(2025, time.December, 25, 12), false},
		{"christmas any year", date(2031, time.December, 25, 12), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBusinessDay(tt.in))
		})
	}
}

func TestAddBusinessDays(t *testing.T) {
	monday := date(2025, time.March, 3, 9)

	// n=0 returns the start unchanged.
	assert.Equal(t, monday, AddBusinessDays(monday, 0))

	// Monday + 2 business days = Wednesday.
	assert.Equal(t, date(2025, time.March, 5, 9), AddBusinessDays(monday, 2))

	// Friday + 1 business day skips the weekend.
	friday := date(2025, time.March, 7, 9)
	assert.Equal(t, date(2025, time.March, 10, 9), AddBusinessDays(friday, 1))

	// Walking over Christmas: Dec 24 2025 is a Wednesday, Dec 25 a holiday.
	christmasEve := date(2025, time.December, 24, 9)
	assert.Equal(t, date(2025, time.December, 26, 9), AddBusinessDays(christmasEve, 1))
}

func TestAddBusinessDays_Monotonic(t *testing.T) {
	start := date(2025, time.June, 30, 9)
	prev := start
	for n := 0; n <= 30; n++ {
		got := AddBusinessDays(start, n)
		assert.False(t, got.Before(prev), "n=%d went backwards", n)
		if n > 0 {
			assert.True(t, IsBusinessDay(got), "n=%d landed on a non-business day", n)
		}
		prev = got
	}
}

func TestNextGoodSendTime(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"inside window unchanged", date(2025, time.March, 3, 10), date(2025, time.March, 3, 10)},
		{"window start unchanged", date(2025, time.March, 3, 8), date(2025, time.March, 3, 8)},
		{"before window snaps to 09:00", date(2025, time.March, 3, 6), date(2025, time.March, 3, 9)},
		{"after window moves to next day", date(2025, time.March, 3, 19), date(2025, time.March, 4, 9)},
		{"friday evening moves to monday", date(2025, time.March, 7, 20), date(2025, time.March, 10, 9)},
		{"saturday moves to monday", date(2025, time.March, 8, 10), date(2025, time.March, 10, 9)},
		{"holiday moves to next business day", date(2025, time.July, 4, 10), date(2025, time.July, 7, 9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextGoodSendTime(tt.in))
		})
	}
}
