package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTodayTruncatesToDate(t *testing.T) {
	c := NewFakeClock(time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Today(c))

	c.Advance(2 * time.Minute)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), Today(c))
}

func TestAddDaysCrossesMonth(t *testing.T) {
	start := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), AddDays(start, 30))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 29, DaysBetween(a, b))
	assert.Equal(t, -29, DaysBetween(b, a))
}
