package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestChooseGranularity(t *testing.T) {
	now := date(2024, time.June, 1)

	assert.Equal(t, Hourly, ChooseGranularity(now.AddDate(0, 0, -10), now))
	assert.Equal(t, Hourly, ChooseGranularity(now.Add(-89*24*time.Hour), now))
	assert.Equal(t, Daily, ChooseGranularity(now.Add(-90*24*time.Hour), now))
	assert.Equal(t, Daily, ChooseGranularity(now.AddDate(-2, 0, 0), now))

	// no trades: earliest defaults to now, which lands on hourly
	assert.Equal(t, Hourly, ChooseGranularity(now, now))
}

func TestFloor(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 14, 37, 12, 0, time.UTC)

	assert.Equal(t, date(2024, time.March, 5), Daily.Floor(ts))
	assert.Equal(t, time.Date(2024, time.March, 5, 14, 0, 0, 0, time.UTC), Hourly.Floor(ts))
}

func TestFloorStripsZone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	ts := time.Date(2024, time.March, 5, 1, 30, 0, 0, loc) // 22:30 prior day UTC

	assert.Equal(t, date(2024, time.March, 4), Daily.Floor(ts))
	assert.Equal(t, time.Date(2024, time.March, 4, 22, 0, 0, 0, time.UTC), Hourly.Floor(ts))
}

func TestBuildAxisDaily(t *testing.T) {
	axis := BuildAxis(date(2024, time.January, 1), date(2024, time.January, 5), Daily)

	assert.Len(t, axis, 5)
	assert.Equal(t, date(2024, time.January, 1), axis[0])
	assert.Equal(t, date(2024, time.January, 5), axis[4])
}

func TestBuildAxisHourly(t *testing.T) {
	start := time.Date(2024, time.January, 1, 9, 45, 0, 0, time.UTC)
	end := time.Date(2024, time.January, 1, 12, 10, 0, 0, time.UTC)

	axis := BuildAxis(start, end, Hourly)

	assert.Len(t, axis, 4) // 09:00 .. 12:00
	assert.Equal(t, time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC), axis[0])
	assert.Equal(t, time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC), axis[3])
}

func TestBuildAxisStartAfterEnd(t *testing.T) {
	assert.Empty(t, BuildAxis(date(2024, time.February, 1), date(2024, time.January, 1), Daily))
}

func TestFormatBucket(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 14, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-03-05", Daily.FormatBucket(ts))
	assert.Equal(t, "2024-03-05 14:00", Hourly.FormatBucket(ts))
}
