// Package valuation reconstructs the historical portfolio-value series
// from the two event ledgers and provider price history. All functions
// are pure transforms over their inputs; nothing here touches storage
// or the network.
package valuation

import "time"

type Granularity int

const (
	Daily Granularity = iota
	Hourly
)

// Histories younger than this use hourly buckets so short charts show
// a line instead of a couple of points.
const hourlyCutoff = 90 * 24 * time.Hour

func (g Granularity) String() string {
	if g == Hourly {
		return "hourly"
	}
	return "daily"
}

// Interval is the provider interval parameter for this granularity.
func (g Granularity) Interval() string {
	if g == Hourly {
		return "1h"
	}
	return "1d"
}

func (g Granularity) step() time.Duration {
	if g == Hourly {
		return time.Hour
	}
	return 24 * time.Hour
}

// Floor truncates t onto the bucket axis: midnight for daily buckets,
// the top of the hour for hourly ones. The zone is stripped first so
// provider timestamps and ledger timestamps land on the same axis.
func (g Granularity) Floor(t time.Time) time.Time {
	t = t.UTC()
	if g == Hourly {
		return t.Truncate(time.Hour)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatBucket renders a bucket timestamp the way the chart client
// expects: YYYY-MM-DD for daily buckets, YYYY-MM-DD HH:MM for hourly.
func (g Granularity) FormatBucket(t time.Time) string {
	if g == Hourly {
		return t.Format("2006-01-02 15:04")
	}
	return t.Format("2006-01-02")
}

// ChooseGranularity picks hourly buckets when the earliest trade is
// less than 90 days before now, daily otherwise.
func ChooseGranularity(earliest, now time.Time) Granularity {
	if now.Sub(earliest) < hourlyCutoff {
		return Hourly
	}
	return Daily
}

// BuildAxis returns the regularly spaced bucket timestamps from
// start's bucket up to and including now's bucket.
func BuildAxis(start, now time.Time, g Granularity) []time.Time {
	first := g.Floor(start)
	last := g.Floor(now)
	if last.Before(first) {
		return nil
	}

	axis := make([]time.Time, 0, last.Sub(first)/g.step()+1)
	for t := first; !t.After(last); t = t.Add(g.step()) {
		axis = append(axis, t)
	}
	return axis
}
