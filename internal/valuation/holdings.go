package valuation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/borsaapp/portfolio_backend/internal/model"
)

// BuildHoldings turns the trade ledger into a cumulative quantity
// series per symbol over the bucket axis. Buckets without a trade
// inherit the prior bucket's quantity; before a symbol's first trade
// the quantity is zero. Trades of the same symbol in the same bucket
// net algebraically before accumulation, so ordering within a bucket
// does not matter. Oversells are not rejected: holdings may go
// negative, which the chart surfaces as-is.
func BuildHoldings(trades []model.TradeEvent, axis []time.Time, g Granularity) map[string][]decimal.Decimal {
	if len(axis) == 0 {
		return map[string][]decimal.Decimal{}
	}

	bucketIdx := make(map[time.Time]int, len(axis))
	for i, t := range axis {
		bucketIdx[t] = i
	}

	// signed quantity deltas per (symbol, bucket)
	deltas := make(map[string][]decimal.Decimal)
	for _, tr := range trades {
		i, ok := bucketIdx[g.Floor(tr.Date)]
		if !ok {
			continue // outside the axis (e.g. future-dated)
		}
		d, ok := deltas[tr.Symbol]
		if !ok {
			d = make([]decimal.Decimal, len(axis))
			deltas[tr.Symbol] = d
		}
		d[i] = d[i].Add(tr.SignedQuantity())
	}

	holdings := make(map[string][]decimal.Decimal, len(deltas))
	for sym, d := range deltas {
		series := make([]decimal.Decimal, len(axis))
		running := decimal.Zero
		for i := range axis {
			running = running.Add(d[i])
			series[i] = running
		}
		holdings[sym] = series
	}

	return holdings
}
