package valuation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/borsaapp/portfolio_backend/internal/model"
)

// Input carries everything Aggregate needs. Axis, Holdings and Prices
// come from BuildAxis/BuildHoldings/CompletePrices and may be empty
// when the trade ledger is empty.
type Input struct {
	CashEvents  []model.CashEvent
	TradeEvents []model.TradeEvent
	Axis        []time.Time
	Granularity Granularity
	Holdings    map[string][]decimal.Decimal
	Prices      map[string][]decimal.Decimal
	Now         time.Time
}

// Aggregate combines the cash ledger, the holdings and price series
// and the trade cash flows into the final value-vs-invested series.
// The output axis is the union of cash-event buckets and the trade
// axis, restricted to buckets not after now; future-dated wallet
// entries are excluded. Empty ledgers produce an empty series.
func Aggregate(in Input) []model.ChartPoint {
	g := in.Granularity

	cashDelta := make(map[time.Time]decimal.Decimal)
	for _, e := range in.CashEvents {
		b := g.Floor(e.Date)
		cashDelta[b] = cashDelta[b].Add(e.SignedAmount())
	}

	spendDelta := make(map[time.Time]decimal.Decimal)
	for _, t := range in.TradeEvents {
		b := g.Floor(t.Date)
		spendDelta[b] = spendDelta[b].Add(t.NetStockSpend())
	}

	// stock market value per axis bucket
	stockValue := make([]decimal.Decimal, len(in.Axis))
	for sym, qty := range in.Holdings {
		prices := in.Prices[sym]
		for i := range in.Axis {
			if i < len(qty) && i < len(prices) {
				stockValue[i] = stockValue[i].Add(qty[i].Mul(prices[i]))
			}
		}
	}

	buckets := unionBuckets(cashDelta, in.Axis, in.Now)
	if len(buckets) == 0 {
		return []model.ChartPoint{}
	}

	points := make([]model.ChartPoint, 0, len(buckets))
	cash := decimal.Zero
	spend := decimal.Zero
	axisPos := -1 // last axis bucket not after the current one
	for _, b := range buckets {
		cash = cash.Add(cashDelta[b])
		spend = spend.Add(spendDelta[b])

		for axisPos+1 < len(in.Axis) && !in.Axis[axisPos+1].After(b) {
			axisPos++
		}
		stock := decimal.Zero
		if axisPos >= 0 && axisPos < len(stockValue) {
			stock = stockValue[axisPos] // step function: holdings persist between buckets
		}

		points = append(points, model.ChartPoint{
			Date:     g.FormatBucket(b),
			Value:    cash.Add(stock).InexactFloat64(),
			Invested: cash.Add(spend).InexactFloat64(),
		})
	}

	return points
}

func unionBuckets(cashDelta map[time.Time]decimal.Decimal, axis []time.Time, now time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(cashDelta)+len(axis))
	buckets := make([]time.Time, 0, len(cashDelta)+len(axis))

	add := func(t time.Time) {
		if t.After(now) {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		buckets = append(buckets, t)
	}

	for t := range cashDelta {
		add(t)
	}
	for _, t := range axis {
		add(t)
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })
	return buckets
}
