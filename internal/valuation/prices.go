package valuation

import (
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/borsaapp/portfolio_backend/internal/model"
)

// CompletePrices produces a gap-free price series per symbol over the
// axis. Resolution order per bucket: provider close, then the trade
// price recorded in that bucket, then forward fill, then the first
// trade's price for buckets before any data, then zero. Provider data
// wins where present; the trader's own price is the best substitute
// for buckets the provider lacks (new listing, provider latency).
//
// holdings is only consulted to flag the zero fallback: a zero price
// on a bucket with a non-zero position means the chart silently drops
// real value, which is worth a warning rather than a quiet default.
func CompletePrices(
	axis []time.Time,
	g Granularity,
	provider map[string][]model.PricePoint,
	trades []model.TradeEvent,
	holdings map[string][]decimal.Decimal,
) map[string][]decimal.Decimal {
	if len(axis) == 0 {
		return map[string][]decimal.Decimal{}
	}

	bucketIdx := make(map[time.Time]int, len(axis))
	for i, t := range axis {
		bucketIdx[t] = i
	}

	symbols := make(map[string]struct{})
	for _, tr := range trades {
		symbols[tr.Symbol] = struct{}{}
	}
	for sym := range provider {
		symbols[sym] = struct{}{}
	}

	// last trade price per (symbol, bucket) and first trade per symbol
	tradePrice := make(map[string]map[int]decimal.Decimal)
	firstTrade := make(map[string]model.TradeEvent)
	sorted := make([]model.TradeEvent, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	for _, tr := range sorted {
		i, ok := bucketIdx[g.Floor(tr.Date)]
		if !ok {
			continue
		}
		m, ok := tradePrice[tr.Symbol]
		if !ok {
			m = make(map[int]decimal.Decimal)
			tradePrice[tr.Symbol] = m
		}
		m[i] = tr.Price
		if _, ok := firstTrade[tr.Symbol]; !ok {
			firstTrade[tr.Symbol] = tr
		}
	}

	prices := make(map[string][]decimal.Decimal, len(symbols))
	for sym := range symbols {
		series := make([]decimal.Decimal, len(axis))
		resolved := make([]bool, len(axis))

		for _, p := range provider[sym] {
			if i, ok := bucketIdx[g.Floor(p.Date)]; ok {
				series[i] = p.Close
				resolved[i] = true
			}
		}

		for i, price := range tradePrice[sym] {
			if !resolved[i] {
				series[i] = price
				resolved[i] = true
			}
		}

		// forward fill, then backfill the leading gap from the first
		// trade price when the symbol has trades at all
		for i := 1; i < len(axis); i++ {
			if !resolved[i] && resolved[i-1] {
				series[i] = series[i-1]
				resolved[i] = true
			}
		}
		if ft, ok := firstTrade[sym]; ok {
			for i := range axis {
				if resolved[i] {
					break
				}
				series[i] = ft.Price
				resolved[i] = true
			}
		}

		for i := range axis {
			if !resolved[i] && holdingsNonZero(holdings[sym], i) {
				slog.Warn(
					"price unresolved for held position, defaulting to zero",
					slog.String("symbol", sym),
					slog.Time("bucket", axis[i]),
				)
			}
		}

		prices[sym] = series
	}

	return prices
}

func holdingsNonZero(series []decimal.Decimal, i int) bool {
	return i < len(series) && !series[i].IsZero()
}
