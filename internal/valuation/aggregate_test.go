package valuation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borsaapp/portfolio_backend/internal/model"
)

func cashEvent(kind model.CashEventKind, day int, amount float64) model.CashEvent {
	return model.CashEvent{Kind: kind, Amount: decimal.NewFromFloat(amount), Date: date(2024, time.January, day)}
}

func buildInput(now time.Time, cash []model.CashEvent, trades []model.TradeEvent, provider map[string][]model.PricePoint) Input {
	g := Daily
	var axis []time.Time
	if len(trades) > 0 {
		earliest := trades[0].Date
		for _, tr := range trades[1:] {
			if tr.Date.Before(earliest) {
				earliest = tr.Date
			}
		}
		axis = BuildAxis(earliest, now, g)
	}
	holdings := BuildHoldings(trades, axis, g)
	prices := CompletePrices(axis, g, provider, trades, holdings)
	return Input{
		CashEvents:  cash,
		TradeEvents: trades,
		Axis:        axis,
		Granularity: g,
		Holdings:    holdings,
		Prices:      prices,
		Now:         now,
	}
}

// The canonical walkthrough: deposit 1000 on day 1, buy 10 X at 50
// (commission 1) on day 2, provider close 55 on day 3.
func TestAggregateDepositBuyProviderClose(t *testing.T) {
	now := date(2024, time.January, 3)
	cash := []model.CashEvent{
		cashEvent(model.CashDeposit, 1, 1000),
		cashEvent(model.CashStockBuy, 2, 501),
	}
	tr := trade("X", 2, model.TradeBuy, 10, 50)
	tr.TotalCommission = decimal.NewFromInt(1)
	provider := map[string][]model.PricePoint{"X": {pricePoint(3, 55)}}

	points := Aggregate(buildInput(now, cash, []model.TradeEvent{tr}, provider))

	require.Len(t, points, 3)

	assert.Equal(t, "2024-01-01", points[0].Date)
	assert.InDelta(t, 1000, points[0].Value, 1e-9)
	assert.InDelta(t, 1000, points[0].Invested, 1e-9)

	// buy day: cash 499, stock 10x50 valued at the trade price
	assert.Equal(t, "2024-01-02", points[1].Date)
	assert.InDelta(t, 999, points[1].Value, 1e-9)
	assert.InDelta(t, 1000, points[1].Invested, 1e-9)

	// provider day: cash 499 + stock 550
	assert.Equal(t, "2024-01-03", points[2].Date)
	assert.InDelta(t, 1049, points[2].Value, 1e-9)
	assert.InDelta(t, 1000, points[2].Invested, 1e-9)
}

func TestAggregateEmptyLedgersProduceEmptySeries(t *testing.T) {
	points := Aggregate(buildInput(date(2024, time.January, 3), nil, nil, nil))
	assert.Empty(t, points)
}

func TestAggregateCashOnlyLedger(t *testing.T) {
	now := date(2024, time.January, 10)
	cash := []model.CashEvent{
		cashEvent(model.CashDeposit, 1, 500),
		cashEvent(model.CashWithdraw, 5, 200),
	}

	points := Aggregate(buildInput(now, cash, nil, nil))

	// only the buckets where cash moved, no synthetic full range
	require.Len(t, points, 2)
	assert.InDelta(t, 500, points[0].Value, 1e-9)
	assert.InDelta(t, 300, points[1].Value, 1e-9)
	assert.InDelta(t, 300, points[1].Invested, 1e-9)
}

func TestAggregateExcludesFutureBuckets(t *testing.T) {
	now := date(2024, time.January, 5)
	cash := []model.CashEvent{
		cashEvent(model.CashDeposit, 1, 100),
		cashEvent(model.CashDeposit, 20, 999), // future-dated wallet entry
	}

	points := Aggregate(buildInput(now, cash, nil, nil))

	require.Len(t, points, 1)
	assert.Equal(t, "2024-01-01", points[0].Date)
}

// Reordering events within the same bucket must not change the series.
func TestAggregateOrderWithinBucketIrrelevant(t *testing.T) {
	now := date(2024, time.January, 4)
	cash := []model.CashEvent{
		cashEvent(model.CashDeposit, 1, 1000),
		cashEvent(model.CashStockBuy, 2, 500),
		cashEvent(model.CashStockBuy, 2, 260),
	}
	trades := []model.TradeEvent{
		trade("X", 2, model.TradeBuy, 10, 50),
		trade("X", 2, model.TradeBuy, 5, 52),
	}

	forward := Aggregate(buildInput(now, cash, trades, nil))

	reversedCash := []model.CashEvent{cash[2], cash[1], cash[0]}
	reversedTrades := []model.TradeEvent{trades[1], trades[0]}
	backward := Aggregate(buildInput(now, reversedCash, reversedTrades, nil))

	assert.Equal(t, forward, backward)
}

func TestAggregateSellReturnsCashNetOfCommission(t *testing.T) {
	now := date(2024, time.January, 3)
	cash := []model.CashEvent{
		cashEvent(model.CashDeposit, 1, 1000),
		cashEvent(model.CashStockBuy, 1, 501),
		cashEvent(model.CashStockSell, 2, 538), // 10*54 - 2 commission
	}
	buy := trade("X", 1, model.TradeBuy, 10, 50)
	buy.TotalCommission = decimal.NewFromInt(1)
	sell := trade("X", 2, model.TradeSell, 10, 54)
	sell.TotalCommission = decimal.NewFromInt(2)

	points := Aggregate(buildInput(now, cash, []model.TradeEvent{buy, sell}, nil))

	require.Len(t, points, 3)
	last := points[len(points)-1]
	// flat after the position is closed: all value is cash again
	assert.InDelta(t, 1037, last.Value, 1e-9)
	// invested = cash 1037 + net spend (501 - 538) = 1000
	assert.InDelta(t, 1000, last.Invested, 1e-9)
}
