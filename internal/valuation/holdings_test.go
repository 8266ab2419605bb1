package valuation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borsaapp/portfolio_backend/internal/model"
)

func trade(symbol string, day int, side model.TradeSide, qty, price float64) model.TradeEvent {
	q := decimal.NewFromFloat(qty)
	p := decimal.NewFromFloat(price)
	return model.TradeEvent{
		Symbol:    symbol,
		Quantity:  q,
		Price:     p,
		TotalCost: q.Mul(p),
		Date:      date(2024, time.January, day),
		Side:      side,
	}
}

func TestBuildHoldingsStepFunction(t *testing.T) {
	axis := BuildAxis(date(2024, time.January, 1), date(2024, time.January, 6), Daily)
	trades := []model.TradeEvent{
		trade("X", 1, model.TradeBuy, 10, 50),
		trade("X", 4, model.TradeSell, 4, 55),
	}

	h := BuildHoldings(trades, axis, Daily)

	require.Contains(t, h, "X")
	want := []string{"10", "10", "10", "6", "6", "6"}
	for i, w := range want {
		assert.Equal(t, w, h["X"][i].String(), "bucket %d", i)
	}
}

func TestBuildHoldingsSameBucketNets(t *testing.T) {
	axis := BuildAxis(date(2024, time.January, 1), date(2024, time.January, 2), Daily)
	trades := []model.TradeEvent{
		trade("X", 1, model.TradeBuy, 10, 50),
		trade("X", 1, model.TradeBuy, 5, 52),
	}

	h := BuildHoldings(trades, axis, Daily)

	// one netted bucket entry, not two
	assert.Equal(t, "15", h["X"][0].String())
	assert.Equal(t, "15", h["X"][1].String())
}

func TestBuildHoldingsOversellGoesNegative(t *testing.T) {
	axis := BuildAxis(date(2024, time.January, 1), date(2024, time.January, 3), Daily)
	trades := []model.TradeEvent{
		trade("X", 1, model.TradeBuy, 5, 50),
		trade("X", 2, model.TradeSell, 8, 50),
	}

	h := BuildHoldings(trades, axis, Daily)

	// oversell is reportable data, not an error
	assert.Equal(t, "-3", h["X"][1].String())
	assert.Equal(t, "-3", h["X"][2].String())
}

func TestBuildHoldingsZeroBeforeFirstTrade(t *testing.T) {
	axis := BuildAxis(date(2024, time.January, 1), date(2024, time.January, 5), Daily)
	trades := []model.TradeEvent{trade("Y", 3, model.TradeBuy, 2, 10)}

	h := BuildHoldings(trades, axis, Daily)

	assert.True(t, h["Y"][0].IsZero())
	assert.True(t, h["Y"][1].IsZero())
	assert.Equal(t, "2", h["Y"][2].String())
}

func TestBuildHoldingsIgnoresTradesOutsideAxis(t *testing.T) {
	axis := BuildAxis(date(2024, time.January, 1), date(2024, time.January, 2), Daily)
	trades := []model.TradeEvent{trade("X", 20, model.TradeBuy, 2, 10)}

	h := BuildHoldings(trades, axis, Daily)

	assert.Empty(t, h)
}
