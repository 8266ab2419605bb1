package valuation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borsaapp/portfolio_backend/internal/model"
)

func pricePoint(day int, close float64) model.PricePoint {
	return model.PricePoint{Date: date(2024, time.January, day), Close: decimal.NewFromFloat(close)}
}

func TestCompletePricesProviderWins(t *testing.T) {
	axis := BuildAxis(date(2024, time.January, 1), date(2024, time.January, 3), Daily)
	trades := []model.TradeEvent{trade("X", 2, model.TradeBuy, 10, 48)}
	provider := map[string][]model.PricePoint{
		"X": {pricePoint(1, 50), pricePoint(2, 51), pricePoint(3, 52)},
	}

	p := CompletePrices(axis, Daily, provider, trades, nil)

	// provider close outranks the trade price recorded the same day
	assert.Equal(t, "51", p["X"][1].String())
}

func TestCompletePricesTradePriceFillsGap(t *testing.T) {
	axis := BuildAxis(date(2024, time.January, 1), date(2024, time.January, 3), Daily)
	trades := []model.TradeEvent{trade("X", 2, model.TradeBuy, 10, 48)}
	provider := map[string][]model.PricePoint{
		"X": {pricePoint(1, 50), pricePoint(3, 52)},
	}

	p := CompletePrices(axis, Daily, provider, trades, nil)

	assert.Equal(t, "48", p["X"][1].String())
}

func TestCompletePricesForwardFill(t *testing.T) {
	axis := BuildAxis(date(2024, time.January, 1), date(2024, time.January, 4), Daily)
	trades := []model.TradeEvent{trade("X", 1, model.TradeBuy, 10, 48)}
	provider := map[string][]model.PricePoint{
		"X": {pricePoint(1, 50)},
	}

	p := CompletePrices(axis, Daily, provider, trades, nil)

	for i := 1; i < 4; i++ {
		assert.Equal(t, "50", p["X"][i].String(), "bucket %d", i)
	}
}

func TestCompletePricesLeadingGapUsesFirstTradePrice(t *testing.T) {
	axis := BuildAxis(date(2024, time.January, 1), date(2024, time.January, 5), Daily)
	trades := []model.TradeEvent{trade("X", 3, model.TradeBuy, 10, 48)}

	p := CompletePrices(axis, Daily, nil, trades, nil)

	require.Contains(t, p, "X")
	// buckets before the first trade resolve to its price, not zero
	assert.Equal(t, "48", p["X"][0].String())
	assert.Equal(t, "48", p["X"][1].String())
	assert.Equal(t, "48", p["X"][2].String())
	assert.Equal(t, "48", p["X"][4].String())
}

func TestCompletePricesZeroOnlyWithoutAnyData(t *testing.T) {
	axis := BuildAxis(date(2024, time.January, 1), date(2024, time.January, 2), Daily)
	provider := map[string][]model.PricePoint{"X": {}}

	p := CompletePrices(axis, Daily, provider, nil, nil)

	assert.True(t, p["X"][0].IsZero())
	assert.True(t, p["X"][1].IsZero())
}

// Once a symbol has at least one trade, no bucket with non-zero
// holdings may resolve to a zero price.
func TestCompletePricesNeverZeroForHeldSymbolWithTrades(t *testing.T) {
	axis := BuildAxis(date(2024, time.January, 1), date(2024, time.January, 10), Daily)
	trades := []model.TradeEvent{
		trade("X", 2, model.TradeBuy, 10, 48),
		trade("X", 7, model.TradeBuy, 5, 52),
	}
	holdings := BuildHoldings(trades, axis, Daily)

	p := CompletePrices(axis, Daily, nil, trades, holdings)

	for i := range axis {
		if !holdings["X"][i].IsZero() {
			assert.False(t, p["X"][i].IsZero(), "bucket %d", i)
		}
	}
}

func TestCompletePricesMultipleTradesSameBucketLastPriceStands(t *testing.T) {
	axis := BuildAxis(date(2024, time.January, 1), date(2024, time.January, 1), Daily)
	trades := []model.TradeEvent{
		trade("X", 1, model.TradeBuy, 10, 50),
		trade("X", 1, model.TradeBuy, 5, 52),
	}

	p := CompletePrices(axis, Daily, nil, trades, nil)

	assert.Equal(t, "52", p["X"][0].String())
}
