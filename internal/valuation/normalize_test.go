package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borsaapp/portfolio_backend/internal/model"
)

var testNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func TestParseEventTime(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-03-05", time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"2024-03-05T14:30", time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)},
		{"2024-03-05 14:30", time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)},
		{"2024-03-05T14:30:15", time.Date(2024, time.March, 5, 14, 30, 15, 0, time.UTC)},
	}
	for _, tc := range tests {
		got, err := ParseEventTime(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestParseEventTimeRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "yesterday", "05/03/2024"} {
		_, err := ParseEventTime(raw)
		assert.ErrorIs(t, err, ErrMalformedEvent, raw)
	}
}

func TestNormalizeCashEvent(t *testing.T) {
	e, err := NormalizeCashEvent(RawCashEvent{Kind: "WITHDRAW", Amount: "250.50", Date: "2024-03-05"}, testNow)

	require.NoError(t, err)
	assert.Equal(t, model.CashWithdraw, e.Kind)
	assert.Equal(t, "250.5", e.Amount.String())
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), e.Date)
	assert.Equal(t, "-250.5", e.SignedAmount().String())
}

func TestNormalizeCashEventDefaults(t *testing.T) {
	e, err := NormalizeCashEvent(RawCashEvent{Amount: "100"}, testNow)

	require.NoError(t, err)
	assert.Equal(t, model.CashDeposit, e.Kind)
	assert.Equal(t, testNow, e.Date)
}

func TestNormalizeCashEventRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  RawCashEvent
	}{
		{"missing amount", RawCashEvent{Kind: "DEPOSIT"}},
		{"non-numeric amount", RawCashEvent{Kind: "DEPOSIT", Amount: "lots"}},
		{"negative amount", RawCashEvent{Kind: "DEPOSIT", Amount: "-5"}},
		{"unknown kind", RawCashEvent{Kind: "TRANSFER", Amount: "5"}},
		{"bad date", RawCashEvent{Kind: "DEPOSIT", Amount: "5", Date: "soon"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeCashEvent(tc.raw, testNow)
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}

func TestNormalizeTradeEvent(t *testing.T) {
	e, err := NormalizeTradeEvent(RawTradeEvent{
		Symbol:     "aapl",
		Quantity:   "10",
		Price:      "50",
		Commission: "1",
		Side:       "BUY",
		Date:       "2024-03-05 10:15",
	}, testNow)

	require.NoError(t, err)
	assert.Equal(t, "AAPL", e.Symbol)
	assert.Equal(t, "500", e.TotalCost.String())
	assert.Equal(t, "1", e.TotalCommission.String())
	assert.Equal(t, "501", e.CashImpact().String())
	assert.Equal(t, "10", e.SignedQuantity().String())
}

func TestNormalizeTradeEventCommissionDefault(t *testing.T) {
	e, err := NormalizeTradeEvent(RawTradeEvent{Symbol: "X", Quantity: "10", Price: "50"}, testNow)

	require.NoError(t, err)
	// 0.1% of the 500 cost
	assert.Equal(t, "0.5", e.TotalCommission.String())
	assert.Equal(t, model.TradeBuy, e.Side)
}

func TestNormalizeTradeEventRecomputesTotalCost(t *testing.T) {
	e, err := NormalizeTradeEvent(RawTradeEvent{Symbol: "X", Quantity: "3", Price: "7.5", Side: "SELL"}, testNow)

	require.NoError(t, err)
	assert.Equal(t, "22.5", e.TotalCost.String())
	assert.Equal(t, "-3", e.SignedQuantity().String())
}

func TestNormalizeTradeEventRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  RawTradeEvent
	}{
		{"missing symbol", RawTradeEvent{Quantity: "1", Price: "1"}},
		{"missing quantity", RawTradeEvent{Symbol: "X", Price: "1"}},
		{"non-numeric price", RawTradeEvent{Symbol: "X", Quantity: "1", Price: "cheap"}},
		{"zero quantity", RawTradeEvent{Symbol: "X", Quantity: "0", Price: "1"}},
		{"negative price", RawTradeEvent{Symbol: "X", Quantity: "1", Price: "-1"}},
		{"unknown side", RawTradeEvent{Symbol: "X", Quantity: "1", Price: "1", Side: "HOLD"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeTradeEvent(tc.raw, testNow)
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}
