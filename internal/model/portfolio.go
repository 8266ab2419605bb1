package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChartPoint is one row of the derived portfolio-history series, in
// the shape the chart client consumes.
type ChartPoint struct {
	Date     string  `json:"date"`
	Value    float64 `json:"value"`
	Invested float64 `json:"invested"`
}

// PricePoint is one provider close price, already normalized onto the
// bucket axis (timezone stripped, floored).
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// Holding is the current position summary for one symbol.
type Holding struct {
	Symbol          string          `json:"symbol"`
	Quantity        decimal.Decimal `json:"quantity"`
	TotalCost       decimal.Decimal `json:"totalCost"`
	TotalCommission decimal.Decimal `json:"totalCommission"`
	AverageCost     decimal.Decimal `json:"averageCost"`
}

// Wallet is the cash ledger view: running balance plus entries,
// newest first.
type Wallet struct {
	Balance decimal.Decimal
	Events  []CashEvent
}

// HeldSymbol is a symbol present in any trade ledger together with its
// first trade date, used to prefetch price history.
type HeldSymbol struct {
	Symbol     string
	FirstTrade time.Time
}

// PortfolioReport is the input of the xlsx export: both ledgers plus
// the derived series.
type PortfolioReport struct {
	CashEvents  []CashEvent
	TradeEvents []TradeEvent
	History     []ChartPoint
}
