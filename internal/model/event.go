package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CashEventKind string

const (
	CashDeposit   CashEventKind = "DEPOSIT"
	CashWithdraw  CashEventKind = "WITHDRAW"
	CashStockBuy  CashEventKind = "STOCK_BUY"
	CashStockSell CashEventKind = "STOCK_SELL"
)

func (k CashEventKind) Valid() bool {
	switch k {
	case CashDeposit, CashWithdraw, CashStockBuy, CashStockSell:
		return true
	}
	return false
}

// Inflow reports whether the kind increases the cash balance.
func (k CashEventKind) Inflow() bool {
	return k == CashDeposit || k == CashStockSell
}

// CashEvent is one wallet ledger entry. Amount is always non-negative,
// the sign is derived from Kind.
type CashEvent struct {
	ID     int64
	Kind   CashEventKind
	Amount decimal.Decimal
	Date   time.Time
}

func (e CashEvent) SignedAmount() decimal.Decimal {
	if e.Kind.Inflow() {
		return e.Amount
	}
	return e.Amount.Neg()
}

type TradeSide string

const (
	TradeBuy  TradeSide = "BUY"
	TradeSell TradeSide = "SELL"
)

func (s TradeSide) Valid() bool {
	return s == TradeBuy || s == TradeSell
}

// TradeEvent is one trade ledger entry. TotalCost is always recomputed
// as Quantity*Price, never taken from the client.
type TradeEvent struct {
	ID              int64
	Symbol          string
	Quantity        decimal.Decimal
	Price           decimal.Decimal
	TotalCost       decimal.Decimal
	TotalCommission decimal.Decimal
	Date            time.Time
	Side            TradeSide
}

func (t TradeEvent) SignedQuantity() decimal.Decimal {
	if t.Side == TradeBuy {
		return t.Quantity
	}
	return t.Quantity.Neg()
}

// CashImpact is the wallet amount a trade corresponds to: cost plus
// commission for a buy, proceeds net of commission for a sell
// (floored at zero, matching the wallet entries the client writes).
func (t TradeEvent) CashImpact() decimal.Decimal {
	if t.Side == TradeBuy {
		return t.TotalCost.Add(t.TotalCommission)
	}
	proceeds := t.TotalCost.Sub(t.TotalCommission)
	if proceeds.IsNegative() {
		return decimal.Zero
	}
	return proceeds
}

// CounterpartCashKinds lists the wallet kinds a trade's cash entry may
// carry: the STOCK_* kind plus the legacy plain kind older clients wrote.
func (t TradeEvent) CounterpartCashKinds() []CashEventKind {
	if t.Side == TradeBuy {
		return []CashEventKind{CashStockBuy, CashWithdraw}
	}
	return []CashEventKind{CashStockSell, CashDeposit}
}

// NetStockSpend is the trade's contribution to cumulative net stock
// spend: money leaving cash for stock counts positive.
func (t TradeEvent) NetStockSpend() decimal.Decimal {
	if t.Side == TradeBuy {
		return t.TotalCost.Add(t.TotalCommission)
	}
	return t.TotalCost.Sub(t.TotalCommission).Neg()
}
