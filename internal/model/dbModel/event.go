package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type CashEvent struct {
	ID     int64           `db:"id"`
	UserID int64           `db:"user_id"`
	Kind   string          `db:"kind"`
	Amount decimal.Decimal `db:"amount"`
	Date   time.Time       `db:"dt"`
}

type TradeEvent struct {
	ID              int64           `db:"id"`
	UserID          int64           `db:"user_id"`
	Symbol          string          `db:"symbol"`
	Quantity        decimal.Decimal `db:"quantity"`
	Price           decimal.Decimal `db:"price"`
	TotalCost       decimal.Decimal `db:"total_cost"`
	TotalCommission decimal.Decimal `db:"total_commission"`
	Date            time.Time       `db:"dt"`
	Side            string          `db:"side"`
}

type HeldSymbol struct {
	Symbol     string    `db:"symbol"`
	FirstTrade time.Time `db:"first_trade"`
}
