package valuation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/borsaapp/portfolio_backend/internal/model"
)

// ErrMalformedEvent marks an event that fails required-field
// validation. Callers reject the write before it reaches storage.
var ErrMalformedEvent = errors.New("malformed event")

// RawCashEvent is a wallet entry as received from the client, before
// validation. All fields are free-form strings.
type RawCashEvent struct {
	Kind   string
	Amount string
	Date   string
}

// RawTradeEvent is a trade entry as received from the client.
// Commission may be empty; it then defaults to 0.1% of the cost.
type RawTradeEvent struct {
	Symbol     string
	Quantity   string
	Price      string
	Commission string
	Side       string
	Date       string
}

var eventTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

// ParseEventTime parses a free-form client date string into a UTC
// timestamp. Date-only strings default to midnight.
func ParseEventTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", ErrMalformedEvent)
	}

	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: unparseable date %q", ErrMalformedEvent, raw)
}

// NormalizeCashEvent validates a raw wallet entry and produces the
// typed event. An empty date defaults to now.
func NormalizeCashEvent(raw RawCashEvent, now time.Time) (model.CashEvent, error) {
	kind := model.CashEventKind(strings.TrimSpace(raw.Kind))
	if kind == "" {
		kind = model.CashDeposit
	}
	if !kind.Valid() {
		return model.CashEvent{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, raw.Kind)
	}

	amount, err := parseRequiredDecimal("amount", raw.Amount)
	if err != nil {
		return model.CashEvent{}, err
	}
	if amount.IsNegative() {
		return model.CashEvent{}, fmt.Errorf("%w: negative amount", ErrMalformedEvent)
	}

	dt := now.UTC()
	if strings.TrimSpace(raw.Date) != "" {
		dt, err = ParseEventTime(raw.Date)
		if err != nil {
			return model.CashEvent{}, err
		}
	}

	return model.CashEvent{Kind: kind, Amount: amount, Date: dt}, nil
}

// NormalizeTradeEvent validates a raw trade entry and produces the
// typed event with totalCost recomputed from quantity*price.
func NormalizeTradeEvent(raw RawTradeEvent, now time.Time) (model.TradeEvent, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw.Symbol))
	if symbol == "" {
		return model.TradeEvent{}, fmt.Errorf("%w: missing symbol", ErrMalformedEvent)
	}

	side := model.TradeSide(strings.TrimSpace(raw.Side))
	if side == "" {
		side = model.TradeBuy
	}
	if !side.Valid() {
		return model.TradeEvent{}, fmt.Errorf("%w: unknown side %q", ErrMalformedEvent, raw.Side)
	}

	quantity, err := parseRequiredDecimal("quantity", raw.Quantity)
	if err != nil {
		return model.TradeEvent{}, err
	}
	price, err := parseRequiredDecimal("price", raw.Price)
	if err != nil {
		return model.TradeEvent{}, err
	}
	if !quantity.IsPositive() || !price.IsPositive() {
		return model.TradeEvent{}, fmt.Errorf("%w: quantity and price must be positive", ErrMalformedEvent)
	}

	totalCost := quantity.Mul(price)

	commission := totalCost.Mul(defaultCommissionRate)
	if strings.TrimSpace(raw.Commission) != "" {
		commission, err = parseRequiredDecimal("commission", raw.Commission)
		if err != nil {
			return model.TradeEvent{}, err
		}
		if commission.IsNegative() {
			return model.TradeEvent{}, fmt.Errorf("%w: negative commission", ErrMalformedEvent)
		}
	}

	dt := now.UTC()
	if strings.TrimSpace(raw.Date) != "" {
		dt, err = ParseEventTime(raw.Date)
		if err != nil {
			return model.TradeEvent{}, err
		}
	}

	return model.TradeEvent{
		Symbol:          symbol,
		Quantity:        quantity,
		Price:           price,
		TotalCost:       totalCost,
		TotalCommission: commission,
		Date:            dt,
		Side:            side,
	}, nil
}

var defaultCommissionRate = decimal.NewFromFloat(0.001)

func parseRequiredDecimal(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: missing %s", ErrMalformedEvent, field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: non-numeric %s %q", ErrMalformedEvent, field, raw)
	}
	return d, nil
}
