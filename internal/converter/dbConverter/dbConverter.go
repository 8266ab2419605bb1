package dbConverter

import (
	"github.com/borsaapp/portfolio_backend/internal/model"
	"github.com/borsaapp/portfolio_backend/internal/model/dbModel"
)

func ConvertCashEvent(e dbModel.CashEvent) model.CashEvent {
	return model.CashEvent{
		ID:     e.ID,
		Kind:   model.CashEventKind(e.Kind),
		Amount: e.Amount,
		Date:   e.Date.UTC(),
	}
}

func ConvertTradeEvent(e dbModel.TradeEvent) model.TradeEvent {
	return model.TradeEvent{
		ID:              e.ID,
		Symbol:          e.Symbol,
		Quantity:        e.Quantity,
		Price:           e.Price,
		TotalCost:       e.TotalCost,
		TotalCommission: e.TotalCommission,
		Date:            e.Date.UTC(),
		Side:            model.TradeSide(e.Side),
	}
}

func ConvertHeldSymbol(s dbModel.HeldSymbol) model.HeldSymbol {
	return model.HeldSymbol{Symbol: s.Symbol, FirstTrade: s.FirstTrade.UTC()}
}
