package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/borsaapp/portfolio_backend/data/repository"
	"github.com/borsaapp/portfolio_backend/internal/converter/dbConverter"
	"github.com/borsaapp/portfolio_backend/internal/model"
	"github.com/borsaapp/portfolio_backend/internal/model/dbModel"
	"github.com/borsaapp/portfolio_backend/utils"
)

// matchTolerance is the amount window for the heuristic trade<->cash
// reconciliation match, in currency units.
const matchTolerance = "0.01"

func (r *Postgres) InsertCashEvent(ctx context.Context, userID int64, e model.CashEvent) (id int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertCashEvent"
	query := `INSERT INTO cash_events(user_id, kind, amount, dt) VALUES($1, $2, $3, $4) RETURNING id`

	slog.Debug("InsertCashEvent start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertCashEvent failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertCashEvent completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID, string(e.Kind), e.Amount, e.Date).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

func (r *Postgres) UpdateCashEvent(ctx context.Context, userID int64, e model.CashEvent) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateCashEvent"
	query := `
		UPDATE cash_events
		SET kind = $1, amount = $2, dt = $3
		WHERE id = $4 AND user_id = $5
		`

	slog.Debug("UpdateCashEvent start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpdateCashEvent failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateCashEvent completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, string(e.Kind), e.Amount, e.Date, e.ID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *Postgres) GetCashEvent(ctx context.Context, userID, id int64) (e model.CashEvent, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetCashEvent"
	query := `SELECT id, user_id, kind, amount, dt FROM cash_events WHERE id = $1 AND user_id = $2`

	slog.Debug("GetCashEvent start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetCashEvent failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetCashEvent completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbEvent := dbModel.CashEvent{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, id, userID).StructScan(&dbEvent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CashEvent{}, repository.ErrNotFound
		}
		return model.CashEvent{}, err
	}

	return dbConverter.ConvertCashEvent(dbEvent), nil
}

func (r *Postgres) ListCashEvents(ctx context.Context, userID int64) (events []model.CashEvent, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ListCashEvents"
	query := `SELECT id, user_id, kind, amount, dt FROM cash_events WHERE user_id = $1 ORDER BY id`

	slog.Debug("ListCashEvents start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("ListCashEvents failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ListCashEvents completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var e dbModel.CashEvent
		err = rows.StructScan(&e)
		if err != nil {
			return nil, err
		}
		events = append(events, dbConverter.ConvertCashEvent(e))
	}

	return events, nil
}

func (r *Postgres) DeleteCashEvent(ctx context.Context, userID, id int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteCashEvent"
	query := `DELETE FROM cash_events WHERE id = $1 AND user_id = $2`

	slog.Debug("DeleteCashEvent start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("DeleteCashEvent failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteCashEvent completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteMatchingCashEvent removes at most one wallet entry matching a
// deleted trade: same timestamp, one of the trade's counterpart kinds,
// amount within the tolerance of the trade's cash impact. First match
// in ledger order wins; no match is a no-op, never an error.
func (r *Postgres) DeleteMatchingCashEvent(
	ctx context.Context,
	userID int64,
	dt time.Time,
	kinds []model.CashEventKind,
	amount decimal.Decimal,
) (deleted bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteMatchingCashEvent"
	query := `
		DELETE FROM cash_events
		WHERE id IN (
			SELECT id FROM cash_events
			WHERE user_id = $1
			AND dt = $2
			AND kind = ANY($3)
			AND ABS(amount - $4) < ` + matchTolerance + `
			ORDER BY id
			LIMIT 1
		)
		`

	slog.Debug("DeleteMatchingCashEvent start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("DeleteMatchingCashEvent failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteMatchingCashEvent completed", slog.String("rqID", rqID), slog.String("op", op), slog.Bool("deleted", deleted))
		}
	}()

	kindStrs := make([]string, 0, len(kinds))
	for _, k := range kinds {
		kindStrs = append(kindStrs, string(k))
	}

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, userID, dt, kindStrs, amount)
	if err != nil {
		return false, err
	}

	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Postgres) InsertTradeEvent(ctx context.Context, userID int64, e model.TradeEvent) (id int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertTradeEvent"
	query := `
		INSERT INTO trade_events(user_id, symbol, quantity, price, total_cost, total_commission, dt, side)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
		`

	slog.Debug("InsertTradeEvent start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertTradeEvent failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertTradeEvent completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowxContext(
		ctx,
		query,
		userID,
		e.Symbol,
		e.Quantity,
		e.Price,
		e.TotalCost,
		e.TotalCommission,
		e.Date,
		string(e.Side),
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

func (r *Postgres) UpdateTradeEvent(ctx context.Context, userID int64, e model.TradeEvent) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateTradeEvent"
	query := `
		UPDATE trade_events
		SET quantity = $1, price = $2, total_cost = $3, total_commission = $4, dt = $5
		WHERE id = $6 AND user_id = $7
		`

	slog.Debug("UpdateTradeEvent start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpdateTradeEvent failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateTradeEvent completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, e.Quantity, e.Price, e.TotalCost, e.TotalCommission, e.Date, e.ID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *Postgres) GetTradeEvent(ctx context.Context, userID, id int64) (e model.TradeEvent, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTradeEvent"
	query := `
		SELECT id, user_id, symbol, quantity, price, total_cost, total_commission, dt, side
		FROM trade_events
		WHERE id = $1 AND user_id = $2
		`

	slog.Debug("GetTradeEvent start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetTradeEvent failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTradeEvent completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbEvent := dbModel.TradeEvent{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, id, userID).StructScan(&dbEvent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TradeEvent{}, repository.ErrNotFound
		}
		return model.TradeEvent{}, err
	}

	return dbConverter.ConvertTradeEvent(dbEvent), nil
}

func (r *Postgres) ListTradeEvents(ctx context.Context, userID int64) (events []model.TradeEvent, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ListTradeEvents"
	query := `
		SELECT id, user_id, symbol, quantity, price, total_cost, total_commission, dt, side
		FROM trade_events
		WHERE user_id = $1
		ORDER BY id
		`

	slog.Debug("ListTradeEvents start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("ListTradeEvents failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ListTradeEvents completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var e dbModel.TradeEvent
		err = rows.StructScan(&e)
		if err != nil {
			return nil, err
		}
		events = append(events, dbConverter.ConvertTradeEvent(e))
	}

	return events, nil
}

func (r *Postgres) DeleteTradeEvent(ctx context.Context, userID, id int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteTradeEvent"
	query := `DELETE FROM trade_events WHERE id = $1 AND user_id = $2`

	slog.Debug("DeleteTradeEvent start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("DeleteTradeEvent failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteTradeEvent completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteMatchingTradeEvent removes at most one trade matching a
// deleted STOCK_BUY/STOCK_SELL wallet entry: same timestamp and side,
// cash impact within the tolerance of the wallet amount.
func (r *Postgres) DeleteMatchingTradeEvent(
	ctx context.Context,
	userID int64,
	dt time.Time,
	side model.TradeSide,
	amount decimal.Decimal,
) (deleted bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteMatchingTradeEvent"

	impact := `total_cost + total_commission`
	if side == model.TradeSell {
		impact = `total_cost - total_commission`
	}
	query := `
		DELETE FROM trade_events
		WHERE id IN (
			SELECT id FROM trade_events
			WHERE user_id = $1
			AND dt = $2
			AND side = $3
			AND ABS((` + impact + `) - $4) < ` + matchTolerance + `
			ORDER BY id
			LIMIT 1
		)
		`

	slog.Debug("DeleteMatchingTradeEvent start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("DeleteMatchingTradeEvent failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteMatchingTradeEvent completed", slog.String("rqID", rqID), slog.String("op", op), slog.Bool("deleted", deleted))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, userID, dt, string(side), amount)
	if err != nil {
		return false, err
	}

	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Postgres) DeleteAllEvents(ctx context.Context, userID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteAllEvents"

	slog.Debug("DeleteAllEvents start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("DeleteAllEvents failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteAllEvents completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	// both ledgers clear together or not at all
	err = r.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.txOrDb(ctx).ExecContext(ctx, `DELETE FROM cash_events WHERE user_id = $1`, userID); err != nil {
			return err
		}
		if _, err := r.txOrDb(ctx).ExecContext(ctx, `DELETE FROM trade_events WHERE user_id = $1`, userID); err != nil {
			return err
		}
		return nil
	})

	return err
}

// ListHeldSymbols returns every symbol present in any trade ledger
// together with its first trade date, for the price prefetch job.
func (r *Postgres) ListHeldSymbols(ctx context.Context) (symbols []model.HeldSymbol, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ListHeldSymbols"
	query := `SELECT symbol, MIN(dt) AS first_trade FROM trade_events GROUP BY symbol ORDER BY symbol`

	slog.Debug("ListHeldSymbols start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("ListHeldSymbols failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ListHeldSymbols completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var s dbModel.HeldSymbol
		err = rows.StructScan(&s)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, dbConverter.ConvertHeldSymbol(s))
	}

	return symbols, nil
}
