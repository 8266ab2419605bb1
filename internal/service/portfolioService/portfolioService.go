package portfolioService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/borsaapp/portfolio_backend/config"
	"github.com/borsaapp/portfolio_backend/data/repository"
	"github.com/borsaapp/portfolio_backend/internal/model"
	"github.com/borsaapp/portfolio_backend/internal/service"
	"github.com/borsaapp/portfolio_backend/internal/valuation"
	"github.com/borsaapp/portfolio_backend/utils"
)

type Repository interface {
	InsertCashEvent(ctx context.Context, userID int64, e model.CashEvent) (int64, error)
	UpdateCashEvent(ctx context.Context, userID int64, e model.CashEvent) error
	GetCashEvent(ctx context.Context, userID, id int64) (model.CashEvent, error)
	ListCashEvents(ctx context.Context, userID int64) ([]model.CashEvent, error)
	DeleteCashEvent(ctx context.Context, userID, id int64) error
	DeleteMatchingCashEvent(ctx context.Context, userID int64, dt time.Time, kinds []model.CashEventKind, amount decimal.Decimal) (bool, error)
	InsertTradeEvent(ctx context.Context, userID int64, e model.TradeEvent) (int64, error)
	UpdateTradeEvent(ctx context.Context, userID int64, e model.TradeEvent) error
	GetTradeEvent(ctx context.Context, userID, id int64) (model.TradeEvent, error)
	ListTradeEvents(ctx context.Context, userID int64) ([]model.TradeEvent, error)
	DeleteTradeEvent(ctx context.Context, userID, id int64) error
	DeleteMatchingTradeEvent(ctx context.Context, userID int64, dt time.Time, side model.TradeSide, amount decimal.Decimal) (bool, error)
	DeleteAllEvents(ctx context.Context, userID int64) error
	ListHeldSymbols(ctx context.Context) ([]model.HeldSymbol, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Cache interface {
	GetHistory(ctx context.Context, userID int64) ([]model.ChartPoint, error)
	SetHistory(ctx context.Context, userID int64, points []model.ChartPoint) error
	FlushUserCache(ctx context.Context, userID int64) error
	GetPrices(ctx context.Context, symbol, interval string, start time.Time) ([]model.PricePoint, error)
	SetPrices(ctx context.Context, symbol, interval string, start time.Time, points []model.PricePoint) error
}

type ChartApi interface {
	GetCloseHistory(ctx context.Context, symbol string, start time.Time, interval string) ([]model.PricePoint, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, report model.PortfolioReport) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
	DeleteOldFiles(ctx context.Context) error
}

type PortfolioService struct {
	cfg          *config.Config
	repo         Repository
	cache        Cache
	chartApi     ChartApi
	reportGen    ReportGenerator
	cloudStorage CloudStorage
	now          func() time.Time
}

func New(
	cfg *config.Config,
	repo Repository,
	cache Cache,
	chartApi ChartApi,
	reportGen ReportGenerator,
	cloudStorage CloudStorage,
) *PortfolioService {
	return &PortfolioService{
		cfg:          cfg,
		repo:         repo,
		cache:        cache,
		chartApi:     chartApi,
		reportGen:    reportGen,
		cloudStorage: cloudStorage,
		now:          time.Now,
	}
}

// flushCache drops the user's cached series after a ledger mutation.
// Cache failures are logged, never surfaced: the write already
// happened.
func (s *PortfolioService) flushCache(ctx context.Context, userID int64) {
	if err := s.cache.FlushUserCache(ctx, userID); err != nil {
		rqID := utils.GetRequestIDFromCtx(ctx)
		slog.Error("failed to flush user cache", slog.String("rqID", rqID), slog.Int64("userID", userID), slog.String("err", err.Error()))
	}
}

func (s *PortfolioService) AddCashEvent(ctx context.Context, userID int64, raw valuation.RawCashEvent) (model.CashEvent, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("AddCashEvent start", slog.String("rqID", rqID))

	event, err := valuation.NormalizeCashEvent(raw, s.now())
	if err != nil {
		return model.CashEvent{}, fmt.Errorf("%w: %v", service.ErrMalformedEvent, err)
	}

	id, err := s.repo.InsertCashEvent(ctx, userID, event)
	if err != nil {
		return model.CashEvent{}, err
	}
	event.ID = id

	s.flushCache(ctx, userID)

	slog.Debug("AddCashEvent completed", slog.String("rqID", rqID))

	return event, nil
}

// UpdateCashEvent merges the provided fields over the stored entry;
// empty fields keep their current value.
func (s *PortfolioService) UpdateCashEvent(ctx context.Context, userID, id int64, raw valuation.RawCashEvent) (model.CashEvent, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("UpdateCashEvent start", slog.String("rqID", rqID))

	existing, err := s.repo.GetCashEvent(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.CashEvent{}, service.ErrNotFound
		}
		return model.CashEvent{}, err
	}

	if raw.Kind == "" {
		raw.Kind = string(existing.Kind)
	}
	if raw.Amount == "" {
		raw.Amount = existing.Amount.String()
	}
	if raw.Date == "" {
		raw.Date = existing.Date.Format(time.RFC3339)
	}

	event, err := valuation.NormalizeCashEvent(raw, s.now())
	if err != nil {
		return model.CashEvent{}, fmt.Errorf("%w: %v", service.ErrMalformedEvent, err)
	}
	event.ID = id

	if err := s.repo.UpdateCashEvent(ctx, userID, event); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.CashEvent{}, service.ErrNotFound
		}
		return model.CashEvent{}, err
	}

	s.flushCache(ctx, userID)

	slog.Debug("UpdateCashEvent completed", slog.String("rqID", rqID))

	return event, nil
}

// DeleteCashEvent removes a wallet entry and, for STOCK_BUY/STOCK_SELL
// entries, the first trade whose cash impact matches it. Both deletes
// run in one transaction so the ledgers never diverge halfway.
func (s *PortfolioService) DeleteCashEvent(ctx context.Context, userID, id int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("DeleteCashEvent start", slog.String("rqID", rqID))

	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		event, err := s.repo.GetCashEvent(ctx, userID, id)
		if err != nil {
			return err
		}

		if err := s.repo.DeleteCashEvent(ctx, userID, id); err != nil {
			return err
		}

		var side model.TradeSide
		switch event.Kind {
		case model.CashStockBuy:
			side = model.TradeBuy
		case model.CashStockSell:
			side = model.TradeSell
		default:
			return nil
		}

		deleted, err := s.repo.DeleteMatchingTradeEvent(ctx, userID, event.Date, side, event.Amount)
		if err != nil {
			return err
		}
		if !deleted {
			slog.Warn("no trade matched deleted wallet entry", slog.String("rqID", rqID), slog.Int64("cashEventID", id))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		return err
	}

	s.flushCache(ctx, userID)

	slog.Debug("DeleteCashEvent completed", slog.String("rqID", rqID))

	return nil
}

// Wallet returns the running cash balance plus all entries, newest
// first.
func (s *PortfolioService) Wallet(ctx context.Context, userID int64) (model.Wallet, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("Wallet start", slog.String("rqID", rqID))

	events, err := s.repo.ListCashEvents(ctx, userID)
	if err != nil {
		return model.Wallet{}, err
	}

	balance := decimal.Zero
	for _, e := range events {
		balance = balance.Add(e.SignedAmount())
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.After(events[j].Date) })

	slog.Debug("Wallet completed", slog.String("rqID", rqID))

	return model.Wallet{Balance: balance, Events: events}, nil
}

func (s *PortfolioService) AddTradeEvent(ctx context.Context, userID int64, raw valuation.RawTradeEvent) (model.TradeEvent, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("AddTradeEvent start", slog.String("rqID", rqID))

	event, err := valuation.NormalizeTradeEvent(raw, s.now())
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("%w: %v", service.ErrMalformedEvent, err)
	}

	id, err := s.repo.InsertTradeEvent(ctx, userID, event)
	if err != nil {
		return model.TradeEvent{}, err
	}
	event.ID = id

	s.flushCache(ctx, userID)

	slog.Debug("AddTradeEvent completed", slog.String("rqID", rqID))

	return event, nil
}

// UpdateTradeEvent merges quantity, price, commission and date over the
// stored trade. Symbol and side are immutable; totalCost is recomputed.
func (s *PortfolioService) UpdateTradeEvent(ctx context.Context, userID, id int64, raw valuation.RawTradeEvent) (model.TradeEvent, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("UpdateTradeEvent start", slog.String("rqID", rqID))

	existing, err := s.repo.GetTradeEvent(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.TradeEvent{}, service.ErrNotFound
		}
		return model.TradeEvent{}, err
	}

	raw.Symbol = existing.Symbol
	raw.Side = string(existing.Side)
	if raw.Quantity == "" {
		raw.Quantity = existing.Quantity.String()
	}
	if raw.Price == "" {
		raw.Price = existing.Price.String()
	}
	if raw.Commission == "" {
		raw.Commission = existing.TotalCommission.String()
	}
	if raw.Date == "" {
		raw.Date = existing.Date.Format(time.RFC3339)
	}

	event, err := valuation.NormalizeTradeEvent(raw, s.now())
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("%w: %v", service.ErrMalformedEvent, err)
	}
	event.ID = id

	if err := s.repo.UpdateTradeEvent(ctx, userID, event); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.TradeEvent{}, service.ErrNotFound
		}
		return model.TradeEvent{}, err
	}

	s.flushCache(ctx, userID)

	slog.Debug("UpdateTradeEvent completed", slog.String("rqID", rqID))

	return event, nil
}

// DeleteTradeEvent removes a trade and the first wallet entry matching
// its cash impact, in one transaction.
func (s *PortfolioService) DeleteTradeEvent(ctx context.Context, userID, id int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("DeleteTradeEvent start", slog.String("rqID", rqID))

	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		trade, err := s.repo.GetTradeEvent(ctx, userID, id)
		if err != nil {
			return err
		}

		if err := s.repo.DeleteTradeEvent(ctx, userID, id); err != nil {
			return err
		}

		deleted, err := s.repo.DeleteMatchingCashEvent(ctx, userID, trade.Date, trade.CounterpartCashKinds(), trade.CashImpact())
		if err != nil {
			return err
		}
		if !deleted {
			slog.Warn("no wallet entry matched deleted trade", slog.String("rqID", rqID), slog.Int64("tradeEventID", id))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		return err
	}

	s.flushCache(ctx, userID)

	slog.Debug("DeleteTradeEvent completed", slog.String("rqID", rqID))

	return nil
}

// Transactions returns the trade ledger, newest first.
func (s *PortfolioService) Transactions(ctx context.Context, userID int64) ([]model.TradeEvent, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("Transactions start", slog.String("rqID", rqID))

	events, err := s.repo.ListTradeEvents(ctx, userID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.After(events[j].Date) })

	slog.Debug("Transactions completed", slog.String("rqID", rqID))

	return events, nil
}

// HoldingsSummary aggregates the trade ledger per symbol and returns
// only open positions (net quantity > 0), with the weighted average
// cost per share.
func (s *PortfolioService) HoldingsSummary(ctx context.Context, userID int64) ([]model.Holding, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("HoldingsSummary start", slog.String("rqID", rqID))

	trades, err := s.repo.ListTradeEvents(ctx, userID)
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string]*model.Holding)
	for _, t := range trades {
		h, ok := bySymbol[t.Symbol]
		if !ok {
			h = &model.Holding{Symbol: t.Symbol}
			bySymbol[t.Symbol] = h
		}
		h.Quantity = h.Quantity.Add(t.SignedQuantity())
		h.TotalCost = h.TotalCost.Add(t.TotalCost)
		h.TotalCommission = h.TotalCommission.Add(t.TotalCommission)
	}

	holdings := make([]model.Holding, 0, len(bySymbol))
	for _, h := range bySymbol {
		if !h.Quantity.IsPositive() {
			continue
		}
		h.AverageCost = h.TotalCost.Div(h.Quantity)
		holdings = append(holdings, *h)
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })

	slog.Debug("HoldingsSummary completed", slog.String("rqID", rqID))

	return holdings, nil
}

// PortfolioHistory reconstructs the value-vs-invested series for the
// user, serving from cache when a fresh copy exists.
func (s *PortfolioService) PortfolioHistory(ctx context.Context, userID int64) ([]model.ChartPoint, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("PortfolioHistory start", slog.String("rqID", rqID))

	if points, err := s.cache.GetHistory(ctx, userID); err == nil {
		slog.Debug("PortfolioHistory served from cache", slog.String("rqID", rqID))
		return points, nil
	}

	cash, err := s.repo.ListCashEvents(ctx, userID)
	if err != nil {
		return nil, err
	}
	trades, err := s.repo.ListTradeEvents(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(cash) == 0 && len(trades) == 0 {
		return []model.ChartPoint{}, nil
	}

	now := s.now().UTC()
	earliest := now
	for _, t := range trades {
		if t.Date.Before(earliest) {
			earliest = t.Date
		}
	}
	g := valuation.ChooseGranularity(earliest, now)

	var axis []time.Time
	if len(trades) > 0 {
		axis = valuation.BuildAxis(earliest, now, g)
	}

	provider := s.fetchPrices(ctx, trades, axis, g)
	holdings := valuation.BuildHoldings(trades, axis, g)
	prices := valuation.CompletePrices(axis, g, provider, trades, holdings)

	points := valuation.Aggregate(valuation.Input{
		CashEvents:  cash,
		TradeEvents: trades,
		Axis:        axis,
		Granularity: g,
		Holdings:    holdings,
		Prices:      prices,
		Now:         now,
	})

	if err := s.cache.SetHistory(ctx, userID, points); err != nil {
		slog.Error("failed to cache history", slog.String("rqID", rqID), slog.String("err", err.Error()))
	}

	slog.Debug("PortfolioHistory completed", slog.String("rqID", rqID))

	return points, nil
}

// fetchPrices resolves close history per traded symbol, cache first.
// Provider failures degrade to an empty series for that symbol; the
// valuation falls back to trade prices there.
func (s *PortfolioService) fetchPrices(ctx context.Context, trades []model.TradeEvent, axis []time.Time, g valuation.Granularity) map[string][]model.PricePoint {
	if len(axis) == 0 {
		return nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	interval := g.Interval()

	// fetch from each symbol's first trade; earlier buckets backfill
	// from that trade's price anyway
	firstTrade := make(map[string]time.Time)
	for _, t := range trades {
		if prev, ok := firstTrade[t.Symbol]; !ok || t.Date.Before(prev) {
			firstTrade[t.Symbol] = t.Date
		}
	}

	provider := make(map[string][]model.PricePoint, len(firstTrade))
	for symbol, first := range firstTrade {
		start := g.Floor(first)
		if points, err := s.cache.GetPrices(ctx, symbol, interval, start); err == nil {
			provider[symbol] = points
			continue
		}

		points, err := s.chartApi.GetCloseHistory(ctx, symbol, start, interval)
		if err != nil {
			slog.Warn("price fetch failed, degrading to trade prices", slog.String("rqID", rqID), slog.String("symbol", symbol), slog.String("err", err.Error()))
			provider[symbol] = nil
			continue
		}

		provider[symbol] = points
		if err := s.cache.SetPrices(ctx, symbol, interval, start, points); err != nil {
			slog.Error("failed to cache prices", slog.String("rqID", rqID), slog.String("symbol", symbol), slog.String("err", err.Error()))
		}
	}

	return provider
}

// Reset wipes both ledgers for the user.
func (s *PortfolioService) Reset(ctx context.Context, userID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("Reset start", slog.String("rqID", rqID))

	if err := s.repo.DeleteAllEvents(ctx, userID); err != nil {
		return err
	}

	s.flushCache(ctx, userID)

	slog.Debug("Reset completed", slog.String("rqID", rqID))

	return nil
}

// ExportReport renders the xlsx report and uploads it to cloud
// storage, returning the download link.
func (s *PortfolioService) ExportReport(ctx context.Context, userID int64) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("ExportReport start", slog.String("rqID", rqID))

	if s.cloudStorage == nil {
		return "", errors.New("cloud storage is not configured")
	}

	cash, err := s.repo.ListCashEvents(ctx, userID)
	if err != nil {
		return "", err
	}
	trades, err := s.repo.ListTradeEvents(ctx, userID)
	if err != nil {
		return "", err
	}
	history, err := s.PortfolioHistory(ctx, userID)
	if err != nil {
		return "", err
	}

	fileBytes, ext, err := s.reportGen.Generate(ctx, model.PortfolioReport{
		CashEvents:  cash,
		TradeEvents: trades,
		History:     history,
	})
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("portfolio_report_%d_%s%s", userID, s.now().Format("2006-01-02_15-04-05"), ext)
	link, err := s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
	if err != nil {
		return "", err
	}

	slog.Debug("ExportReport completed", slog.String("rqID", rqID), slog.String("link", link))

	return link, nil
}

// WarmPriceCache prefetches close history for every symbol in any
// trade ledger so interactive history requests hit the price cache.
func (s *PortfolioService) WarmPriceCache(ctx context.Context) error {
	ctx = utils.CtxWithRqID(ctx, "")

	symbols, err := s.repo.ListHeldSymbols(ctx)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	for _, held := range symbols {
		g := valuation.ChooseGranularity(held.FirstTrade, now)
		start := g.Floor(held.FirstTrade)
		interval := g.Interval()

		if _, err := s.cache.GetPrices(ctx, held.Symbol, interval, start); err == nil {
			continue
		}

		points, err := s.chartApi.GetCloseHistory(ctx, held.Symbol, start, interval)
		if err != nil {
			slog.Warn("price warmup failed", slog.String("symbol", held.Symbol), slog.String("err", err.Error()))
			continue
		}
		if err := s.cache.SetPrices(ctx, held.Symbol, interval, start, points); err != nil {
			slog.Error("failed to cache warmed prices", slog.String("symbol", held.Symbol), slog.String("err", err.Error()))
		}
	}

	return nil
}

// CleanupCloudStorage deletes uploaded reports older than the
// configured TTL.
func (s *PortfolioService) CleanupCloudStorage(ctx context.Context) error {
	if s.cloudStorage == nil {
		return nil
	}
	return s.cloudStorage.DeleteOldFiles(utils.CtxWithRqID(ctx, ""))
}
