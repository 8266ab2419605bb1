package portfolioService

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borsaapp/portfolio_backend/config"
	"github.com/borsaapp/portfolio_backend/data/cache"
	"github.com/borsaapp/portfolio_backend/data/repository/flatfile"
	"github.com/borsaapp/portfolio_backend/internal/model"
	"github.com/borsaapp/portfolio_backend/internal/valuation"
)

type unavailableChartApi struct{}

func (unavailableChartApi) GetCloseHistory(ctx context.Context, symbol string, start time.Time, interval string) ([]model.PricePoint, error) {
	return nil, errors.New("provider unavailable")
}

// newLedgerService wires the service against the real flatfile store
// and in-memory cache, with the price provider down so the series is
// built from trade prices alone.
func newLedgerService(t *testing.T) *PortfolioService {
	t.Helper()

	cfg := &config.Config{
		Storage: config.Storage{Backend: "flatfile", DataDir: t.TempDir()},
		Cache: config.Cache{
			HistoryExpiration: 300 * time.Second,
			PricesExpiration:  300 * time.Second,
		},
	}

	repo, err := flatfile.NewFlatfile(cfg)
	require.NoError(t, err)

	svc := New(cfg, repo, cache.NewMemoryCache(cfg), unavailableChartApi{}, nil, nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestDeleteAndReAddTradeReproducesSeries(t *testing.T) {
	svc := newLedgerService(t)
	ctx := context.Background()
	const userID int64 = 1

	depositDate := testNow.AddDate(0, 0, -10).Format("2006-01-02T15:04:05")
	tradeDate := testNow.AddDate(0, 0, -5).Format("2006-01-02T15:04:05")

	deposit := valuation.RawCashEvent{Kind: "DEPOSIT", Amount: "1000", Date: depositDate}
	buyCash := valuation.RawCashEvent{Kind: "STOCK_BUY", Amount: "501", Date: tradeDate}
	buyTrade := valuation.RawTradeEvent{Symbol: "AAPL", Quantity: "5", Price: "100", Commission: "1", Side: "BUY", Date: tradeDate}

	_, err := svc.AddCashEvent(ctx, userID, deposit)
	require.NoError(t, err)
	_, err = svc.AddCashEvent(ctx, userID, buyCash)
	require.NoError(t, err)
	trade, err := svc.AddTradeEvent(ctx, userID, buyTrade)
	require.NoError(t, err)

	before, err := svc.PortfolioHistory(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, before)

	// deleting the trade also removes its STOCK_BUY wallet entry
	require.NoError(t, svc.DeleteTradeEvent(ctx, userID, trade.ID))

	wallet, err := svc.Wallet(ctx, userID)
	require.NoError(t, err)
	require.Len(t, wallet.Events, 1)
	assert.Equal(t, model.CashDeposit, wallet.Events[0].Kind)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(1000)))

	emptied, err := svc.PortfolioHistory(ctx, userID)
	require.NoError(t, err)
	assert.NotEqual(t, before, emptied)

	_, err = svc.AddCashEvent(ctx, userID, buyCash)
	require.NoError(t, err)
	_, err = svc.AddTradeEvent(ctx, userID, buyTrade)
	require.NoError(t, err)

	after, err := svc.PortfolioHistory(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}
