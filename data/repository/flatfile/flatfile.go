package flatfile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/borsaapp/portfolio_backend/config"
	"github.com/borsaapp/portfolio_backend/data/repository"
	"github.com/borsaapp/portfolio_backend/internal/model"
)

var matchTolerance = decimal.RequireFromString("0.01")

type userLedger struct {
	CashEvents  []model.CashEvent  `json:"cashEvents"`
	TradeEvents []model.TradeEvent `json:"tradeEvents"`
}

// Flatfile is a single-process ledger store backed by one JSON file per
// user. It exists for local runs without Postgres; the whole ledger is
// kept in memory and rewritten on every mutation.
type Flatfile struct {
	mu     sync.Mutex
	dir    string
	users  map[int64]*userLedger
	nextID int64
}

type lockedKey struct{}

func NewFlatfile(cfg *config.Config) (*Flatfile, error) {
	f := &Flatfile{
		dir:    cfg.Storage.DataDir,
		users:  make(map[int64]*userLedger),
		nextID: 1,
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	if err := f.loadAll(); err != nil {
		return nil, err
	}

	return f, nil
}

func (f *Flatfile) loadAll() error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("read data dir: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "ledger_") || !strings.HasSuffix(name, ".json") {
			continue
		}

		userID, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, "ledger_"), ".json"), 10, 64)
		if err != nil {
			slog.Warn("skipping unrecognized ledger file", slog.String("file", name))
			continue
		}

		raw, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			return fmt.Errorf("read ledger file %s: %w", name, err)
		}

		ledger := &userLedger{}
		if err := json.Unmarshal(raw, ledger); err != nil {
			return fmt.Errorf("parse ledger file %s: %w", name, err)
		}

		f.users[userID] = ledger
		for _, e := range ledger.CashEvents {
			if e.ID >= f.nextID {
				f.nextID = e.ID + 1
			}
		}
		for _, e := range ledger.TradeEvents {
			if e.ID >= f.nextID {
				f.nextID = e.ID + 1
			}
		}
	}

	return nil
}

func (f *Flatfile) persist(userID int64) error {
	ledger, ok := f.users[userID]
	if !ok {
		return nil
	}

	raw, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	path := filepath.Join(f.dir, fmt.Sprintf("ledger_%d.json", userID))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}

	return nil
}

// save persists a user's ledger unless the context is inside
// WithinTransaction, where writes wait for commit.
func (f *Flatfile) save(ctx context.Context, userID int64) error {
	if held, ok := ctx.Value(lockedKey{}).(bool); ok && held {
		return nil
	}
	return f.persist(userID)
}

func (f *Flatfile) ledger(userID int64) *userLedger {
	ledger, ok := f.users[userID]
	if !ok {
		ledger = &userLedger{}
		f.users[userID] = ledger
	}
	return ledger
}

// lock takes the store mutex unless the context already holds it via
// WithinTransaction.
func (f *Flatfile) lock(ctx context.Context) (unlock func()) {
	if held, ok := ctx.Value(lockedKey{}).(bool); ok && held {
		return func() {}
	}
	f.mu.Lock()
	return f.mu.Unlock
}

// WithinTransaction serializes fn against all other mutations and rolls
// the in-memory state back when fn fails. File writes are deferred to
// commit so a failed reconciliation leaves the ledger untouched.
func (f *Flatfile) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := make(map[int64]*userLedger, len(f.users))
	for userID, ledger := range f.users {
		cp := &userLedger{
			CashEvents:  append([]model.CashEvent(nil), ledger.CashEvents...),
			TradeEvents: append([]model.TradeEvent(nil), ledger.TradeEvents...),
		}
		snapshot[userID] = cp
	}
	savedNextID := f.nextID

	err := fn(context.WithValue(ctx, lockedKey{}, true))
	if err != nil {
		f.users = snapshot
		f.nextID = savedNextID
		return err
	}

	for userID := range f.users {
		if err := f.save(ctx, userID); err != nil {
			f.users = snapshot
			f.nextID = savedNextID
			return err
		}
	}

	return nil
}

func (f *Flatfile) InsertCashEvent(ctx context.Context, userID int64, e model.CashEvent) (int64, error) {
	defer f.lock(ctx)()

	e.ID = f.nextID
	f.nextID++

	ledger := f.ledger(userID)
	ledger.CashEvents = append(ledger.CashEvents, e)

	return e.ID, f.save(ctx, userID)
}

func (f *Flatfile) UpdateCashEvent(ctx context.Context, userID int64, e model.CashEvent) error {
	defer f.lock(ctx)()

	ledger := f.ledger(userID)
	for i := range ledger.CashEvents {
		if ledger.CashEvents[i].ID == e.ID {
			ledger.CashEvents[i] = e
			return f.save(ctx, userID)
		}
	}

	return repository.ErrNotFound
}

func (f *Flatfile) GetCashEvent(ctx context.Context, userID, id int64) (model.CashEvent, error) {
	defer f.lock(ctx)()

	for _, e := range f.ledger(userID).CashEvents {
		if e.ID == id {
			return e, nil
		}
	}

	return model.CashEvent{}, repository.ErrNotFound
}

func (f *Flatfile) ListCashEvents(ctx context.Context, userID int64) ([]model.CashEvent, error) {
	defer f.lock(ctx)()

	events := append([]model.CashEvent(nil), f.ledger(userID).CashEvents...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].ID < events[j].ID })

	return events, nil
}

func (f *Flatfile) DeleteCashEvent(ctx context.Context, userID, id int64) error {
	defer f.lock(ctx)()

	ledger := f.ledger(userID)
	for i := range ledger.CashEvents {
		if ledger.CashEvents[i].ID == id {
			ledger.CashEvents = append(ledger.CashEvents[:i], ledger.CashEvents[i+1:]...)
			return f.save(ctx, userID)
		}
	}

	return repository.ErrNotFound
}

func (f *Flatfile) DeleteMatchingCashEvent(
	ctx context.Context,
	userID int64,
	dt time.Time,
	kinds []model.CashEventKind,
	amount decimal.Decimal,
) (bool, error) {
	defer f.lock(ctx)()

	ledger := f.ledger(userID)
	for i, e := range ledger.CashEvents {
		if !e.Date.Equal(dt) || !kindMatches(e.Kind, kinds) {
			continue
		}
		if e.Amount.Sub(amount).Abs().GreaterThanOrEqual(matchTolerance) {
			continue
		}
		ledger.CashEvents = append(ledger.CashEvents[:i], ledger.CashEvents[i+1:]...)
		return true, f.save(ctx, userID)
	}

	return false, nil
}

func kindMatches(kind model.CashEventKind, kinds []model.CashEventKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (f *Flatfile) InsertTradeEvent(ctx context.Context, userID int64, e model.TradeEvent) (int64, error) {
	defer f.lock(ctx)()

	e.ID = f.nextID
	f.nextID++

	ledger := f.ledger(userID)
	ledger.TradeEvents = append(ledger.TradeEvents, e)

	return e.ID, f.save(ctx, userID)
}

func (f *Flatfile) UpdateTradeEvent(ctx context.Context, userID int64, e model.TradeEvent) error {
	defer f.lock(ctx)()

	ledger := f.ledger(userID)
	for i := range ledger.TradeEvents {
		if ledger.TradeEvents[i].ID == e.ID {
			// symbol and side are immutable on update
			e.Symbol = ledger.TradeEvents[i].Symbol
			e.Side = ledger.TradeEvents[i].Side
			ledger.TradeEvents[i] = e
			return f.save(ctx, userID)
		}
	}

	return repository.ErrNotFound
}

func (f *Flatfile) GetTradeEvent(ctx context.Context, userID, id int64) (model.TradeEvent, error) {
	defer f.lock(ctx)()

	for _, e := range f.ledger(userID).TradeEvents {
		if e.ID == id {
			return e, nil
		}
	}

	return model.TradeEvent{}, repository.ErrNotFound
}

func (f *Flatfile) ListTradeEvents(ctx context.Context, userID int64) ([]model.TradeEvent, error) {
	defer f.lock(ctx)()

	events := append([]model.TradeEvent(nil), f.ledger(userID).TradeEvents...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].ID < events[j].ID })

	return events, nil
}

func (f *Flatfile) DeleteTradeEvent(ctx context.Context, userID, id int64) error {
	defer f.lock(ctx)()

	ledger := f.ledger(userID)
	for i := range ledger.TradeEvents {
		if ledger.TradeEvents[i].ID == id {
			ledger.TradeEvents = append(ledger.TradeEvents[:i], ledger.TradeEvents[i+1:]...)
			return f.save(ctx, userID)
		}
	}

	return repository.ErrNotFound
}

func (f *Flatfile) DeleteMatchingTradeEvent(
	ctx context.Context,
	userID int64,
	dt time.Time,
	side model.TradeSide,
	amount decimal.Decimal,
) (bool, error) {
	defer f.lock(ctx)()

	ledger := f.ledger(userID)
	for i, e := range ledger.TradeEvents {
		if !e.Date.Equal(dt) || e.Side != side {
			continue
		}
		impact := e.TotalCost.Add(e.TotalCommission)
		if side == model.TradeSell {
			impact = e.TotalCost.Sub(e.TotalCommission)
		}
		if impact.Sub(amount).Abs().GreaterThanOrEqual(matchTolerance) {
			continue
		}
		ledger.TradeEvents = append(ledger.TradeEvents[:i], ledger.TradeEvents[i+1:]...)
		return true, f.save(ctx, userID)
	}

	return false, nil
}

func (f *Flatfile) DeleteAllEvents(ctx context.Context, userID int64) error {
	defer f.lock(ctx)()

	f.users[userID] = &userLedger{}

	return f.save(ctx, userID)
}

func (f *Flatfile) ListHeldSymbols(ctx context.Context) ([]model.HeldSymbol, error) {
	defer f.lock(ctx)()

	firstTrade := make(map[string]time.Time)
	for _, ledger := range f.users {
		for _, e := range ledger.TradeEvents {
			if prev, ok := firstTrade[e.Symbol]; !ok || e.Date.Before(prev) {
				firstTrade[e.Symbol] = e.Date
			}
		}
	}

	symbols := make([]model.HeldSymbol, 0, len(firstTrade))
	for symbol, dt := range firstTrade {
		symbols = append(symbols, model.HeldSymbol{Symbol: symbol, FirstTrade: dt})
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Symbol < symbols[j].Symbol })

	return symbols, nil
}
