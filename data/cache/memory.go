package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/borsaapp/portfolio_backend/config"
	"github.com/borsaapp/portfolio_backend/internal/model"
)

// ErrCacheMiss reports an absent or expired entry from the in-memory
// cache; the redis variant surfaces redis.Nil for the same condition.
var ErrCacheMiss = errors.New("cache miss")

type memoryEntry struct {
	value     any
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache with the same surface as
// RedisCache, used when redis is disabled in config. Expired entries
// are dropped lazily on read and on Flush.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	cfg     *config.Config
	now     func() time.Time
}

func NewMemoryCache(cfg *config.Config) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (m *MemoryCache) get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (m *MemoryCache) set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
}

func (m *MemoryCache) GetHistory(ctx context.Context, userID int64) ([]model.ChartPoint, error) {
	v, ok := m.get(historyKey(userID))
	if !ok {
		return nil, ErrCacheMiss
	}
	return v.([]model.ChartPoint), nil
}

func (m *MemoryCache) SetHistory(ctx context.Context, userID int64, points []model.ChartPoint) error {
	m.set(historyKey(userID), points, m.cfg.Cache.HistoryExpiration)
	return nil
}

func (m *MemoryCache) FlushUserCache(ctx context.Context, userID int64) error {
	prefix := strings.TrimSuffix(userPrefix(userID), "*")

	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *MemoryCache) GetPrices(ctx context.Context, symbol, interval string, start time.Time) ([]model.PricePoint, error) {
	v, ok := m.get(pricesKey(symbol, interval, start))
	if !ok {
		return nil, ErrCacheMiss
	}
	return v.([]model.PricePoint), nil
}

func (m *MemoryCache) SetPrices(ctx context.Context, symbol, interval string, start time.Time, points []model.PricePoint) error {
	m.set(pricesKey(symbol, interval, start), points, m.cfg.Cache.PricesExpiration)
	return nil
}
