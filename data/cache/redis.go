package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/borsaapp/portfolio_backend/config"
	"github.com/borsaapp/portfolio_backend/internal/model"
	"github.com/borsaapp/portfolio_backend/utils"
)

func historyKey(userID int64) string {
	return fmt.Sprintf("user_%d_portfolio_history", userID)
}

func userPrefix(userID int64) string {
	return fmt.Sprintf("user_%d_*", userID)
}

func pricesKey(symbol, interval string, start time.Time) string {
	return fmt.Sprintf("prices_%s_%s_%s", symbol, interval, start.Format("2006-01-02"))
}

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func (r *RedisCache) GetHistory(ctx context.Context, userID int64) ([]model.ChartPoint, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetHistory start", slog.String("rqID", rqID))

	res, err := r.redis.Get(ctx, historyKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", historyKey(userID)))
		}
		return nil, err
	}

	var points []model.ChartPoint
	err = json.Unmarshal([]byte(res), &points)
	if err != nil {
		slog.Error(
			"can't unmarshall points in GetHistory",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return nil, errors.New("can't unmarshall points")
	}

	slog.Debug("GetHistory finished", slog.String("rqID", rqID))

	return points, nil
}

func (r *RedisCache) SetHistory(ctx context.Context, userID int64, points []model.ChartPoint) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetHistory start", slog.String("rqID", rqID))

	raw, err := json.Marshal(points)
	if err != nil {
		slog.Error("can't marshall points in SetHistory", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return errors.New("can't marshall points")
	}

	_, err = r.redis.Set(ctx, historyKey(userID), raw, r.cfg.Cache.HistoryExpiration).Result()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", historyKey(userID)))
		return err
	}

	slog.Debug("SetHistory completed", slog.String("rqID", rqID))

	return nil
}

// FlushUserCache drops every cached series for the user. Called after
// any ledger mutation so stale valuations never outlive an edit.
func (r *RedisCache) FlushUserCache(ctx context.Context, userID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("FlushUserCache start", slog.String("rqID", rqID))

	iter := r.redis.Scan(ctx, 0, userPrefix(userID), 0).Iterator()
	for iter.Next(ctx) {
		if err := r.redis.Del(ctx, iter.Val()).Err(); err != nil {
			slog.Error("failed on redis.Del", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", iter.Val()))
			return err
		}
	}
	if err := iter.Err(); err != nil {
		slog.Error("failed on scan iteration", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("FlushUserCache completed", slog.String("rqID", rqID))

	return nil
}

func (r *RedisCache) GetPrices(ctx context.Context, symbol, interval string, start time.Time) ([]model.PricePoint, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	key := pricesKey(symbol, interval, start)
	slog.Debug("GetPrices start", slog.String("rqID", rqID), slog.String("key", key))

	res, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		}
		return nil, err
	}

	var points []model.PricePoint
	err = json.Unmarshal([]byte(res), &points)
	if err != nil {
		slog.Error(
			"can't unmarshall points in GetPrices",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return nil, errors.New("can't unmarshall points")
	}

	slog.Debug("GetPrices finished", slog.String("rqID", rqID))

	return points, nil
}

func (r *RedisCache) SetPrices(ctx context.Context, symbol, interval string, start time.Time, points []model.PricePoint) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	key := pricesKey(symbol, interval, start)
	slog.Debug("SetPrices start", slog.String("rqID", rqID), slog.String("key", key))

	raw, err := json.Marshal(points)
	if err != nil {
		slog.Error("can't marshall points in SetPrices", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return errors.New("can't marshall points")
	}

	_, err = r.redis.Set(ctx, key, raw, r.cfg.Cache.PricesExpiration).Result()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return err
	}

	slog.Debug("SetPrices completed", slog.String("rqID", rqID))

	return nil
}
