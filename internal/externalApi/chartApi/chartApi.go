package chartApi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/borsaapp/portfolio_backend/config"
	"github.com/borsaapp/portfolio_backend/internal/model"
	"github.com/borsaapp/portfolio_backend/internal/model/chartModel"
	"github.com/borsaapp/portfolio_backend/utils"
)

type ChartApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *ChartApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.ChartApi.Url)
	return &ChartApi{client: client}
}

// GetCloseHistory fetches close prices for one symbol from start up to
// now at the given interval ("1d" or "1h"). Buckets the provider
// reports with a null close are skipped.
func (a *ChartApi) GetCloseHistory(ctx context.Context, symbol string, start time.Time, interval string) ([]model.PricePoint, error) {
	rqId := utils.GetRequestIDFromCtx(ctx)
	url := fmt.Sprintf("/v8/finance/chart/%s", symbol)
	params := map[string]string{
		"period1":  strconv.FormatInt(start.Unix(), 10),
		"period2":  strconv.FormatInt(time.Now().Unix(), 10),
		"interval": interval,
	}

	slog.Debug("start ChartApi.GetCloseHistory request", slog.String("rqID", rqId), slog.String("symbol", symbol))

	resp, err := a.client.R().
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		SetContext(ctx).
		Get(url)

	if err != nil {
		slog.Error("error while dialing ChartApi", slog.String("err", err.Error()), slog.String("rqID", rqId), slog.String("symbol", symbol))
		return nil, err
	}

	rawResponse := chartModel.RawChartResponse{}
	err = json.Unmarshal(resp.Body(), &rawResponse)
	if err != nil {
		slog.Error("can't unmarshall response into chartModel.RawChartResponse", slog.String("err", err.Error()), slog.String("rqID", rqId))
		return nil, err
	}

	points, err := a.parseRawChartResponse(rawResponse)
	if err != nil {
		slog.Error("can't parse raw data", slog.String("err", err.Error()), slog.String("rqID", rqId), slog.String("symbol", symbol))
		return nil, err
	}

	slog.Debug("ChartApi.GetCloseHistory request complete", slog.String("rqID", rqId), slog.String("symbol", symbol))

	return points, nil
}

func (a *ChartApi) parseRawChartResponse(raw chartModel.RawChartResponse) ([]model.PricePoint, error) {
	if raw.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error: %s (%s)", raw.Chart.Error.Code, raw.Chart.Error.Description)
	}

	if len(raw.Chart.Result) == 0 {
		return nil, errors.New("empty chart result")
	}

	result := raw.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, errors.New("no quote data in chart result")
	}

	closes := result.Indicators.Quote[0].Close
	if len(closes) != len(result.Timestamp) {
		return nil, errors.New("lengths timestamp != close")
	}

	points := make([]model.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if closes[i] == nil {
			continue
		}
		points = append(points, model.PricePoint{
			Date:  time.Unix(ts, 0).UTC(),
			Close: decimal.NewFromFloat(*closes[i]),
		})
	}

	return points, nil
}
