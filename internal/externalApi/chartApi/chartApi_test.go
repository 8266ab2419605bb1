package chartApi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borsaapp/portfolio_backend/config"
)

func newTestApi(t *testing.T, handler http.HandlerFunc) *ChartApi {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.API.Timeout = 5 * time.Second
	cfg.API.ChartApi.Url = srv.URL
	return New(cfg)
}

func TestGetCloseHistoryParsesResponse(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.URL.Query().Get("period1"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"chart": {
				"result": [{
					"timestamp": [1704067200, 1704153600, 1704240000],
					"indicators": {"quote": [{"close": [55.5, null, 57.25]}]}
				}],
				"error": null
			}
		}`))
	})

	points, err := api.GetCloseHistory(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), "1d")
	require.NoError(t, err)

	// the null close in the middle is dropped
	require.Len(t, points, 2)
	assert.Equal(t, time.Unix(1704067200, 0).UTC(), points[0].Date)
	assert.Equal(t, "55.5", points[0].Close.String())
	assert.Equal(t, "57.25", points[1].Close.String())
}

func TestGetCloseHistoryProviderError(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{
			"chart": {
				"result": null,
				"error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}
			}
		}`))
	})

	_, err := api.GetCloseHistory(context.Background(), "NOPE", time.Now().AddDate(0, -1, 0), "1d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not Found")
}

func TestGetCloseHistoryMismatchedLengths(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"chart": {
				"result": [{
					"timestamp": [1704067200, 1704153600],
					"indicators": {"quote": [{"close": [55.5]}]}
				}],
				"error": null
			}
		}`))
	})

	_, err := api.GetCloseHistory(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), "1d")
	assert.Error(t, err)
}
