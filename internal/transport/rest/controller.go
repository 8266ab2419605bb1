package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/borsaapp/portfolio_backend/internal/model"
	"github.com/borsaapp/portfolio_backend/internal/service"
	"github.com/borsaapp/portfolio_backend/internal/valuation"
	"github.com/borsaapp/portfolio_backend/utils"
)

// defaultUserID is the identity used when the client sends no
// X-User-ID header, matching single-user desktop deployments.
const defaultUserID = 1

const eventDateLayout = "2006-01-02T15:04:05"

type PortfolioService interface {
	AddCashEvent(ctx context.Context, userID int64, raw valuation.RawCashEvent) (model.CashEvent, error)
	UpdateCashEvent(ctx context.Context, userID, id int64, raw valuation.RawCashEvent) (model.CashEvent, error)
	DeleteCashEvent(ctx context.Context, userID, id int64) error
	Wallet(ctx context.Context, userID int64) (model.Wallet, error)
	AddTradeEvent(ctx context.Context, userID int64, raw valuation.RawTradeEvent) (model.TradeEvent, error)
	UpdateTradeEvent(ctx context.Context, userID, id int64, raw valuation.RawTradeEvent) (model.TradeEvent, error)
	DeleteTradeEvent(ctx context.Context, userID, id int64) error
	Transactions(ctx context.Context, userID int64) ([]model.TradeEvent, error)
	HoldingsSummary(ctx context.Context, userID int64) ([]model.Holding, error)
	PortfolioHistory(ctx context.Context, userID int64) ([]model.ChartPoint, error)
	Reset(ctx context.Context, userID int64) error
	ExportReport(ctx context.Context, userID int64) (string, error)
}

type Controller struct {
	service PortfolioService
}

func NewController(service PortfolioService) *Controller {
	return &Controller{service: service}
}

type cashEventDTO struct {
	ID     int64   `json:"id"`
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
}

func toCashEventDTO(e model.CashEvent) cashEventDTO {
	return cashEventDTO{
		ID:     e.ID,
		Type:   string(e.Kind),
		Amount: e.Amount.InexactFloat64(),
		Date:   e.Date.Format(eventDateLayout),
	}
}

type tradeEventDTO struct {
	ID              int64   `json:"id"`
	Symbol          string  `json:"symbol"`
	Quantity        float64 `json:"quantity"`
	Price           float64 `json:"price"`
	TotalCost       float64 `json:"totalCost"`
	TotalCommission float64 `json:"totalCommission"`
	Date            string  `json:"date"`
	Type            string  `json:"type"`
}

func toTradeEventDTO(e model.TradeEvent) tradeEventDTO {
	return tradeEventDTO{
		ID:              e.ID,
		Symbol:          e.Symbol,
		Quantity:        e.Quantity.InexactFloat64(),
		Price:           e.Price.InexactFloat64(),
		TotalCost:       e.TotalCost.InexactFloat64(),
		TotalCommission: e.TotalCommission.InexactFloat64(),
		Date:            e.Date.Format(eventDateLayout),
		Type:            string(e.Side),
	}
}

type holdingDTO struct {
	Symbol          string  `json:"symbol"`
	Quantity        float64 `json:"quantity"`
	TotalCost       float64 `json:"totalCost"`
	TotalCommission float64 `json:"totalCommission"`
	AverageCost     float64 `json:"averageCost"`
}

func userID(r *http.Request) int64 {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return defaultUserID
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return defaultUserID
	}
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", slog.String("err", err.Error()))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	rqID := utils.GetRequestIDFromCtx(r.Context())
	switch {
	case errors.Is(err, service.ErrMalformedEvent):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		slog.Error("request failed", slog.String("rqID", rqID), slog.String("path", r.URL.Path), slog.String("err", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func idFromQuery(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
}

func (c *Controller) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := c.service.Wallet(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	transactions := make([]cashEventDTO, 0, len(wallet.Events))
	for _, e := range wallet.Events {
		transactions = append(transactions, toCashEventDTO(e))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"balance":      wallet.Balance.InexactFloat64(),
		"transactions": transactions,
	})
}

type cashEventRequest struct {
	ID     int64           `json:"id"`
	Type   string          `json:"type"`
	Amount json.RawMessage `json:"amount"`
	Date   string          `json:"date"`
}

// rawNumber renders a JSON field that may arrive as a number or a
// string into the plain string the normalizer expects.
func rawNumber(raw json.RawMessage) string {
	s := string(raw)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	if s == "null" {
		return ""
	}
	return s
}

func (c *Controller) PostWallet(w http.ResponseWriter, r *http.Request) {
	var req cashEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	event, err := c.service.AddCashEvent(r.Context(), userID(r), valuation.RawCashEvent{
		Kind:   req.Type,
		Amount: rawNumber(req.Amount),
		Date:   req.Date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": toCashEventDTO(event)})
}

func (c *Controller) PutWallet(w http.ResponseWriter, r *http.Request) {
	var req cashEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	event, err := c.service.UpdateCashEvent(r.Context(), userID(r), req.ID, valuation.RawCashEvent{
		Kind:   req.Type,
		Amount: rawNumber(req.Amount),
		Date:   req.Date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": toCashEventDTO(event)})
}

func (c *Controller) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	id, err := idFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := c.service.DeleteCashEvent(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (c *Controller) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	holdings, err := c.service.HoldingsSummary(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]holdingDTO, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, holdingDTO{
			Symbol:          h.Symbol,
			Quantity:        h.Quantity.InexactFloat64(),
			TotalCost:       h.TotalCost.InexactFloat64(),
			TotalCommission: h.TotalCommission.InexactFloat64(),
			AverageCost:     h.AverageCost.InexactFloat64(),
		})
	}

	writeJSON(w, http.StatusOK, out)
}

type tradeEventRequest struct {
	ID         int64           `json:"id"`
	Symbol     string          `json:"symbol"`
	Quantity   json.RawMessage `json:"quantity"`
	Price      json.RawMessage `json:"price"`
	Commission json.RawMessage `json:"commission"`
	Date       string          `json:"date"`
	Type       string          `json:"type"`
}

func (req tradeEventRequest) toRaw() valuation.RawTradeEvent {
	return valuation.RawTradeEvent{
		Symbol:     req.Symbol,
		Quantity:   rawNumber(req.Quantity),
		Price:      rawNumber(req.Price),
		Commission: rawNumber(req.Commission),
		Side:       req.Type,
		Date:       req.Date,
	}
}

func (c *Controller) PostPortfolio(w http.ResponseWriter, r *http.Request) {
	var req tradeEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	event, err := c.service.AddTradeEvent(r.Context(), userID(r), req.toRaw())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": toTradeEventDTO(event)})
}

func (c *Controller) GetTransactions(w http.ResponseWriter, r *http.Request) {
	events, err := c.service.Transactions(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]tradeEventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toTradeEventDTO(e))
	}

	writeJSON(w, http.StatusOK, out)
}

func (c *Controller) PutTransactions(w http.ResponseWriter, r *http.Request) {
	var req tradeEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	event, err := c.service.UpdateTradeEvent(r.Context(), userID(r), req.ID, req.toRaw())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": toTradeEventDTO(event)})
}

func (c *Controller) DeleteTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := idFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := c.service.DeleteTradeEvent(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (c *Controller) GetPortfolioHistory(w http.ResponseWriter, r *http.Request) {
	points, err := c.service.PortfolioHistory(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, points)
}

func (c *Controller) PostReset(w http.ResponseWriter, r *http.Request) {
	if err := c.service.Reset(r.Context(), userID(r)); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (c *Controller) PostReportExport(w http.ResponseWriter, r *http.Request) {
	link, err := c.service.ExportReport(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "link": link})
}
