package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/borsaapp/portfolio_backend/config"
)

type Server struct {
	httpServer *http.Server
}

func NewServer(cfg *config.Config, controller *Controller) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/wallet", controller.GetWallet)
	mux.HandleFunc("POST /api/wallet", controller.PostWallet)
	mux.HandleFunc("PUT /api/wallet", controller.PutWallet)
	mux.HandleFunc("DELETE /api/wallet", controller.DeleteWallet)

	mux.HandleFunc("GET /api/portfolio", controller.GetPortfolio)
	mux.HandleFunc("POST /api/portfolio", controller.PostPortfolio)
	mux.HandleFunc("GET /api/portfolio/history", controller.GetPortfolioHistory)

	mux.HandleFunc("GET /api/transactions", controller.GetTransactions)
	mux.HandleFunc("PUT /api/transactions", controller.PutTransactions)
	mux.HandleFunc("DELETE /api/transactions", controller.DeleteTransactions)

	mux.HandleFunc("POST /api/reset", controller.PostReset)
	mux.HandleFunc("POST /api/report/export", controller.PostReportExport)

	handler := withRequestID(withRequestLogging(mux))

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:      handler,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
	}
}

func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
