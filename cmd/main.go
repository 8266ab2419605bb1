package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/borsaapp/portfolio_backend/config"
	"github.com/borsaapp/portfolio_backend/data"
	"github.com/borsaapp/portfolio_backend/data/cache"
	"github.com/borsaapp/portfolio_backend/data/repository/flatfile"
	"github.com/borsaapp/portfolio_backend/data/repository/postgres"
	"github.com/borsaapp/portfolio_backend/internal/externalApi/chartApi"
	"github.com/borsaapp/portfolio_backend/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/borsaapp/portfolio_backend/internal/reportGenerator/xlsxGenerator"
	"github.com/borsaapp/portfolio_backend/internal/scheduler"
	"github.com/borsaapp/portfolio_backend/internal/service/portfolioService"
	"github.com/borsaapp/portfolio_backend/internal/transport/rest"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var repo portfolioService.Repository
	switch cfg.Storage.Backend {
	case "flatfile":
		flatRepo, err := flatfile.NewFlatfile(cfg)
		if err != nil {
			slog.Error("failed to open flatfile storage", slog.String("err", err.Error()))
			panic(err)
		}
		repo = flatRepo
	default:
		pgClient := data.NewPostgresClient(cfg)
		defer pgClient.Close()
		repo = postgres.NewPostgres(cfg, pgClient)
	}

	var portfolioCache portfolioService.Cache
	if cfg.Redis.Enabled {
		redisClient := data.NewRedisClient(cfg)
		defer redisClient.Close()
		portfolioCache = cache.NewRedisCache(redisClient, cfg)
	} else {
		portfolioCache = cache.NewMemoryCache(cfg)
	}

	chartApiClient := chartApi.New(cfg)

	reportGenerator := xlsxGenerator.New()

	var cloudStorage portfolioService.CloudStorage
	if cfg.GoogleDrive.Enabled {
		cloudStorage = googleDriveApi.New(ctx, cfg)
	}

	portfolioSrv := portfolioService.New(cfg, repo, portfolioCache, chartApiClient, reportGenerator, cloudStorage)

	sched := scheduler.New()
	sched.NewIntervalJob("warm price cache", portfolioSrv.WarmPriceCache, cfg.Jobs.WarmPricesInterval, true)
	if cfg.GoogleDrive.Enabled {
		sched.NewCrontabJob("cleanup cloud storage", portfolioSrv.CleanupCloudStorage, cfg.Jobs.DriveCleanupCrontab, false)
	}
	sched.Start()
	defer sched.Stop()

	server := rest.NewServer(cfg, rest.NewController(portfolioSrv))

	go func() {
		if err := server.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", slog.String("err", err.Error()))
		}
	}()
	slog.Info("http server started", slog.Int("port", cfg.HTTP.Port))

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", slog.String("err", err.Error()))
	}
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
