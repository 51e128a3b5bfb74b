package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/propstack/propquery/internal/api"
	"github.com/propstack/propquery/internal/cache"
	"github.com/propstack/propquery/internal/config"
	"github.com/propstack/propquery/internal/correct"
	"github.com/propstack/propquery/internal/engine"
	"github.com/propstack/propquery/internal/learning"
	"github.com/propstack/propquery/internal/metrics"
	"github.com/propstack/propquery/internal/propstore"
	"github.com/propstack/propquery/internal/schema"
	"github.com/propstack/propquery/internal/services"
	"github.com/propstack/propquery/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting propquery", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	var valkeyCloser cache.Provider
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			valkeyCloser = provider
		}
	}
	if valkeyCloser != nil {
		defer valkeyCloser.Close()
	}

	db, err := propstore.Open(cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open property store", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Store.SeedPath != "" {
		if err := propstore.SeedFromFile(context.Background(), db, cfg.Store.SeedPath, logger); err != nil {
			logger.Error("failed to seed property store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	learningStore, err := learning.Open(cfg.Learning.Path, logger, cacheProvider, cfg.Cache.SimilarEpisodesTTL)
	if err != nil {
		logger.Error("failed to open learning store", slog.Any("error", err))
		os.Exit(1)
	}
	defer learningStore.Close()

	mapper := schema.NewMapper()
	executor := propstore.NewExecutor(db, logger, cfg.Store.QueryTimeout, cfg.Store.MaxRows)
	corrector := correct.NewCorrector(logger, mapper, learningStore)
	loop := engine.NewLoop(logger, mapper, executor, corrector, learningStore)

	queryService := services.NewQueryService(logger, loop, learningStore)
	handlers := api.NewHandlers(logger, queryService)

	server, err := api.NewServer(cfg.Server, handlers)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("propquery stopped")
}
