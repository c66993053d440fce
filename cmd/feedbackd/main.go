package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dominica-news/feedback/internal/api"
	"github.com/dominica-news/feedback/internal/reportstore"
	"github.com/dominica-news/feedback/pkg/config"
	"github.com/dominica-news/feedback/pkg/health"
	"github.com/dominica-news/feedback/pkg/logging"
	"github.com/dominica-news/feedback/pkg/metrics"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "feedbackd",
		Version:     version,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logging.SetGlobalLogger(logger)

	m := metrics.NewMetrics(metrics.DefaultConfig())

	// Watch the backend the clients depend on from the daemon's
	// vantage point and export probe latency and failures
	probeCfg := health.DefaultConfig(cfg.Backend.BaseURL)
	probeCfg.RequestTimeout = cfg.Probe.RequestTimeout
	probeCfg.CacheTTL = cfg.Probe.CacheTTL
	probeCfg.HealthyRatio = cfg.Probe.HealthyRatio
	if len(cfg.Probe.CriticalEndpoints) > 0 {
		probeCfg.CriticalEndpoints = cfg.Probe.CriticalEndpoints
	}
	probeCfg.Observer = m.ObserveProbe
	probe := health.NewProbe(probeCfg)

	backendHealthy := true
	stopMonitor := probe.StartMonitoring(cfg.Probe.MonitorInterval, func(overall health.OverallHealth) {
		if overall.IsHealthy == backendHealthy {
			return
		}
		backendHealthy = overall.IsHealthy
		if overall.IsHealthy {
			logger.Info("Backend recovered",
				"healthy_count", overall.HealthyCount,
				"total_count", overall.TotalCount,
			)
			return
		}
		logger.Warn("Backend degraded",
			"healthy_count", overall.HealthyCount,
			"total_count", overall.TotalCount,
			"error", overall.Err().Error(),
		)
	})
	defer stopMonitor()

	// The report store and cache are optional; without them the daemon
	// still accepts reports and logs them
	var repo *reportstore.Repository
	db, err := reportstore.NewDB(&cfg.Database)
	if err != nil {
		logger.Warn("Report store database unavailable, running degraded",
			"error", err.Error(),
		)
	} else {
		defer db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := db.Migrate(ctx); err != nil {
			cancel()
			log.Fatalf("Failed to migrate report store: %v", err)
		}
		cancel()
		repo = reportstore.NewRepository(db)
		logger.Info("Report store database connected")
	}

	var cache *reportstore.Cache
	cache, err = reportstore.NewCache(&cfg.Redis)
	if err != nil {
		logger.Warn("Report cache unavailable, running without it",
			"error", err.Error(),
		)
		cache = nil
	} else {
		defer cache.Close()
		logger.Info("Report cache connected")
	}

	server := api.NewServer(cfg, logger, m, repo, cache)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting feedback daemon",
			"addr", httpServer.Addr,
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down feedback daemon")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Forced shutdown: %v", err)
	}

	logger.Info("Feedback daemon stopped")
}

var version = "dev"
