package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	envErr := cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info", log.FormatText))
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		logger.Warn("Failed to load .env file", log.FieldError, envErr)
	}

	normalizer, err := cli.Normalizer(cfg)
	if err != nil {
		logger.Error("Invalid time zone", "timezone", cfg.Timezone, log.FieldError, err)
		os.Exit(1)
	}

	res := cli.InitBackend(context.Background(), logger, cfg)

	report := services.NewReportService(res.Store, services.ReportConfig{
		Location:   normalizer.Location,
		Horizon:    cfg.ForecastHorizon,
		ZThreshold: cfg.AnomalyZThreshold,
		CacheSize:  cfg.ReportCacheSize,
		CacheTTL:   cfg.ReportCacheTTL,
		Logger:     logger,
	})
	ledger := services.NewLedgerService(res.Store, res.Publisher, normalizer, logger)

	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache))
	cacheManager.Register(report.Cache())
	cacheManager.StartCleanup(time.Minute)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}, report, ledger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		log.FieldBackend, res.Type,
		"change_feed", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
