package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/worker"
)

func main() {
	envErr := cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info", log.FormatText))
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentWorker)
	if envErr != nil {
		logger.Warn("Failed to load .env file", log.FieldError, envErr)
	}

	logger.Info("Starting fintrack-worker")

	// Alerts must outlive the process and be shared with the API.
	if backend.BackendType(cfg.DataBackend) != backend.SQLiteBackend {
		logger.Error("The anomaly worker needs the sqlite backend", log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	normalizer, err := cli.Normalizer(cfg)
	if err != nil {
		logger.Error("Invalid time zone", "timezone", cfg.Timezone, log.FieldError, err)
		os.Exit(1)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// The worker only consumes; it never publishes.
	bcfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err)
		os.Exit(1)
	}
	defer res.Close()

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP_URL not set, relying on periodic reconcile only",
			"interval", cfg.ReconcileInterval)
	}

	w := worker.NewAnomalyWorker(res.Store, res.Alerts, normalizer, cfg.AnomalyZThreshold, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Catch up on anything that changed while the worker was down.
	if err := w.StartupCheck(ctx); err != nil {
		logger.Error("Startup anomaly check failed", log.FieldError, err)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeDatasetChanged(ctx, w.HandleDatasetChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldOperation, log.OpConsume, log.FieldError, err)
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(cfg.ReconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.Reconcile(ctx); err != nil {
					logger.Error("Periodic reconcile failed", log.FieldError, err)
				}
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete", log.FieldRevision, w.LastRevision())
}
