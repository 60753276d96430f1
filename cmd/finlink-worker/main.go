package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finlink/internal/amqp"
	"finlink/internal/backend"
	"finlink/internal/config"
	applog "finlink/internal/log"
	"finlink/internal/provider"
	"finlink/internal/provider/gateway"
	providermem "finlink/internal/provider/memory"
	"finlink/internal/services"
	"finlink/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.LevelFromEnv(),
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting finlink-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store backend
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger)
	result, err := factory.CreateStore(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Store cleanup failed", "error", err)
			}
		}()
	}
	st := result.Store

	// Provider gateway
	var source provider.Source
	if cfg.ProviderGatewayURL != "" {
		source, err = gateway.New(cfg.ProviderGatewayURL, cfg.ProviderGatewayKey, cfg.SyncCallTimeout)
		if err != nil {
			logger.Error("Failed to initialize provider gateway client", "error", err)
			os.Exit(1)
		}
	} else {
		source = providermem.New(nil)
		logger.Warn("No PROVIDER_GATEWAY_URL configured, using in-process provider fake")
	}

	engine := services.NewSyncEngine(st, source, services.SyncEngineConfig{
		MaxPagesPerSync: cfg.SyncMaxPages,
		CallTimeout:     cfg.SyncCallTimeout,
	})
	syncWorker := worker.NewSyncWorker(st, engine, cfg.SyncConcurrency)

	// AMQP consumer
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// On startup, bring every known item up to date before waiting for
	// queued requests.
	logger.Info("Performing startup sync pass")
	if err := syncWorker.SyncAll(ctx); err != nil {
		logger.Error("Startup sync pass failed", "error", err)
		// Keep running, the periodic pass will retry.
	}

	go func() {
		if err := amqpClient.ConsumeLoop(ctx, cfg.AMQPURL, syncWorker.HandleSyncRequest); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	// Periodic full-estate sync
	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := syncWorker.SyncAll(ctx); err != nil {
					logger.Error("Periodic sync pass failed", "error", err)
				}
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker")
	cancel()

	// Give in-flight syncs a moment to finish at their last saved cursor.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
