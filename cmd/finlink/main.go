package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finlink/internal/amqp"
	"finlink/internal/backend"
	"finlink/internal/config"
	apphttp "finlink/internal/http"
	applog "finlink/internal/log"
	"finlink/internal/provider"
	"finlink/internal/provider/gateway"
	providermem "finlink/internal/provider/memory"
	"finlink/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

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

	// Provider: the gateway client when configured, the in-process fake in
	// demo mode.
	var source provider.Source
	if cfg.ProviderGatewayURL != "" {
		source, err = gateway.New(cfg.ProviderGatewayURL, cfg.ProviderGatewayKey, cfg.SyncCallTimeout)
		if err != nil {
			logger.Error("Failed to initialize provider gateway client", "error", err)
			os.Exit(1)
		}
		logger.Info("Initialized provider gateway client", "url", cfg.ProviderGatewayURL)
	} else {
		source = providermem.New(nil)
		logger.Warn("No PROVIDER_GATEWAY_URL configured, using in-process provider fake")
	}

	// Services
	engine := services.NewSyncEngine(st, source, services.SyncEngineConfig{
		MaxPagesPerSync: cfg.SyncMaxPages,
		CallTimeout:     cfg.SyncCallTimeout,
	})
	budgets := services.NewBudgetService(st, st)
	pager := services.NewTransactionPager(st)
	taxonomy := services.NewTaxonomyService(source, 0)

	// Optional AMQP publisher for async sync requests
	opts := apphttp.Options{}
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, async sync disabled", "error", err)
		} else {
			defer amqpClient.Close()
			opts.Publisher = amqpClient
			logger.Info("Initialized AMQP publisher",
				"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, st, engine, budgets, pager, taxonomy, opts)
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting finlink server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
