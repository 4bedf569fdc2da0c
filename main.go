package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"

	"copyTradeEngine/config"
	"copyTradeEngine/internal/adapters/binanceclient"
	"copyTradeEngine/internal/adapters/logger"
	"copyTradeEngine/internal/adapters/redisqueue"
	"copyTradeEngine/internal/adapters/reporter"
	"copyTradeEngine/internal/adapters/sqlite"
	"copyTradeEngine/internal/backtest"
	"copyTradeEngine/internal/executor"
	"copyTradeEngine/internal/obs"
	"copyTradeEngine/internal/ports"
	"copyTradeEngine/internal/risk"
	"copyTradeEngine/internal/strategy"
	"copyTradeEngine/internal/strategy/strategies"
	"copyTradeEngine/internal/worker"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	var appLogger ports.Logger
	if cfg.LogFormat == "text" {
		appLogger = logger.NewStdLogger(cfg.LogLevel)
	} else {
		appLogger = logger.NewZerologLogger(cfg.LogLevel)
	}
	appLogger.Info(context.Background(), "logger initialized", map[string]interface{}{
		"level": cfg.LogLevel.String(), "format": cfg.LogFormat,
	})

	// Shutdown on SIGINT/SIGTERM: the worker stops popping and finishes the
	// task in flight.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Task Queue
	queue, err := redisqueue.New(redisqueue.Config{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		QueueName: cfg.QueueName,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to connect to task queue")
		log.Fatalf("FATAL: Failed to connect to task queue: %v", err)
	}
	defer queue.Close()

	// 4. Trade Journal
	journal, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to open trade journal")
		log.Fatalf("FATAL: Failed to open trade journal: %v", err)
	}
	defer journal.Close()

	// 5. Trade Reporter (optional)
	var tradeReporter ports.TradeReporter
	if cfg.ReportingEndpoint != "" {
		tradeReporter, err = reporter.New(reporter.Config{
			Endpoint: cfg.ReportingEndpoint,
			Timeout:  cfg.ReportingTimeout,
			Logger:   appLogger,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trade reporter")
			log.Fatalf("FATAL: Failed to initialize trade reporter: %v", err)
		}
	}

	// 6. Strategy Registry
	registry := strategy.NewRegistry()
	if err := registry.Register("ma_crossover", func() ports.Strategy { return strategies.NewMACrossover() }); err != nil {
		log.Fatalf("FATAL: Failed to register strategies: %v", err)
	}

	// 7. Executor and Simulator
	exec, err := executor.New(executor.Config{
		MaxParallel:       cfg.MaxParallel,
		SubscriberTimeout: cfg.SubscriberTimeout,
		Risk: risk.Config{
			CommissionRate: cfg.CommissionRate,
			GSTRate:        cfg.GSTRate,
			MinQuantity:    cfg.MinQuantity,
		},
	}, binanceclient.Factory(cfg.IsTestnet, appLogger), tradeReporter, journal, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize executor: %v", err)
	}
	sim, err := backtest.NewSimulator(appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize simulator: %v", err)
	}

	// 8. Metrics (optional)
	var metrics *obs.Metrics
	if cfg.MetricsAddr != "" {
		metrics = obs.NewMetrics()
		go metrics.Serve(ctx, cfg.MetricsAddr, appLogger)
	}

	// 9. Worker loop
	w, err := worker.New(worker.Config{
		WorkerID:   cfg.WorkerID,
		PopTimeout: cfg.PopTimeout,
	}, queue, registry, exec, sim, metrics, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize worker: %v", err)
	}

	if err := w.Run(ctx); err != nil {
		appLogger.Error(context.Background(), err, "worker exited with error")
		log.Fatalf("FATAL: Worker exited with error: %v", err)
	}
	appLogger.Info(context.Background(), "worker shut down gracefully")
}
