// Command backtest_runner simulates a registered strategy over a historical
// candle file and prints the full result as JSON. It exits non-zero when the
// simulation fails so it can gate CI and batch jobs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"copyTradeEngine/internal/adapters/logger"
	"copyTradeEngine/internal/backtest"
	"copyTradeEngine/internal/domain"
	"copyTradeEngine/internal/ports"
	"copyTradeEngine/internal/strategy"
	"copyTradeEngine/internal/strategy/strategies"
	"copyTradeEngine/internal/utils"
)

func main() {
	var (
		inputPath   = flag.String("input", "", "candle file, .csv or .json (required)")
		strategyRef = flag.String("strategy", "ma_crossover", "registered strategy to simulate")
		configJSON  = flag.String("config", "{}", "simulation parameters as a JSON object")
		pair        = flag.String("pair", "ETHUSDT", "trading pair the candles belong to")
		resolution  = flag.String("resolution", "1m", "candle resolution of the input")
		logLevel    = flag.String("log-level", "WARN", "log verbosity")
	)
	flag.Parse()

	if *inputPath == "" {
		flag.Usage()
		log.Fatal("FATAL: -input is required")
	}

	appLogger := logger.NewStdLogger(logger.ParseLevel(*logLevel))

	candles, err := loadCandles(*inputPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load candles: %v", err)
	}

	var taskCfg map[string]float64
	if err := json.Unmarshal([]byte(*configJSON), &taskCfg); err != nil {
		log.Fatalf("FATAL: Failed to parse -config: %v", err)
	}

	registry := strategy.NewRegistry()
	if err := registry.Register("ma_crossover", func() ports.Strategy { return strategies.NewMACrossover() }); err != nil {
		log.Fatalf("FATAL: Failed to register strategies: %v", err)
	}
	module, err := registry.Load(*strategyRef)
	if err != nil {
		log.Fatalf("FATAL: Failed to load strategy: %v", err)
	}

	sim, err := backtest.NewSimulator(appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize simulator: %v", err)
	}

	settings := &domain.Settings{
		StrategyID: *strategyRef,
		Pair:       *pair,
		Resolution: *resolution,
	}
	result, err := sim.Run(context.Background(), module, domain.NewFrame(candles), taskCfg, settings)
	if err != nil {
		log.Fatalf("FATAL: Backtest failed: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("FATAL: Failed to encode result: %v", err)
	}
	fmt.Println(string(out))

	if !result.Success {
		os.Exit(1)
	}
}

// loadCandles reads the input by extension: CSV with a header row, or a
// JSON array of candles.
func loadCandles(path string) ([]*domain.Candle, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return utils.ReadCandlesFromCSV(path)
	case ".json":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var candles []*domain.Candle
		if err := json.Unmarshal(raw, &candles); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return candles, nil
	default:
		return nil, fmt.Errorf("unsupported input format %q, want .csv or .json", filepath.Ext(path))
	}
}
