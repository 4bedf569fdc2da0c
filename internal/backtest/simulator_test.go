package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyTradeEngine/internal/domain"
	"copyTradeEngine/internal/ports"
	"copyTradeEngine/internal/strategy"
)

type testLogger struct{}

func (testLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (testLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (testLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (testLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// stepStrategy scripts per-step behavior off the last close of the window:
// close 200 enters long, close 300 exits, close 250 raises a step error,
// close 400 signals a short entry (a reversal against an open long).
type stepStrategy struct{}

func (stepStrategy) Name() string { return "scripted" }
func (stepStrategy) GenerateSignals(ctx context.Context, frame *domain.Frame, settings *domain.Settings) (*domain.Frame, error) {
	return frame, nil
}
func (stepStrategy) GenerateSignal(ctx context.Context, window *domain.Frame, settings *domain.Settings, state map[string]interface{}) (domain.Signal, map[string]interface{}, error) {
	last := window.Last()
	switch last.Close {
	case 200:
		return domain.Signal{Action: domain.SignalLong, Price: last.Close}, state, nil
	case 300:
		return domain.Signal{Action: domain.SignalExitLong, Price: last.Close}, state, nil
	case 250:
		return domain.Signal{}, state, errors.New("indicator blew up")
	case 400:
		return domain.Signal{Action: domain.SignalShort, Price: last.Close}, state, nil
	}
	return domain.Signal{Action: domain.SignalHold, Price: last.Close}, state, nil
}

// vectorizedStrategy returns a canned trade list and declares its own
// initial capital, which must override the task-supplied value.
type vectorizedStrategy struct{ trades []*domain.Trade }

func (vectorizedStrategy) Name() string { return "vectorized" }
func (vectorizedStrategy) GenerateSignals(ctx context.Context, frame *domain.Frame, settings *domain.Settings) (*domain.Frame, error) {
	return frame, nil
}
func (s vectorizedStrategy) ExecuteTrades(ctx context.Context, frame *domain.Frame, params ports.BacktestParams) ([]*domain.Trade, error) {
	return s.trades, nil
}
func (vectorizedStrategy) DeclaredConfig() map[string]float64 {
	return map[string]float64{"initial_capital": 100}
}

// customStrategy returns whatever result it was given.
type customStrategy struct{ result *domain.BacktestResult }

func (customStrategy) Name() string { return "custom" }
func (customStrategy) GenerateSignals(ctx context.Context, frame *domain.Frame, settings *domain.Settings) (*domain.Frame, error) {
	return frame, nil
}
func (s customStrategy) Run(ctx context.Context, frame *domain.Frame, params ports.BacktestParams) (*domain.BacktestResult, error) {
	return s.result, nil
}

func loadModule(t *testing.T, s ports.Strategy) *strategy.Module {
	t.Helper()
	r := strategy.NewRegistry()
	require.NoError(t, r.Register(s.Name(), func() ports.Strategy { return s }))
	m, err := r.Load(s.Name())
	require.NoError(t, err)
	return m
}

func baseConfig() map[string]float64 {
	return map[string]float64{
		"initial_capital": 10000,
		"leverage":        1,
		"commission_rate": 0,
		"risk_per_trade":  0.1,
		"lookback_period": 50,
	}
}

// scriptedFrame builds 60 one-minute candles of close 100 with overrides at
// specific indexes. Lookback 50 means steps run for indexes 50..59.
func scriptedFrame(overrides map[int]float64) *domain.Frame {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]*domain.Candle, 60)
	for i := range candles {
		price := 100.0
		if v, ok := overrides[i]; ok {
			price = v
		}
		candles[i] = &domain.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Minute),
			Open:     price, High: price, Low: price, Close: price,
			Volume: 1,
		}
	}
	return domain.NewFrame(candles)
}

func newSimulator(t *testing.T) *Simulator {
	t.Helper()
	sim, err := NewSimulator(testLogger{})
	require.NoError(t, err)
	return sim
}

func TestCandleLoopEntryAndSignalExit(t *testing.T) {
	sim := newSimulator(t)
	module := loadModule(t, stepStrategy{})
	frame := scriptedFrame(map[int]float64{52: 200, 55: 300})

	res, err := sim.Run(context.Background(), module, frame, baseConfig(), &domain.Settings{Pair: "ETHUSDT"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Trades, 1)

	trade := res.Trades[0]
	assert.Equal(t, domain.Long, trade.Side)
	assert.Equal(t, 200.0, trade.EntryPrice)
	assert.Equal(t, 300.0, trade.ExitPrice)
	assert.Equal(t, domain.ReasonSignal, trade.Reason)
	assert.True(t, trade.ExitTime.After(trade.EntryTime))

	// One equity point per processed step.
	assert.Len(t, res.EquityCurve, 10)
	assert.InDelta(t, res.Metrics.FinalCapital-10000, res.Metrics.TotalPNL, 1e-9)
}

func TestCandleLoopDeterminism(t *testing.T) {
	sim := newSimulator(t)
	module := loadModule(t, stepStrategy{})
	frame := scriptedFrame(map[int]float64{52: 200, 55: 300})

	first, err := sim.Run(context.Background(), module, frame, baseConfig(), &domain.Settings{})
	require.NoError(t, err)
	second, err := sim.Run(context.Background(), module, frame, baseConfig(), &domain.Settings{})
	require.NoError(t, err)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.EquityCurve, second.EquityCurve)
}

func TestCandleLoopStepErrorIsHold(t *testing.T) {
	sim := newSimulator(t)
	module := loadModule(t, stepStrategy{})
	// The erroring step sits between entry and exit; the run must survive it.
	frame := scriptedFrame(map[int]float64{52: 200, 54: 250, 57: 300})

	res, err := sim.Run(context.Background(), module, frame, baseConfig(), &domain.Settings{})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, domain.ReasonSignal, res.Trades[0].Reason)
	assert.Len(t, res.EquityCurve, 10, "erroring step still records an equity point")
}

func TestCandleLoopForceCloseAtEnd(t *testing.T) {
	sim := newSimulator(t)
	module := loadModule(t, stepStrategy{})
	// Entry with no exit before the data ends.
	frame := scriptedFrame(map[int]float64{55: 200, 59: 150})

	res, err := sim.Run(context.Background(), module, frame, baseConfig(), &domain.Settings{})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, domain.ReasonBacktestEnd, res.Trades[0].Reason)
	assert.Equal(t, 150.0, res.Trades[0].ExitPrice, "force close uses the final candle's close")
	assert.True(t, res.Trades[0].ExitTime.After(res.Trades[0].EntryTime))
}

func TestCandleLoopNoEntryOnFinalCandle(t *testing.T) {
	sim := newSimulator(t)
	module := loadModule(t, stepStrategy{})
	// The entry signal fires on the very last candle; taking it would force
	// a close at the same instant, so the entry is declined.
	frame := scriptedFrame(map[int]float64{59: 200})

	res, err := sim.Run(context.Background(), module, frame, baseConfig(), &domain.Settings{})
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}

func TestCandleLoopReversalClosesOnSignal(t *testing.T) {
	sim := newSimulator(t)
	module := loadModule(t, stepStrategy{})
	// Long at 200, then a short entry signal while the long is open: the
	// reversal must close the position as a signal exit, not ride to the end
	// of the data.
	frame := scriptedFrame(map[int]float64{52: 200, 55: 400})

	res, err := sim.Run(context.Background(), module, frame, baseConfig(), &domain.Settings{})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	trade := res.Trades[0]
	assert.Equal(t, domain.Long, trade.Side)
	assert.Equal(t, domain.ReasonSignal, trade.Reason)
	assert.Equal(t, 400.0, trade.ExitPrice)
	assert.True(t, trade.ExitTime.After(trade.EntryTime))
}

func TestCandleLoopStopLossExit(t *testing.T) {
	sim := newSimulator(t)
	module := loadModule(t, stepStrategy{})
	cfg := baseConfig()
	cfg["stop_loss_pct"] = 0.05
	// Long at 200, price collapses through the 5% stop.
	frame := scriptedFrame(map[int]float64{52: 200, 56: 180, 57: 180, 58: 180, 59: 180})

	res, err := sim.Run(context.Background(), module, frame, cfg, &domain.Settings{})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, domain.ReasonStopLoss, res.Trades[0].Reason)
	assert.InDelta(t, 190.0, res.Trades[0].ExitPrice, 1e-9)
}

func TestCandleLoopInsufficientData(t *testing.T) {
	sim := newSimulator(t)
	module := loadModule(t, stepStrategy{})
	frame := scriptedFrame(nil).Window(0, 40)

	_, err := sim.Run(context.Background(), module, frame, baseConfig(), &domain.Settings{})
	assert.ErrorIs(t, err, ports.ErrNoMarketData)
}

func TestMissingRequiredParameter(t *testing.T) {
	sim := newSimulator(t)
	module := loadModule(t, stepStrategy{})
	cfg := baseConfig()
	delete(cfg, "risk_per_trade")

	_, err := sim.Run(context.Background(), module, scriptedFrame(nil), cfg, &domain.Settings{})
	require.ErrorIs(t, err, ports.ErrMissingParameter)
	assert.Contains(t, err.Error(), "risk_per_trade")
}

func TestVectorizedPathConfigPrecedence(t *testing.T) {
	sim := newSimulator(t)
	now := time.Now()
	trades := []*domain.Trade{{
		Side: domain.Long, EntryTime: now, ExitTime: now.Add(time.Hour),
		EntryPrice: 10, ExitPrice: 20, Quantity: 1, PNL: 10, PNLPct: 100,
		Reason: domain.ReasonSignal,
	}}
	module := loadModule(t, vectorizedStrategy{trades: trades})
	require.Equal(t, ports.ModeVectorized, module.Mode)

	res, err := sim.Run(context.Background(), module, scriptedFrame(nil), baseConfig(), &domain.Settings{})
	require.NoError(t, err)
	// Strategy-declared initial_capital=100 overrides the task's 10000.
	assert.InDelta(t, 110.0, res.Metrics.FinalCapital, 1e-9)
	require.Len(t, res.EquityCurve, 1)
	assert.InDelta(t, 110.0, res.EquityCurve[0].Equity, 1e-9)
}

func TestCustomPathValidation(t *testing.T) {
	sim := newSimulator(t)
	now := time.Now()

	bad := &domain.BacktestResult{
		Success: true,
		Trades: []*domain.Trade{{
			Side: "SIDEWAYS", EntryTime: now, ExitTime: now,
			EntryPrice: 10, ExitPrice: 20, Quantity: 0,
			Reason: "gut_feeling",
		}},
		Metrics: &domain.Metrics{TotalTrades: 2, WinningTrades: 0, LosingTrades: 1, WinRate: 150},
	}
	module := loadModule(t, customStrategy{result: bad})
	require.Equal(t, ports.ModeCustomRun, module.Mode)

	_, err := sim.Run(context.Background(), module, scriptedFrame(nil), baseConfig(), &domain.Settings{})
	require.ErrorIs(t, err, ports.ErrValidation)
	assert.Contains(t, err.Error(), "side")
	assert.Contains(t, err.Error(), "exit_time")
	assert.Contains(t, err.Error(), "win_rate")

	good := &domain.BacktestResult{
		Success: true,
		Trades: []*domain.Trade{{
			Side: domain.Long, EntryTime: now, ExitTime: now.Add(time.Hour),
			EntryPrice: 10, ExitPrice: 20, Quantity: 1, PNL: 10,
			Reason: domain.ReasonSignal,
		}},
		Metrics: &domain.Metrics{TotalTrades: 1, WinningTrades: 1, WinRate: 100},
	}
	res, err := sim.Run(context.Background(), loadModule(t, customStrategy{result: good}), scriptedFrame(nil), baseConfig(), &domain.Settings{})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestEmptyFrameIsFatal(t *testing.T) {
	sim := newSimulator(t)
	module := loadModule(t, stepStrategy{})
	_, err := sim.Run(context.Background(), module, domain.NewFrame(nil), baseConfig(), &domain.Settings{})
	assert.ErrorIs(t, err, ports.ErrNoMarketData)
}
