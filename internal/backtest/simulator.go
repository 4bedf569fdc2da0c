// Package backtest replays historical candles through the strategy
// capability contract without network I/O and derives performance metrics
// from the resulting trade sequence.
package backtest

import (
	"context"
	"fmt"

	"copyTradeEngine/internal/domain"
	"copyTradeEngine/internal/ports"
	"copyTradeEngine/internal/risk"
	"copyTradeEngine/internal/strategy"
)

const (
	defaultLookback = 200
	minLookback     = 50
)

// Simulator drives one of three execution paths, selected by the module's
// load-time execution mode: a fully custom run, a vectorized bulk call, or
// the generic candle-by-candle loop.
type Simulator struct {
	logger ports.Logger
}

// NewSimulator creates a simulator. Logger is required.
func NewSimulator(logger ports.Logger) (*Simulator, error) {
	if logger == nil {
		return nil, fmt.Errorf("backtest: logger is required")
	}
	return &Simulator{logger: logger}, nil
}

// Run executes one simulation. Task config and strategy-declared defaults
// are merged (declared wins) before the required-parameter check; a missing
// required parameter aborts the run before any candle is touched.
func (s *Simulator) Run(ctx context.Context, module *strategy.Module, frame *domain.Frame, taskCfg map[string]float64, settings *domain.Settings) (*domain.BacktestResult, error) {
	if frame == nil || frame.Len() == 0 {
		return nil, ports.ErrNoMarketData
	}
	params, err := strategy.ResolveParams(taskCfg, module.Declared)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = &domain.Settings{}
	}

	switch module.Mode {
	case ports.ModeCustomRun:
		res, err := module.Runner.Run(ctx, frame, params)
		if err != nil {
			return nil, fmt.Errorf("backtest: custom run failed: %w", err)
		}
		if err := ValidateResult(res); err != nil {
			return nil, err
		}
		return res, nil

	case ports.ModeVectorized:
		trades, err := module.Executor.ExecuteTrades(ctx, frame, params)
		if err != nil {
			return nil, fmt.Errorf("backtest: execute_trades failed: %w", err)
		}
		// The strategy owns trade generation on this path; the simulator only
		// derives the equity curve and metrics from the returned list.
		return &domain.BacktestResult{
			Success:     true,
			Trades:      trades,
			Metrics:     ComputeMetrics(trades, params.InitialCapital),
			EquityCurve: EquityCurveFromTrades(trades, params.InitialCapital),
		}, nil

	default:
		res, err := s.runCandleLoop(ctx, module, frame, params, settings)
		if err != nil {
			return nil, err
		}
		// The loop's own trades are held to the same contract as
		// strategy-produced ones.
		if err := ValidateResult(res); err != nil {
			return nil, err
		}
		return res, nil
	}
}

// runCandleLoop slides a trailing lookback window over the series, calling
// the per-step signal capability with the prior step's carried-forward state
// and applying the same position and risk state machine as live execution.
func (s *Simulator) runCandleLoop(ctx context.Context, module *strategy.Module, frame *domain.Frame, params ports.BacktestParams, settings *domain.Settings) (*domain.BacktestResult, error) {
	lookback := params.LookbackPeriod
	if lookback == 0 {
		lookback = defaultLookback
	}
	if lookback < minLookback {
		lookback = minLookback
	}
	if frame.Len() <= lookback {
		return nil, fmt.Errorf("%w: need more than %d candles, got %d", ports.ErrNoMarketData, lookback, frame.Len())
	}

	mgr, err := risk.NewManager(risk.Config{
		CommissionRate: params.CommissionRate,
		GSTRate:        params.GSTRate,
		MinQuantity:    params.MinQuantity,
	}, s.logger)
	if err != nil {
		return nil, err
	}

	var (
		trades   []*domain.Trade
		curve    []domain.EquityPoint
		pos      *domain.Position
		state    map[string]interface{}
		capital  = params.InitialCapital
		tracker  = newDrawdownTracker(params.InitialCapital)
		leverage = int(params.Leverage)
	)

	closePosition := func(exitPrice float64, c *domain.Candle, reason domain.ExitReason) {
		trade := mgr.Close(pos, exitPrice, c.OpenTime, reason)
		trade.StrategyID = settings.StrategyID
		trades = append(trades, trade)
		capital += trade.PNL
		pos = nil
	}

	for i := lookback; i < frame.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest: %w", ports.ErrContextCanceled)
		}
		candle := frame.Candles[i]

		// Protective exits are evaluated before the step's signal so a
		// stopped-out position cannot also act on the same candle.
		if pos != nil {
			mgr.UpdateTrailingStop(pos, candle.Close)
			if fired, price, reason := mgr.CheckExit(pos, candle); fired {
				closePosition(price, candle, reason)
			}
		}

		window := frame.Window(i-lookback, i+1)
		sig, nextState, err := module.Stepper.GenerateSignal(ctx, window, settings, state)
		if err != nil {
			// One bad step is a HOLD, not a failed run.
			s.logger.Warn(ctx, "signal step failed, treating as HOLD", map[string]interface{}{
				"step": i, "error": err.Error(),
			})
			curve = appendEquityPoint(curve, tracker, candle, equityOf(capital, pos, candle.Close))
			continue
		}
		state = nextState

		switch {
		// An entry against the open side is a reversal and closes the
		// position like an exit signal would.
		case pos != nil && sig.Action.Closes(pos.Side):
			closePosition(candle.Close, candle, domain.ReasonSignal)

		// No entries on the final candle: the force close below would land
		// on the same candle and produce a zero-duration trade.
		case pos == nil && sig.Action.IsEntry() && i < frame.Len()-1:
			entry := candle.Close
			side := domain.Long
			if sig.Action == domain.SignalShort {
				side = domain.Short
			}
			applyDefaultLevels(&sig, side, entry, params)

			qty, err := mgr.PositionSize(capital, params.RiskPerTrade, params.Leverage, entry, sig.StopLoss)
			if err != nil {
				s.logger.Warn(ctx, "cannot size position, skipping entry", map[string]interface{}{
					"step": i, "error": err.Error(),
				})
				break
			}
			qty = mgr.EnforceMinQuantity(ctx, qty)
			pos = mgr.Open(settings.Pair, side, entry, candle.OpenTime, qty, leverage, sig)
		}

		curve = appendEquityPoint(curve, tracker, candle, equityOf(capital, pos, candle.Close))
	}

	// Any still-open position is force-closed on the final candle.
	if pos != nil {
		last := frame.Last()
		closePosition(last.Close, last, domain.ReasonBacktestEnd)
	}

	metrics := ComputeMetrics(trades, params.InitialCapital)
	// The step series observed intra-trade equity; its drawdown supersedes
	// the coarser trade-sequence figure.
	metrics.MaxDrawdown = tracker.maxAbs
	metrics.MaxDrawdownPct = tracker.maxPct

	return &domain.BacktestResult{
		Success:     true,
		Trades:      trades,
		Metrics:     metrics,
		EquityCurve: curve,
	}, nil
}

// applyDefaultLevels fills protective levels from percentage parameters when
// the signal did not set its own.
func applyDefaultLevels(sig *domain.Signal, side domain.Side, entry float64, params ports.BacktestParams) {
	dir := 1.0
	if side == domain.Short {
		dir = -1.0
	}
	if sig.StopLoss == 0 && params.StopLossPct > 0 {
		sig.StopLoss = entry * (1 - dir*params.StopLossPct)
	}
	if sig.TakeProfit == 0 && params.TakeProfitPct > 0 {
		sig.TakeProfit = entry * (1 + dir*params.TakeProfitPct)
	}
	if sig.TrailingStop == 0 && params.TrailingStopPct > 0 {
		sig.TrailingStop = entry * params.TrailingStopPct
	}
}

func equityOf(capital float64, pos *domain.Position, price float64) float64 {
	if pos == nil {
		return capital
	}
	if pos.Side == domain.Long {
		return capital + (price-pos.EntryPrice)*pos.Quantity
	}
	return capital + (pos.EntryPrice-price)*pos.Quantity
}

func appendEquityPoint(curve []domain.EquityPoint, tracker *drawdownTracker, c *domain.Candle, equity float64) []domain.EquityPoint {
	return append(curve, domain.EquityPoint{
		Timestamp: c.OpenTime,
		Equity:    equity,
		Drawdown:  tracker.Observe(equity),
	})
}
