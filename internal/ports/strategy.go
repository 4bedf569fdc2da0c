package ports

import (
	"context"
	"fmt"

	"copyTradeEngine/internal/domain"
)

// ExecutionMode is the backtest dispatch variant resolved once at load time.
// It replaces repeated capability probing: the loader inspects the strategy
// once and the simulator switches on the resolved mode.
type ExecutionMode int

const (
	// ModeCandleLoop drives the generic candle-by-candle simulator from the
	// strategy's per-step signal capability. This is the fallback mode every
	// valid strategy supports.
	ModeCandleLoop ExecutionMode = iota
	// ModeVectorized invokes the strategy's bulk ExecuteTrades capability
	// once over the full historical series.
	ModeVectorized
	// ModeCustomRun delegates the entire simulation to the strategy.
	ModeCustomRun
)

func (m ExecutionMode) String() string {
	switch m {
	case ModeCandleLoop:
		return "candle_loop"
	case ModeVectorized:
		return "vectorized"
	case ModeCustomRun:
		return "custom_run"
	default:
		return fmt.Sprintf("ExecutionMode(%d)", int(m))
	}
}

// Strategy is the minimal capability every strategy payload must expose.
type Strategy interface {
	// Name returns the strategy's registry name.
	Name() string

	// GenerateSignals annotates the frame with signal columns. It is called
	// exactly once per execution cycle; the returned frame is treated as
	// read-only afterwards.
	GenerateSignals(ctx context.Context, frame *domain.Frame, settings *domain.Settings) (*domain.Frame, error)
}

// MultiResolution is implemented by strategies whose signals are computed on
// a coarser resolution than the base candle series. The executor resamples
// the base series, regenerates signals there, and forward-fills only the
// signal columns back onto the base resolution.
type MultiResolution interface {
	SignalResolution() string
}

// LiveTrader manages one subscriber's live position state. One instance is
// constructed per subscriber per cycle; no state persists across cycles or
// subscribers.
type LiveTrader interface {
	// GetLatestData fetches the market data the trader operates on.
	GetLatestData(ctx context.Context) (*domain.Frame, error)

	// CheckForNewSignal inspects the signal frame and returns a directional
	// instruction for a flat subscriber.
	CheckForNewSignal(ctx context.Context, frame *domain.Frame) (domain.Signal, error)

	// InPosition reports whether the trader believes a position is open.
	InPosition() bool
}

// PositionManager is an optional LiveTrader capability for managing an
// already-open position (trailing stops, early exits).
type PositionManager interface {
	CheckAndManagePosition(ctx context.Context, frame *domain.Frame) error
}

// LiveTraderFactory builds a LiveTrader bound to one subscriber's settings
// and exchange client. Required for live execution, not for backtests.
type LiveTraderFactory interface {
	NewLiveTrader(settings *domain.Settings, exchange ExchangeClient, logger Logger) (LiveTrader, error)
}

// BacktestParams are the resolved numeric parameters of one simulation.
// InitialCapital, Leverage, CommissionRate and RiskPerTrade are required and
// must fail loudly when absent; silent defaults have caused capital-sizing
// bugs before.
type BacktestParams struct {
	InitialCapital float64
	Leverage       float64
	CommissionRate float64
	GSTRate        float64
	RiskPerTrade   float64

	StopLossPct     float64 // optional, 0 disables
	TakeProfitPct   float64 // optional, 0 disables
	TrailingStopPct float64 // optional, 0 disables
	LookbackPeriod  int
	MinQuantity     float64
}

// TradeExecutor is the vectorized backtest capability: one call over the
// full series produces the complete trade list.
type TradeExecutor interface {
	ExecuteTrades(ctx context.Context, frame *domain.Frame, params BacktestParams) ([]*domain.Trade, error)
}

// BacktestRunner is the legacy fully-custom backtest capability. Results are
// validated field by field before being returned upstream.
type BacktestRunner interface {
	Run(ctx context.Context, frame *domain.Frame, params BacktestParams) (*domain.BacktestResult, error)
}

// StepSignaler is the per-candle capability used by the generic simulator.
// The state map returned by one step is carried into the next; an error for
// a single step is treated as HOLD, not as a failure of the run.
type StepSignaler interface {
	GenerateSignal(ctx context.Context, window *domain.Frame, settings *domain.Settings, state map[string]interface{}) (domain.Signal, map[string]interface{}, error)
}

// ConfigDeclarer exposes strategy-declared default parameters. Declared keys
// take precedence over task-supplied config for domain parameters.
type ConfigDeclarer interface {
	DeclaredConfig() map[string]float64
}
