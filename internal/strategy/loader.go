// Package strategy binds registered strategy payloads to the engine's
// capability contract. Capabilities are validated structurally once at load
// time and the backtest execution mode is resolved into a tagged variant, so
// the rest of the engine dispatches on the mode instead of probing.
package strategy

import (
	"context"
	"fmt"
	"sync"

	"copyTradeEngine/internal/domain"
	"copyTradeEngine/internal/ports"
)

// Factory builds a fresh strategy instance. The loader calls it once per
// task so no capability state persists across tasks.
type Factory func() ports.Strategy

// Registry maps strategy references to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a strategy factory under the given reference.
func (r *Registry) Register(ref string, f Factory) error {
	if ref == "" || f == nil {
		return fmt.Errorf("strategy: reference and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[ref]; exists {
		return fmt.Errorf("strategy: %q is already registered", ref)
	}
	r.factories[ref] = f
	return nil
}

// Module is one loaded strategy: the validated capability set plus the
// execution mode resolved at load time. A module is owned exclusively by one
// execution cycle.
type Module struct {
	Strategy ports.Strategy
	Mode     ports.ExecutionMode

	// LiveFactory is nil when the strategy does not support live execution.
	LiveFactory ports.LiveTraderFactory
	// Executor is set when Mode == ModeVectorized.
	Executor ports.TradeExecutor
	// Runner is set when Mode == ModeCustomRun.
	Runner ports.BacktestRunner
	// Stepper is always set; for strategies without a per-step capability it
	// adapts GenerateSignals over the trailing window.
	Stepper ports.StepSignaler

	// SignalResolution is non-empty for multi-resolution strategies.
	SignalResolution string
	// Declared holds strategy-declared config defaults. Declared keys take
	// precedence over task-supplied config for domain parameters.
	Declared map[string]float64
}

// Load resolves a strategy reference into a validated module.
// Detection order for the backtest mode: custom full-run capability, then
// vectorized trade execution, then the generic candle-by-candle simulator.
func (r *Registry) Load(ref string) (*Module, error) {
	r.mu.RLock()
	f, ok := r.factories[ref]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ports.ErrStrategyNotFound, ref)
	}

	s := f()
	if s == nil {
		return nil, fmt.Errorf("%w: factory for %q returned nil", ports.ErrMissingCapability, ref)
	}
	if s.Name() == "" {
		return nil, fmt.Errorf("%w: strategy %q has no name", ports.ErrMissingCapability, ref)
	}

	m := &Module{Strategy: s, Mode: ports.ModeCandleLoop}
	if runner, ok := s.(ports.BacktestRunner); ok {
		m.Mode = ports.ModeCustomRun
		m.Runner = runner
	} else if exec, ok := s.(ports.TradeExecutor); ok {
		m.Mode = ports.ModeVectorized
		m.Executor = exec
	}

	if stepper, ok := s.(ports.StepSignaler); ok {
		m.Stepper = stepper
	} else {
		m.Stepper = &windowStepper{s: s}
	}
	if lf, ok := s.(ports.LiveTraderFactory); ok {
		m.LiveFactory = lf
	}
	if mr, ok := s.(ports.MultiResolution); ok {
		m.SignalResolution = mr.SignalResolution()
	}
	if cd, ok := s.(ports.ConfigDeclarer); ok {
		m.Declared = cd.DeclaredConfig()
	}
	return m, nil
}

// RequireLive returns an error when the module cannot drive live execution.
func (m *Module) RequireLive() error {
	if m.LiveFactory == nil {
		return fmt.Errorf("%w: %s exposes no live trader", ports.ErrMissingCapability, m.Strategy.Name())
	}
	return nil
}

// windowStepper adapts the mandatory signal-generation capability into a
// per-step signaler: signals are regenerated on the trailing window and the
// last row decides the action.
type windowStepper struct {
	s ports.Strategy
}

func (w *windowStepper) GenerateSignal(ctx context.Context, window *domain.Frame, settings *domain.Settings, state map[string]interface{}) (domain.Signal, map[string]interface{}, error) {
	f, err := w.s.GenerateSignals(ctx, window, settings)
	if err != nil {
		return domain.Signal{Action: domain.SignalHold}, state, err
	}
	last := f.Len() - 1
	if last < 0 {
		return domain.Signal{Action: domain.SignalHold}, state, nil
	}
	sig := domain.Signal{Action: domain.SignalHold, Price: f.Candles[last].Close}
	switch {
	case f.Signal(domain.ColLongEntry, last):
		sig.Action = domain.SignalLong
	case f.Signal(domain.ColShortEntry, last):
		sig.Action = domain.SignalShort
	case f.Signal(domain.ColLongExit, last):
		sig.Action = domain.SignalExitLong
	case f.Signal(domain.ColShortExit, last):
		sig.Action = domain.SignalExitShort
	}
	return sig, state, nil
}

// ResolveParams merges task-supplied config with strategy-declared defaults
// (declared keys win for domain parameters) and extracts the backtest
// parameter set. The four required parameters fail loudly when absent;
// silent defaults previously caused capital-sizing bugs.
func ResolveParams(taskCfg, declared map[string]float64) (ports.BacktestParams, error) {
	merged := make(map[string]float64, len(taskCfg)+len(declared))
	for k, v := range taskCfg {
		merged[k] = v
	}
	for k, v := range declared {
		merged[k] = v
	}

	var p ports.BacktestParams
	for _, req := range []struct {
		key string
		dst *float64
	}{
		{"initial_capital", &p.InitialCapital},
		{"leverage", &p.Leverage},
		{"commission_rate", &p.CommissionRate},
		{"risk_per_trade", &p.RiskPerTrade},
	} {
		v, ok := merged[req.key]
		if !ok {
			return ports.BacktestParams{}, fmt.Errorf("%w: %s", ports.ErrMissingParameter, req.key)
		}
		*req.dst = v
	}

	p.GSTRate = merged["gst_rate"]
	p.StopLossPct = merged["stop_loss_pct"]
	p.TakeProfitPct = merged["take_profit_pct"]
	p.TrailingStopPct = merged["trailing_stop_pct"]
	p.MinQuantity = merged["min_quantity"]
	if v, ok := merged["lookback_period"]; ok {
		p.LookbackPeriod = int(v)
	}
	return p, nil
}
