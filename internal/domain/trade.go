package domain

import "time"

// Trade is an immutable completed-trade record. It is appended to the trade
// sequence on close and never mutated afterwards. ExitTime must be strictly
// after EntryTime.
type Trade struct {
	ID         int64      `json:"-"`
	UserID     string     `json:"user_id,omitempty"`
	StrategyID string     `json:"strategy_id,omitempty"`
	Symbol     string     `json:"symbol,omitempty"`
	Side       Side       `json:"side"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   time.Time  `json:"exit_time"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Quantity   float64    `json:"quantity"`
	Leverage   int        `json:"leverage,omitempty"`
	PNL        float64    `json:"pnl"`
	PNLPct     float64    `json:"pnl_pct"`
	Commission float64    `json:"commission"`
	Reason     ExitReason `json:"reason"`
}

// EquityPoint is one observation on the equity curve, appended once per
// processed time step and never recomputed retroactively.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
	Drawdown  float64   `json:"drawdown"`
}

// Metrics are derived from the trade sequence and the initial capital.
// They are always recomputable and never hand-edited.
type Metrics struct {
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
	TotalPNL       float64 `json:"total_pnl"`
	TotalPNLPct    float64 `json:"total_pnl_pct"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	ProfitFactor   float64 `json:"profit_factor"`
	FinalCapital   float64 `json:"final_capital"`
}

// BacktestResult is the full outcome of one simulation run.
type BacktestResult struct {
	Success     bool          `json:"success"`
	Trades      []*Trade      `json:"trades"`
	Metrics     *Metrics      `json:"metrics"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	Error       string        `json:"error,omitempty"`
}
