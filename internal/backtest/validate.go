package backtest

import (
	"fmt"
	"strings"

	"copyTradeEngine/internal/domain"
	"copyTradeEngine/internal/ports"
)

// ValidateResult checks a strategy-produced backtest result field by field
// before it is returned upstream. Violations are collected and reported
// together as a structured validation error, never as a crash.
func ValidateResult(res *domain.BacktestResult) error {
	if res == nil {
		return fmt.Errorf("%w: result is nil", ports.ErrValidation)
	}

	var violations []string
	for i, t := range res.Trades {
		if t == nil {
			violations = append(violations, fmt.Sprintf("trades[%d]: is nil", i))
			continue
		}
		if t.Side != domain.Long && t.Side != domain.Short {
			violations = append(violations, fmt.Sprintf("trades[%d].side: %q is not LONG or SHORT", i, t.Side))
		}
		if !domain.ValidExitReason(t.Reason) {
			violations = append(violations, fmt.Sprintf("trades[%d].reason: %q is not a valid exit reason", i, t.Reason))
		}
		if !t.ExitTime.After(t.EntryTime) {
			violations = append(violations, fmt.Sprintf("trades[%d]: exit_time must be after entry_time", i))
		}
		if t.Quantity <= 0 {
			violations = append(violations, fmt.Sprintf("trades[%d].quantity: must be positive, got %f", i, t.Quantity))
		}
		if t.EntryPrice <= 0 || t.ExitPrice <= 0 {
			violations = append(violations, fmt.Sprintf("trades[%d]: prices must be positive", i))
		}
	}

	if res.Metrics == nil {
		violations = append(violations, "metrics: missing")
	} else {
		m := res.Metrics
		if m.TotalTrades != m.WinningTrades+m.LosingTrades {
			violations = append(violations, fmt.Sprintf(
				"metrics.total_trades: %d does not equal winning(%d) + losing(%d)",
				m.TotalTrades, m.WinningTrades, m.LosingTrades))
		}
		if m.WinRate < 0 || m.WinRate > 100 {
			violations = append(violations, fmt.Sprintf("metrics.win_rate: %f outside [0, 100]", m.WinRate))
		}
		if m.MaxDrawdown < 0 {
			violations = append(violations, fmt.Sprintf("metrics.max_drawdown: %f is negative", m.MaxDrawdown))
		}
	}

	if len(violations) > 0 {
		return fmt.Errorf("%w: %s", ports.ErrValidation, strings.Join(violations, "; "))
	}
	return nil
}
