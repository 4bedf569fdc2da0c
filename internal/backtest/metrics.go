package backtest

import (
	"math"

	"copyTradeEngine/internal/domain"
)

// profitFactorCap is the large finite sentinel reported when there are wins
// and no losses. Literal infinity does not survive JSON encoding.
const profitFactorCap = 999999.0

// annualization is the trading-days factor applied to the Sharpe ratio.
const annualization = 252

// drawdownTracker observes an equity series incrementally. The peak only
// ever increases, so the largest peak-to-current drop is tracked without
// revisiting earlier points.
type drawdownTracker struct {
	peak   float64
	maxAbs float64
	maxPct float64
}

func newDrawdownTracker(initial float64) *drawdownTracker {
	return &drawdownTracker{peak: initial}
}

// Observe records one equity value and returns the current drawdown.
func (d *drawdownTracker) Observe(equity float64) float64 {
	if equity > d.peak {
		d.peak = equity
	}
	dd := d.peak - equity
	if dd > d.maxAbs {
		d.maxAbs = dd
		if d.peak > 0 {
			d.maxPct = dd / d.peak * 100
		}
	}
	return dd
}

// ComputeMetrics derives the full metric set from a trade sequence and the
// initial capital. Metrics are never stored independently; this is the only
// way they come into existence.
func ComputeMetrics(trades []*domain.Trade, initialCapital float64) *domain.Metrics {
	m := &domain.Metrics{FinalCapital: initialCapital}

	var grossWins, grossLosses float64
	dd := newDrawdownTracker(initialCapital)
	equity := initialCapital

	for _, t := range trades {
		m.TotalTrades++
		m.TotalPNL += t.PNL
		if t.PNL > 0 {
			m.WinningTrades++
			grossWins += t.PNL
		} else {
			m.LosingTrades++
			grossLosses += -t.PNL
		}
		equity += t.PNL
		dd.Observe(equity)
	}

	m.FinalCapital = initialCapital + m.TotalPNL
	if initialCapital > 0 {
		m.TotalPNLPct = m.TotalPNL / initialCapital * 100
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}

	switch {
	case grossLosses > 0:
		m.ProfitFactor = grossWins / grossLosses
	case grossWins > 0:
		m.ProfitFactor = profitFactorCap
	default:
		m.ProfitFactor = 0
	}

	m.MaxDrawdown = dd.maxAbs
	m.MaxDrawdownPct = dd.maxPct
	m.SharpeRatio = sharpeRatio(trades)
	return m
}

// sharpeRatio computes mean over standard deviation of per-trade returns,
// annualized. Fewer than two trades or zero variance yields zero.
func sharpeRatio(trades []*domain.Trade) float64 {
	if len(trades) < 2 {
		return 0
	}
	var sum float64
	for _, t := range trades {
		sum += t.PNLPct
	}
	mean := sum / float64(len(trades))

	var variance float64
	for _, t := range trades {
		diff := t.PNLPct - mean
		variance += diff * diff
	}
	variance /= float64(len(trades) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(annualization)
}

// EquityCurveFromTrades derives an equity point per completed trade. The
// vectorized path has no per-step equity, so the curve is reconstructed from
// the trade sequence alone.
func EquityCurveFromTrades(trades []*domain.Trade, initialCapital float64) []domain.EquityPoint {
	curve := make([]domain.EquityPoint, 0, len(trades))
	dd := newDrawdownTracker(initialCapital)
	equity := initialCapital
	for _, t := range trades {
		equity += t.PNL
		curve = append(curve, domain.EquityPoint{
			Timestamp: t.ExitTime,
			Equity:    equity,
			Drawdown:  dd.Observe(equity),
		})
	}
	return curve
}
