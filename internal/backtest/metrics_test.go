package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyTradeEngine/internal/domain"
)

func tradesFromPNLs(pnls ...float64) []*domain.Trade {
	now := time.Now()
	out := make([]*domain.Trade, len(pnls))
	for i, pnl := range pnls {
		out[i] = &domain.Trade{
			Side:       domain.Long,
			EntryTime:  now.Add(time.Duration(i) * time.Hour),
			ExitTime:   now.Add(time.Duration(i)*time.Hour + 30*time.Minute),
			EntryPrice: 100,
			ExitPrice:  100 + pnl,
			Quantity:   1,
			PNL:        pnl,
			PNLPct:     pnl,
			Reason:     domain.ReasonSignal,
		}
	}
	return out
}

func TestComputeMetricsAccountingClosure(t *testing.T) {
	trades := tradesFromPNLs(20, -30, 40, -50)
	m := ComputeMetrics(trades, 100)

	assert.InDelta(t, -20.0, m.TotalPNL, 1e-9)
	assert.InDelta(t, m.FinalCapital-100, m.TotalPNL, 1e-9, "sum(pnl) == finalCapital - initialCapital")
	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, m.TotalTrades, m.WinningTrades+m.LosingTrades)
	assert.GreaterOrEqual(t, m.WinRate, 0.0)
	assert.LessOrEqual(t, m.WinRate, 100.0)
}

func TestMaxDrawdownMonotonicPeak(t *testing.T) {
	// Equity series 100 -> 120 -> 90 -> 130 -> 80.
	// The drop from the later peak (130 -> 80) must win over 120 -> 90.
	trades := tradesFromPNLs(20, -30, 40, -50)
	m := ComputeMetrics(trades, 100)

	assert.InDelta(t, 50.0, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 50.0/130.0*100, m.MaxDrawdownPct, 1e-9)
	assert.GreaterOrEqual(t, m.MaxDrawdown, 0.0)
}

func TestProfitFactor(t *testing.T) {
	// Wins and no losses: large finite sentinel, not infinity.
	m := ComputeMetrics(tradesFromPNLs(10, 20), 100)
	assert.Equal(t, profitFactorCap, m.ProfitFactor)
	assert.False(t, math.IsInf(m.ProfitFactor, 1))

	// No trades at all: zero.
	m = ComputeMetrics(nil, 100)
	assert.Equal(t, 0.0, m.ProfitFactor)
	assert.Equal(t, 100.0, m.FinalCapital)

	// Mixed: gross wins over gross losses.
	m = ComputeMetrics(tradesFromPNLs(30, -10), 100)
	assert.InDelta(t, 3.0, m.ProfitFactor, 1e-9)
}

func TestSharpeRatio(t *testing.T) {
	// Fewer than two trades: zero.
	m := ComputeMetrics(tradesFromPNLs(10), 100)
	assert.Equal(t, 0.0, m.SharpeRatio)

	// Zero variance: zero.
	m = ComputeMetrics(tradesFromPNLs(5, 5, 5), 100)
	assert.Equal(t, 0.0, m.SharpeRatio)

	// Returns 1, 2, 3 (pct): mean 2, sample stddev 1.
	m = ComputeMetrics(tradesFromPNLs(1, 2, 3), 100)
	assert.InDelta(t, 2*math.Sqrt(annualization), m.SharpeRatio, 1e-9)
}

func TestEquityCurveFromTrades(t *testing.T) {
	trades := tradesFromPNLs(20, -30)
	curve := EquityCurveFromTrades(trades, 100)

	require.Len(t, curve, 2)
	assert.InDelta(t, 120.0, curve[0].Equity, 1e-9)
	assert.InDelta(t, 0.0, curve[0].Drawdown, 1e-9)
	assert.InDelta(t, 90.0, curve[1].Equity, 1e-9)
	assert.InDelta(t, 30.0, curve[1].Drawdown, 1e-9)
	assert.True(t, curve[0].Timestamp.Before(curve[1].Timestamp))
}
