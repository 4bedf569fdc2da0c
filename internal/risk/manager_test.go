package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyTradeEngine/internal/domain"
)

type noopLogger struct{ warns int }

func (l *noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (l *noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (l *noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.warns++
}
func (l *noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *noopLogger) {
	t.Helper()
	log := &noopLogger{}
	m, err := NewManager(cfg, log)
	require.NoError(t, err)
	return m, log
}

func TestPositionSize(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	tests := []struct {
		name     string
		capital  float64
		risk     float64
		leverage float64
		entry    float64
		stopLoss float64
		want     float64
		wantErr  bool
	}{
		{
			// entry 100, SL 98, capital 10000, risk 0.1, leverage 10
			name:    "risk spread over stop distance",
			capital: 10000, risk: 0.1, leverage: 10, entry: 100, stopLoss: 98,
			want: 5000,
		},
		{
			name:    "no stop loss sizes on entry price",
			capital: 10000, risk: 0.1, leverage: 10, entry: 100,
			want: 100,
		},
		{
			name:    "stop loss equal to entry",
			capital: 10000, risk: 0.1, leverage: 10, entry: 100, stopLoss: 100,
			wantErr: true,
		},
		{
			name:    "zero entry price",
			capital: 10000, risk: 0.1, leverage: 10,
			wantErr: true,
		},
		{
			name:    "zero capital",
			capital: 0, risk: 0.1, leverage: 10, entry: 100,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.PositionSize(tt.capital, tt.risk, tt.leverage, tt.entry, tt.stopLoss)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEnforceMinQuantity(t *testing.T) {
	m, log := newTestManager(t, Config{MinQuantity: 0.01})

	// Below the floor: raised, never silently zeroed.
	got := m.EnforceMinQuantity(context.Background(), 0.003)
	assert.Equal(t, 0.01, got)
	assert.Equal(t, 1, log.warns, "adjustment must be logged")

	// Above the floor: unchanged.
	got = m.EnforceMinQuantity(context.Background(), 0.5)
	assert.Equal(t, 0.5, got)
	assert.Equal(t, 1, log.warns)
}

func TestCheckExitStopBeforeTakeProfit(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	pos := &domain.Position{
		Symbol: "ETHUSDT", Side: domain.Long,
		EntryPrice: 100, Quantity: 1,
		StopLoss: 95, TakeProfit: 110,
	}

	// Candle spans both levels; the stop-loss must win.
	candle := &domain.Candle{Open: 100, High: 115, Low: 90, Close: 100}
	fired, price, reason := m.CheckExit(pos, candle)
	require.True(t, fired)
	assert.Equal(t, domain.ReasonStopLoss, reason)
	assert.Equal(t, 95.0, price)
}

func TestCheckExitShortSide(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	pos := &domain.Position{
		Symbol: "ETHUSDT", Side: domain.Short,
		EntryPrice: 100, Quantity: 1,
		StopLoss: 105, TakeProfit: 90,
	}

	tests := []struct {
		name       string
		candle     domain.Candle
		wantFired  bool
		wantReason domain.ExitReason
	}{
		{"stop loss on high", domain.Candle{High: 106, Low: 99}, true, domain.ReasonStopLoss},
		{"take profit on low", domain.Candle{High: 101, Low: 89}, true, domain.ReasonTakeProfit},
		{"no exit inside range", domain.Candle{High: 102, Low: 95}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fired, _, reason := m.CheckExit(pos, &tt.candle)
			assert.Equal(t, tt.wantFired, fired)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestTrailingStopRatchet(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	pos := m.Open("ETHUSDT", domain.Long, 100, time.Now(), 1, 1, domain.Signal{TrailingStop: 5})
	require.Equal(t, 95.0, pos.TrailingStop)

	// Favorable move raises the stop.
	m.UpdateTrailingStop(pos, 110)
	assert.Equal(t, 105.0, pos.TrailingStop)

	// Adverse move never lowers it.
	m.UpdateTrailingStop(pos, 102)
	assert.Equal(t, 105.0, pos.TrailingStop)

	// The raised trailing level triggers the stop-loss exit.
	fired, price, reason := m.CheckExit(pos, &domain.Candle{High: 106, Low: 104})
	require.True(t, fired)
	assert.Equal(t, domain.ReasonStopLoss, reason)
	assert.Equal(t, 105.0, price)
}

func TestTrailingStopShortNeverMovesAgainst(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	pos := m.Open("ETHUSDT", domain.Short, 100, time.Now(), 1, 1, domain.Signal{TrailingStop: 5})
	require.Equal(t, 105.0, pos.TrailingStop)

	m.UpdateTrailingStop(pos, 90)
	assert.Equal(t, 95.0, pos.TrailingStop)

	m.UpdateTrailingStop(pos, 98)
	assert.Equal(t, 95.0, pos.TrailingStop)
}

func TestClosePNLAccounting(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name           string
		cfg            Config
		side           domain.Side
		entry, exit    float64
		qty            float64
		wantPNL        float64
		wantCommission float64
	}{
		{
			name: "long with commission",
			cfg:  Config{CommissionRate: 0.001},
			side: domain.Long, entry: 100, exit: 110, qty: 2,
			// gross 20, commission (100+110)*2*0.001 = 0.42
			wantPNL:        19.58,
			wantCommission: 0.42,
		},
		{
			name: "short with commission and gst",
			cfg:  Config{CommissionRate: 0.001, GSTRate: 0.18},
			side: domain.Short, entry: 100, exit: 90, qty: 1,
			// gross 10, commission 0.19 * 1.18 = 0.2242
			wantPNL:        10 - 0.19*1.18,
			wantCommission: 0.19 * 1.18,
		},
		{
			name: "losing long without costs",
			cfg:  Config{},
			side: domain.Long, entry: 100, exit: 95, qty: 1,
			wantPNL: -5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t, tt.cfg)
			pos := &domain.Position{
				Symbol: "ETHUSDT", Side: tt.side,
				EntryPrice: tt.entry, EntryTime: now, Quantity: tt.qty,
			}
			trade := m.Close(pos, tt.exit, now.Add(time.Hour), domain.ReasonSignal)
			assert.InDelta(t, tt.wantPNL, trade.PNL, 1e-9)
			assert.InDelta(t, tt.wantCommission, trade.Commission, 1e-9)
			assert.InDelta(t, trade.PNL/(tt.entry*tt.qty)*100, trade.PNLPct, 1e-9)
			assert.True(t, trade.ExitTime.After(trade.EntryTime))
		})
	}
}
