// Package strategies contains the built-in reference strategies shipped with
// the engine. Each one is a plain Go implementation of the capability
// contract and is registered by name at startup.
package strategies

import (
	"context"
	"fmt"

	"copyTradeEngine/internal/domain"
	"copyTradeEngine/internal/ports"
	"copyTradeEngine/internal/strategy/indicators"
)

const (
	defaultShortPeriod = 20
	defaultLongPeriod  = 50
	defaultATRPeriod   = 14
	defaultLookback    = 200
)

// MACrossover emits entries when the short moving average crosses the long
// one and exits on the reverse cross. Protective levels are derived from the
// current ATR.
type MACrossover struct{}

// NewMACrossover creates the reference moving-average crossover strategy.
func NewMACrossover() *MACrossover { return &MACrossover{} }

// Name returns the registry name of the strategy.
func (s *MACrossover) Name() string { return "ma_crossover" }

func (s *MACrossover) periods(settings *domain.Settings) (int, int) {
	short := int(settings.Param("short_period", defaultShortPeriod))
	long := int(settings.Param("long_period", defaultLongPeriod))
	if short <= 0 {
		short = defaultShortPeriod
	}
	if long <= short {
		long = short * 2
	}
	return short, long
}

// GenerateSignals annotates the frame with crossover entry and exit columns.
func (s *MACrossover) GenerateSignals(ctx context.Context, frame *domain.Frame, settings *domain.Settings) (*domain.Frame, error) {
	short, long := s.periods(settings)
	if frame.Len() <= long {
		return nil, fmt.Errorf("ma_crossover: need more than %d candles, got %d", long, frame.Len())
	}

	// Rolling sums keep the pass linear.
	var shortSum, longSum float64
	for i := 0; i < long; i++ {
		c := frame.Candles[i].Close
		longSum += c
		if i >= long-short {
			shortSum += c
		}
	}

	prevDiff := shortSum/float64(short) - longSum/float64(long)
	for i := long; i < frame.Len(); i++ {
		c := frame.Candles[i].Close
		shortSum += c - frame.Candles[i-short].Close
		longSum += c - frame.Candles[i-long].Close
		diff := shortSum/float64(short) - longSum/float64(long)

		if prevDiff <= 0 && diff > 0 {
			frame.SetSignal(domain.ColLongEntry, i, true)
			frame.SetSignal(domain.ColShortExit, i, true)
		} else if prevDiff >= 0 && diff < 0 {
			frame.SetSignal(domain.ColShortEntry, i, true)
			frame.SetSignal(domain.ColLongExit, i, true)
		}
		prevDiff = diff
	}
	return frame, nil
}

// NewLiveTrader builds the live-position capability bound to one
// subscriber's settings and exchange client.
func (s *MACrossover) NewLiveTrader(settings *domain.Settings, exchange ports.ExchangeClient, logger ports.Logger) (ports.LiveTrader, error) {
	if settings == nil || exchange == nil || logger == nil {
		return nil, fmt.Errorf("ma_crossover: settings, exchange and logger are required")
	}
	return &maLiveTrader{strategy: s, settings: settings, exchange: exchange, logger: logger}, nil
}

type maLiveTrader struct {
	strategy   *MACrossover
	settings   *domain.Settings
	exchange   ports.ExchangeClient
	logger     ports.Logger
	inPosition bool
}

// GetLatestData fetches the trailing candle window and refreshes the local
// position flag from the exchange.
func (t *maLiveTrader) GetLatestData(ctx context.Context) (*domain.Frame, error) {
	lookback := int(t.settings.Param("lookback_period", defaultLookback))
	candles, err := t.exchange.GetKlines(ctx, t.settings.Pair, t.settings.Resolution, lookback)
	if err != nil {
		return nil, fmt.Errorf("ma_crossover: fetching klines: %w", err)
	}
	if risk, err := t.exchange.GetPositionRisk(ctx, t.settings.Pair); err == nil {
		t.inPosition = risk != nil && risk.PositionAmt != 0
	}
	return domain.NewFrame(candles), nil
}

// CheckForNewSignal reads the last row of the signal frame and attaches
// ATR-derived protective levels to directional signals.
func (t *maLiveTrader) CheckForNewSignal(ctx context.Context, frame *domain.Frame) (domain.Signal, error) {
	last := frame.Len() - 1
	if last < 0 {
		return domain.Signal{Action: domain.SignalHold}, nil
	}
	close := frame.Candles[last].Close
	sig := domain.Signal{Action: domain.SignalHold, Price: close}

	switch {
	case frame.Signal(domain.ColLongEntry, last):
		sig.Action = domain.SignalLong
	case frame.Signal(domain.ColShortEntry, last):
		sig.Action = domain.SignalShort
	case frame.Signal(domain.ColLongExit, last):
		sig.Action = domain.SignalExitLong
		return sig, nil
	case frame.Signal(domain.ColShortExit, last):
		sig.Action = domain.SignalExitShort
		return sig, nil
	default:
		return sig, nil
	}

	atrPeriod := int(t.settings.Param("atr_period", defaultATRPeriod))
	atr, err := indicators.ATR(frame.Candles, atrPeriod)
	if err != nil {
		// Enter without protective levels rather than miss the cross.
		t.logger.Warn(ctx, "ATR unavailable, entering without stop levels", map[string]interface{}{
			"strategy": t.strategy.Name(), "error": err.Error(),
		})
		return sig, nil
	}
	if sig.Action == domain.SignalLong {
		sig.StopLoss = close - 2*atr
		sig.TakeProfit = close + 3*atr
	} else {
		sig.StopLoss = close + 2*atr
		sig.TakeProfit = close - 3*atr
	}
	sig.TrailingStop = t.settings.Param("trailing_stop", 0) * close
	return sig, nil
}

// InPosition reports the trader's local belief about position state; the
// executor re-verifies against the exchange before managing.
func (t *maLiveTrader) InPosition() bool { return t.inPosition }

// CheckAndManagePosition logs the management cycle; protective orders sit on
// the exchange so no client-side action is needed for this strategy.
func (t *maLiveTrader) CheckAndManagePosition(ctx context.Context, frame *domain.Frame) error {
	if last := frame.Len() - 1; last >= 0 {
		t.logger.Debug(ctx, "managing open position", map[string]interface{}{
			"pair":  t.settings.Pair,
			"close": frame.Candles[last].Close,
		})
	}
	return nil
}
