// Package indicators holds the technical math used by the built-in
// strategies. Indicator values are strategy-internal and not part of the
// engine's capability contract.
package indicators

import (
	"fmt"
	"math"

	"copyTradeEngine/internal/domain"
)

// SMA computes the simple moving average of the last period closes.
func SMA(candles []*domain.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("indicators: period must be positive, got %d", period)
	}
	if len(candles) < period {
		return 0, fmt.Errorf("indicators: not enough data (%d) for SMA period %d", len(candles), period)
	}
	var sum float64
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period), nil
}

// EMA computes the exponential moving average over the full series, seeded
// with the SMA of the first period closes.
func EMA(candles []*domain.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("indicators: period must be positive, got %d", period)
	}
	if len(candles) < period {
		return 0, fmt.Errorf("indicators: not enough data (%d) for EMA period %d", len(candles), period)
	}
	seed, err := SMA(candles[:period], period)
	if err != nil {
		return 0, err
	}
	multiplier := 2.0 / float64(period+1)
	ema := seed
	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close-ema)*multiplier + ema
	}
	return ema, nil
}

// RSI computes the Relative Strength Index using Wilder's smoothing.
func RSI(candles []*domain.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("indicators: period must be positive, got %d", period)
	}
	if len(candles) <= period {
		return 0, fmt.Errorf("indicators: not enough data (%d) for RSI period %d", len(candles), period)
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// ATR computes the Average True Range using Wilder's smoothing.
func ATR(candles []*domain.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("indicators: period must be positive, got %d", period)
	}
	if len(candles) < period+1 {
		return 0, fmt.Errorf("indicators: not enough data (%d) for ATR period %d", len(candles), period)
	}

	tr := func(i int) float64 {
		if i == 0 {
			return candles[0].High - candles[0].Low
		}
		prevClose := candles[i-1].Close
		return math.Max(candles[i].High-candles[i].Low,
			math.Max(math.Abs(candles[i].High-prevClose), math.Abs(candles[i].Low-prevClose)))
	}

	var atr float64
	for i := 0; i < period; i++ {
		atr += tr(i)
	}
	atr /= float64(period)
	for i := period; i < len(candles); i++ {
		atr = (atr*float64(period-1) + tr(i)) / float64(period)
	}
	return atr, nil
}
