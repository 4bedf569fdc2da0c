package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"copyTradeEngine/internal/domain"
	"copyTradeEngine/internal/ports"
)

// Config holds the cost and floor parameters shared by live execution and
// simulation.
type Config struct {
	CommissionRate float64 // charged on entry and exit notional
	GSTRate        float64 // tax applied to commission, 0 disables
	MinQuantity    float64 // per-instrument minimum tradable quantity
}

// Manager implements the per-subscriber position lifecycle: sizing on entry,
// stop-loss / take-profit / trailing-stop evaluation while open, and P&L
// accounting on close.
type Manager struct {
	cfg    Config
	logger ports.Logger
}

// NewManager creates a risk manager. Logger is required.
func NewManager(cfg Config, logger ports.Logger) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("risk: logger is required")
	}
	if cfg.CommissionRate < 0 || cfg.GSTRate < 0 || cfg.MinQuantity < 0 {
		return nil, fmt.Errorf("risk: rates and minimum quantity cannot be negative")
	}
	return &Manager{cfg: cfg, logger: logger}, nil
}

// PositionSize computes the quantity for a new position. With a stop-loss
// the risk amount is spread over the stop distance; without one the risk
// fraction of capital is deployed directly at the entry price.
func (m *Manager) PositionSize(capital, riskPerTrade, leverage, entryPrice, stopLoss float64) (float64, error) {
	if entryPrice <= 0 {
		return 0, fmt.Errorf("risk: entry price must be positive, got %f", entryPrice)
	}
	if capital <= 0 || riskPerTrade <= 0 || leverage <= 0 {
		return 0, fmt.Errorf("risk: capital, risk per trade and leverage must be positive")
	}
	if stopLoss <= 0 {
		return capital * riskPerTrade * leverage / entryPrice, nil
	}
	dist := math.Abs(entryPrice - stopLoss)
	if dist == 0 {
		return 0, fmt.Errorf("risk: stop-loss equals entry price, cannot size position")
	}
	return capital * riskPerTrade / dist * leverage, nil
}

// EnforceMinQuantity applies the configured minimum as a floor. Sizes below
// the minimum are raised to it with a logged adjustment, never silently
// zeroed or dropped.
func (m *Manager) EnforceMinQuantity(ctx context.Context, qty float64) float64 {
	if m.cfg.MinQuantity > 0 && qty < m.cfg.MinQuantity {
		m.logger.Warn(ctx, "position size below instrument minimum, raising to floor", map[string]interface{}{
			"computed": qty,
			"minimum":  m.cfg.MinQuantity,
		})
		return m.cfg.MinQuantity
	}
	return qty
}

// Open transitions a flat subscriber into an open position.
func (m *Manager) Open(symbol string, side domain.Side, entryPrice float64, entryTime time.Time, quantity float64, leverage int, sig domain.Signal) *domain.Position {
	pos := &domain.Position{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: entryPrice,
		EntryTime:  entryTime,
		Quantity:   quantity,
		Leverage:   leverage,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
	}
	if sig.TrailingStop > 0 {
		pos.TrailingDistance = sig.TrailingStop
		if side == domain.Long {
			pos.TrailingStop = entryPrice - sig.TrailingStop
		} else {
			pos.TrailingStop = entryPrice + sig.TrailingStop
		}
	}
	return pos
}

// UpdateTrailingStop ratchets the trailing stop favorably with price. The
// level only ever moves in the position's favor, never against it.
func (m *Manager) UpdateTrailingStop(pos *domain.Position, price float64) {
	if pos.TrailingDistance <= 0 {
		return
	}
	if pos.Side == domain.Long {
		if lvl := price - pos.TrailingDistance; lvl > pos.TrailingStop {
			pos.TrailingStop = lvl
		}
	} else {
		if lvl := price + pos.TrailingDistance; lvl < pos.TrailingStop {
			pos.TrailingStop = lvl
		}
	}
}

// CheckExit evaluates protective exits against one candle. At most one exit
// triggers per step; when the candle's range spans both the stop-loss and
// the take-profit, the stop-loss wins. That tie-break is conservative but
// arbitrary, confirmed as policy with the domain owner.
func (m *Manager) CheckExit(pos *domain.Position, candle *domain.Candle) (bool, float64, domain.ExitReason) {
	stop := pos.StopLoss
	if pos.TrailingDistance > 0 {
		if pos.Side == domain.Long {
			if pos.TrailingStop > stop {
				stop = pos.TrailingStop
			}
		} else if stop == 0 || pos.TrailingStop < stop {
			stop = pos.TrailingStop
		}
	}

	if pos.Side == domain.Long {
		if stop > 0 && candle.Low <= stop {
			return true, stop, domain.ReasonStopLoss
		}
		if pos.TakeProfit > 0 && candle.High >= pos.TakeProfit {
			return true, pos.TakeProfit, domain.ReasonTakeProfit
		}
	} else {
		if stop > 0 && candle.High >= stop {
			return true, stop, domain.ReasonStopLoss
		}
		if pos.TakeProfit > 0 && candle.Low <= pos.TakeProfit {
			return true, pos.TakeProfit, domain.ReasonTakeProfit
		}
	}
	return false, 0, ""
}

// Close finalizes a position into an immutable trade record. Commission is
// charged on both entry and exit notional, GST on the commission, and both
// are subtracted from the gross P&L.
func (m *Manager) Close(pos *domain.Position, exitPrice float64, exitTime time.Time, reason domain.ExitReason) *domain.Trade {
	var gross float64
	if pos.Side == domain.Long {
		gross = (exitPrice - pos.EntryPrice) * pos.Quantity
	} else {
		gross = (pos.EntryPrice - exitPrice) * pos.Quantity
	}

	commission := (pos.EntryPrice + exitPrice) * pos.Quantity * m.cfg.CommissionRate
	commission += commission * m.cfg.GSTRate
	net := gross - commission

	var pnlPct float64
	if notional := pos.EntryPrice * pos.Quantity; notional > 0 {
		pnlPct = net / notional * 100
	}

	return &domain.Trade{
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		EntryTime:  pos.EntryTime,
		ExitTime:   exitTime,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   pos.Quantity,
		Leverage:   pos.Leverage,
		PNL:        net,
		PNLPct:     pnlPct,
		Commission: commission,
		Reason:     reason,
	}
}
