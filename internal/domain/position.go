package domain

import "time"

// Position represents an open position held for one subscriber. A position
// exists only while open: exactly one open position per subscriber per
// instrument at a time, and it is set to nil on close.
type Position struct {
	Symbol     string
	Side       Side
	EntryPrice float64
	EntryTime  time.Time
	Quantity   float64
	Leverage   int

	StopLoss   float64 // 0 means no stop-loss
	TakeProfit float64 // 0 means no take-profit

	// Trailing stop parameters
	TrailingDistance float64 // distance in price units, 0 means no trailing stop
	TrailingStop     float64 // current trailing stop level
}

// Notional returns the position's entry notional value.
func (p *Position) Notional() float64 {
	return p.EntryPrice * p.Quantity
}
