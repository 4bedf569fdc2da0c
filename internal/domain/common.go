package domain

// Side represents the direction of a position or trade.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// SignalAction is a directional instruction produced once per data cycle.
type SignalAction string

const (
	SignalLong      SignalAction = "LONG"
	SignalShort     SignalAction = "SHORT"
	SignalHold      SignalAction = "HOLD"
	SignalExitLong  SignalAction = "EXIT_LONG"
	SignalExitShort SignalAction = "EXIT_SHORT"
)

// IsEntry reports whether the action opens a new position.
func (a SignalAction) IsEntry() bool {
	return a == SignalLong || a == SignalShort
}

// IsExit reports whether the action closes an existing position.
func (a SignalAction) IsExit() bool {
	return a == SignalExitLong || a == SignalExitShort
}

// Closes reports whether the action closes a position held on the given
// side: the matching exit signal, or an entry in the opposite direction.
// Crossover-style strategies emit the reverse entry and the exit on the
// same candle with entry taking priority, so the opposite entry must count
// as an exit or the position never closes on signal.
func (a SignalAction) Closes(side Side) bool {
	switch side {
	case Long:
		return a == SignalExitLong || a == SignalShort
	case Short:
		return a == SignalExitShort || a == SignalLong
	}
	return false
}

// ExitReason indicates why a position was closed.
type ExitReason string

const (
	ReasonSignal      ExitReason = "signal"
	ReasonStopLoss    ExitReason = "stop_loss"
	ReasonTakeProfit  ExitReason = "take_profit"
	ReasonManual      ExitReason = "manual"
	ReasonBacktestEnd ExitReason = "backtest_end"
)

// ValidExitReason reports whether r is a member of the fixed exit reason set.
func ValidExitReason(r ExitReason) bool {
	switch r {
	case ReasonSignal, ReasonStopLoss, ReasonTakeProfit, ReasonManual, ReasonBacktestEnd:
		return true
	}
	return false
}

// Signal is a single directional instruction with optional protective levels.
type Signal struct {
	Action       SignalAction
	Price        float64 // reference price at signal time (usually the close)
	StopLoss     float64 // 0 means not set
	TakeProfit   float64 // 0 means not set
	TrailingStop float64 // trailing distance in price units, 0 means not set
}
