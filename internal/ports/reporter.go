package ports

import (
	"context"
	"time"

	"copyTradeEngine/internal/domain"
)

// TradeEvent is the structured audit record emitted after a successful
// order placement, correlated with tenant and strategy identifiers.
type TradeEvent struct {
	SubscriptionID string            `json:"subscription_id,omitempty"`
	StrategyID     string            `json:"strategy_id"`
	UserID         string            `json:"user_id"`
	Symbol         string            `json:"symbol"`
	Side           domain.Side       `json:"side"`
	Quantity       float64           `json:"quantity"`
	Leverage       int               `json:"leverage,omitempty"`
	OrderType      string            `json:"order_type"`
	StopLoss       float64           `json:"stop_loss,omitempty"`
	TakeProfit     float64           `json:"take_profit,omitempty"`
	ClientOrderID  string            `json:"client_order_id"`
	ExitReason     domain.ExitReason `json:"exit_reason,omitempty"`
	RawResponse    *OrderResponse    `json:"raw_response,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// TradeReporter delivers trade events to an external reporting endpoint.
// Delivery is asynchronous and best-effort: failures are logged by the
// implementation and never propagated to the calling execution path.
type TradeReporter interface {
	Report(ctx context.Context, event *TradeEvent)
}
