// Package audit wraps the order-placement capability so every successful
// order emits a structured trade event correlated with tenant and strategy
// identifiers. Delivery is asynchronous and best-effort; a reporting failure
// never reaches the calling subscriber's execution path.
package audit

import (
	"context"
	"time"

	"copyTradeEngine/internal/domain"
	"copyTradeEngine/internal/ports"
)

// TradeContext identifies the subscriber and strategy on whose behalf orders
// are being placed. It is built explicitly per subscriber iteration and
// passed into the wrapper, never held in ambient mutable state.
type TradeContext struct {
	SubscriptionID string
	StrategyID     string
	UserID         string
	Leverage       int
}

type exitReasonKey struct{}

// WithExitReason annotates the call context with the exit reason of a
// closing order so the emitted event carries it.
func WithExitReason(ctx context.Context, reason domain.ExitReason) context.Context {
	return context.WithValue(ctx, exitReasonKey{}, reason)
}

func exitReasonFrom(ctx context.Context) domain.ExitReason {
	if r, ok := ctx.Value(exitReasonKey{}).(domain.ExitReason); ok {
		return r
	}
	return ""
}

// emitSlots bounds in-flight report deliveries across all wrapped clients.
// When the reporter cannot keep up, events are dropped rather than queued
// without limit.
var emitSlots = make(chan struct{}, 64)

// interceptedExchange decorates an exchange client with trade-event emission.
type interceptedExchange struct {
	ports.ExchangeClient
	reporter ports.TradeReporter
	tc       TradeContext
	logger   ports.Logger
}

// WrapExchange returns an exchange client whose order placements emit trade
// events through the reporter. All other calls pass straight through.
func WrapExchange(client ports.ExchangeClient, reporter ports.TradeReporter, tc TradeContext, logger ports.Logger) ports.ExchangeClient {
	if reporter == nil {
		return client
	}
	return &interceptedExchange{ExchangeClient: client, reporter: reporter, tc: tc, logger: logger}
}

func (x *interceptedExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity float64, clientOrderID string) (*ports.OrderResponse, error) {
	resp, err := x.ExchangeClient.PlaceMarketOrder(ctx, symbol, side, quantity, clientOrderID)
	if err != nil {
		return nil, err
	}
	x.emit(ctx, symbol, side, quantity, "MARKET", 0, 0, clientOrderID, resp)
	return resp, nil
}

func (x *interceptedExchange) PlaceStopMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity, stopPrice float64, clientOrderID string) (*ports.OrderResponse, error) {
	resp, err := x.ExchangeClient.PlaceStopMarketOrder(ctx, symbol, side, quantity, stopPrice, clientOrderID)
	if err != nil {
		return nil, err
	}
	x.emit(ctx, symbol, side, quantity, "STOP_MARKET", stopPrice, 0, clientOrderID, resp)
	return resp, nil
}

func (x *interceptedExchange) PlaceTakeProfitMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity, stopPrice float64, clientOrderID string) (*ports.OrderResponse, error) {
	resp, err := x.ExchangeClient.PlaceTakeProfitMarketOrder(ctx, symbol, side, quantity, stopPrice, clientOrderID)
	if err != nil {
		return nil, err
	}
	x.emit(ctx, symbol, side, quantity, "TAKE_PROFIT_MARKET", 0, stopPrice, clientOrderID, resp)
	return resp, nil
}

// emit hands the event to the reporter off the critical path. The event is
// fully built before the goroutine starts so the caller can mutate nothing
// it references.
func (x *interceptedExchange) emit(ctx context.Context, symbol string, side domain.Side, quantity float64, orderType string, stopLoss, takeProfit float64, clientOrderID string, resp *ports.OrderResponse) {
	event := &ports.TradeEvent{
		SubscriptionID: x.tc.SubscriptionID,
		StrategyID:     x.tc.StrategyID,
		UserID:         x.tc.UserID,
		Symbol:         symbol,
		Side:           side,
		Quantity:       quantity,
		Leverage:       x.tc.Leverage,
		OrderType:      orderType,
		StopLoss:       stopLoss,
		TakeProfit:     takeProfit,
		ClientOrderID:  clientOrderID,
		ExitReason:     exitReasonFrom(ctx),
		RawResponse:    resp,
		Timestamp:      time.Now().UTC(),
	}
	select {
	case emitSlots <- struct{}{}:
	default:
		if x.logger != nil {
			x.logger.Warn(ctx, "dropping trade event, reporter backlog full", map[string]interface{}{
				"user_id": x.tc.UserID, "client_order_id": clientOrderID,
			})
		}
		return
	}
	go func() {
		defer func() {
			<-emitSlots
			if r := recover(); r != nil && x.logger != nil {
				x.logger.Error(context.Background(), nil, "trade event reporter panicked", map[string]interface{}{
					"panic": r, "user_id": x.tc.UserID,
				})
			}
		}()
		// Detach from the subscriber's (possibly short-lived) context.
		rctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		x.reporter.Report(rctx, event)
	}()
}
