package ports

import (
	"context"
	"time"

	"copyTradeEngine/internal/domain"
)

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID       int64     // Exchange's order ID
	ClientOrderID string    // User-defined order ID
	Symbol        string    // Symbol for the order
	Price         float64   // Price of the order (0 for market orders initially)
	AvgPrice      float64   // Average filled price
	OrigQuantity  float64   // Original quantity requested
	ExecutedQty   float64   // Quantity filled
	Status        string    // Order status (e.g. NEW, FILLED)
	Type          string    // Order type (MARKET, STOP_MARKET, TAKE_PROFIT_MARKET)
	Side          string    // Order side (BUY, SELL)
	Timestamp     time.Time // Time the order response was generated
}

// PositionRisk represents the exchange-side state of an open position.
type PositionRisk struct {
	Symbol           string
	PositionAmt      float64 // positive for long, negative for short
	EntryPrice       float64
	MarkPrice        float64
	UnRealizedProfit float64
	LiquidationPrice float64
	Leverage         int
}

// ExchangeClient is the capability used for market data and order placement.
// One client is bound to one set of subscriber credentials; instances are
// never shared across subscribers.
type ExchangeClient interface {
	// GetKlines retrieves historical candles for the given symbol.
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error)

	// GetMarkPrice retrieves the current mark price for a symbol.
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)

	// GetAccountBalance retrieves the available balance for an asset (e.g. "USDT").
	GetAccountBalance(ctx context.Context, asset string) (float64, error)

	// SetLeverage sets the leverage for a symbol.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// PlaceMarketOrder places a market order.
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity float64, clientOrderID string) (*OrderResponse, error)

	// PlaceStopMarketOrder places a stop-market order at stopPrice.
	PlaceStopMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity, stopPrice float64, clientOrderID string) (*OrderResponse, error)

	// PlaceTakeProfitMarketOrder places a take-profit-market order at stopPrice.
	PlaceTakeProfitMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity, stopPrice float64, clientOrderID string) (*OrderResponse, error)

	// GetPositionRisk retrieves the open position for a symbol.
	// Returns nil, nil when no position exists.
	GetPositionRisk(ctx context.Context, symbol string) (*PositionRisk, error)
}

// ExchangeFactory builds an exchange client bound to one subscriber's
// credentials. The fan-out executor calls it once per subscriber.
type ExchangeFactory func(apiKey, apiSecret string) (ExchangeClient, error)
