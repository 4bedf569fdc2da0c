package ports

import (
	"context"

	"copyTradeEngine/internal/domain"
)

// TradeRepository is the journal surface the executor writes and consults.
// Wider read queries live on the concrete repository.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// CountTodayByUser counts the trades recorded today for a user; the
	// executor enforces the daily trade cap with it.
	CountTodayByUser(ctx context.Context, userID string) (int, error)
}
