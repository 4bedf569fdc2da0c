package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Strategy Loading / Execution Errors (fatal to the task)
	ErrMissingCapability = errors.New("strategy payload is missing a required capability")
	ErrStrategyNotFound  = errors.New("strategy is not registered")
	ErrMissingParameter  = errors.New("missing required parameter")
	ErrNoSubscribers     = errors.New("subscriber list is empty")
	ErrNoMarketData      = errors.New("market data fetch returned no candles")
	ErrValidation        = errors.New("result validation failed")

	// Exchange Specific Errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrPositionNotFound     = errors.New("position not found on the exchange")
	ErrOrderPlacementFailed = errors.New("failed to place order")

	// Queue Specific Errors
	ErrQueueUnavailable = errors.New("task queue is unavailable")
	ErrQueueEmpty       = errors.New("no task available before timeout")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
