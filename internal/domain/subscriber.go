package domain

// Subscriber is one tenant account executing a shared strategy with isolated
// credentials and capital. Credentials and sizing parameters are never
// shared across subscribers even though market data and signals are.
type Subscriber struct {
	UserID         string  `json:"user_id"`
	APIKey         string  `json:"api_key"`
	APISecret      string  `json:"api_secret"`
	Capital        float64 `json:"capital"`
	Leverage       int     `json:"leverage"`
	RiskPerTrade   float64 `json:"risk_per_trade"`
	MarginCurrency string  `json:"margin_currency,omitempty"`
}
