package domain

// Settings carries the configuration of one strategy deployment. The
// executor builds a subscriber-scoped copy per tenant so credentials and
// sizing never leak between subscribers.
type Settings struct {
	StrategyID     string `json:"strategy_id"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	Pair           string `json:"pair"`
	Resolution     string `json:"resolution"`

	// Subscriber-scoped fields, substituted by the executor.
	APIKey         string  `json:"api_key,omitempty"`
	APISecret      string  `json:"api_secret,omitempty"`
	Capital        float64 `json:"capital,omitempty"`
	Leverage       int     `json:"leverage,omitempty"`
	RiskPerTrade   float64 `json:"risk_per_trade,omitempty"`
	MarginCurrency string  `json:"margin_currency,omitempty"`

	// Free-form strategy parameters (periods, thresholds, ...).
	Params map[string]float64 `json:"params,omitempty"`
}

// ForSubscriber returns a copy of the settings with the subscriber's
// credentials and sizing parameters substituted in.
func (s *Settings) ForSubscriber(sub *Subscriber) *Settings {
	out := *s
	out.APIKey = sub.APIKey
	out.APISecret = sub.APISecret
	out.Capital = sub.Capital
	out.Leverage = sub.Leverage
	out.RiskPerTrade = sub.RiskPerTrade
	out.MarginCurrency = sub.MarginCurrency
	if s.Params != nil {
		params := make(map[string]float64, len(s.Params))
		for k, v := range s.Params {
			params[k] = v
		}
		out.Params = params
	}
	return &out
}

// Param returns the named strategy parameter or the given default.
func (s *Settings) Param(name string, def float64) float64 {
	if v, ok := s.Params[name]; ok {
		return v
	}
	return def
}
