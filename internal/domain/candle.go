package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Candle represents a single OHLCV data point.
type Candle struct {
	OpenTime  time.Time `json:"time"`
	CloseTime time.Time `json:"close_time,omitempty"`
	Symbol    string    `json:"symbol,omitempty"`
	Interval  string    `json:"interval,omitempty"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// ParseResolution converts a resolution string like "1m", "15m", "4h" or "1d"
// into a duration.
func ParseResolution(res string) (time.Duration, error) {
	if len(res) < 2 {
		return 0, fmt.Errorf("invalid resolution %q", res)
	}
	unit := res[len(res)-1]
	n, err := strconv.Atoi(res[:len(res)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid resolution %q", res)
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid resolution unit %q", strings.ToLower(res))
	}
}
