// Package reporter delivers trade events to an external HTTP endpoint as
// JSON. Delivery is best-effort: failures are logged with the event's
// correlation ids and never returned to the caller.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"copyTradeEngine/internal/ports"
)

const defaultTimeout = 10 * time.Second

// HTTPReporter implements ports.TradeReporter with a JSON POST per event.
type HTTPReporter struct {
	endpoint string
	client   *http.Client
	logger   ports.Logger
}

// Config holds the reporter's construction parameters.
type Config struct {
	// Endpoint is the URL trade events are POSTed to.
	Endpoint string
	// Timeout bounds one delivery attempt. Defaults to 10s.
	Timeout time.Duration
	Logger  ports.Logger
}

// New creates an HTTP trade reporter.
func New(cfg Config) (*HTTPReporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("reporter: endpoint is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("reporter: logger is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPReporter{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   cfg.Logger,
	}, nil
}

// Report posts one event. Errors are logged, never propagated; the order
// placement that produced the event has already succeeded.
func (r *HTTPReporter) Report(ctx context.Context, event *ports.TradeEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		r.logger.Error(ctx, err, "failed to encode trade event", map[string]interface{}{
			"user_id": event.UserID, "client_order_id": event.ClientOrderID,
		})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		r.logger.Error(ctx, err, "failed to build trade event request", map[string]interface{}{
			"endpoint": r.endpoint,
		})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error(ctx, err, "trade event delivery failed", map[string]interface{}{
			"endpoint": r.endpoint, "user_id": event.UserID, "client_order_id": event.ClientOrderID,
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		r.logger.Error(ctx, fmt.Errorf("unexpected status %d", resp.StatusCode), "trade event rejected by endpoint", map[string]interface{}{
			"endpoint": r.endpoint, "user_id": event.UserID, "client_order_id": event.ClientOrderID,
		})
		return
	}
	r.logger.Debug(ctx, "trade event delivered", map[string]interface{}{
		"user_id": event.UserID, "client_order_id": event.ClientOrderID,
	})
}
