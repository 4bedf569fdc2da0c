package reporter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyTradeEngine/internal/domain"
	"copyTradeEngine/internal/ports"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestReportPostsJSONEvent(t *testing.T) {
	var mu sync.Mutex
	var received ports.TradeEvent
	var contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rep, err := New(Config{Endpoint: srv.URL, Logger: noopLogger{}})
	require.NoError(t, err)

	rep.Report(context.Background(), &ports.TradeEvent{
		StrategyID:    "ma_crossover",
		UserID:        "user1",
		Symbol:        "ETHUSDT",
		Side:          domain.Long,
		Quantity:      2.5,
		OrderType:     "MARKET",
		ClientOrderID: "cid-1",
		Timestamp:     time.Now().UTC(),
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "user1", received.UserID)
	assert.Equal(t, "ETHUSDT", received.Symbol)
	assert.Equal(t, 2.5, received.Quantity)
}

func TestReportSwallowsEndpointErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rep, err := New(Config{Endpoint: srv.URL, Logger: noopLogger{}})
	require.NoError(t, err)

	// Must not panic or propagate anything.
	rep.Report(context.Background(), &ports.TradeEvent{UserID: "user1"})
}

func TestReportSwallowsConnectionErrors(t *testing.T) {
	rep, err := New(Config{Endpoint: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond, Logger: noopLogger{}})
	require.NoError(t, err)
	rep.Report(context.Background(), &ports.TradeEvent{UserID: "user1"})
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Logger: noopLogger{}})
	assert.Error(t, err)
	_, err = New(Config{Endpoint: "http://localhost"})
	assert.Error(t, err)
}
