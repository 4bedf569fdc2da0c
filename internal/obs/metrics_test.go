package obs

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAreScrapable(t *testing.T) {
	m := NewMetrics()
	m.TasksProcessed.WithLabelValues("EXECUTE_STRATEGY", "completed").Inc()
	m.SubscriberErrors.WithLabelValues("ma_crossover").Add(2)
	m.TradesAttempted.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `engine_tasks_processed_total{status="completed",type="EXECUTE_STRATEGY"} 1`)
	assert.Contains(t, body, `engine_subscriber_errors_total{strategy="ma_crossover"} 2`)
	assert.Contains(t, body, "engine_trades_attempted_total 1")
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	// Two instances must be independently registrable (no global registry).
	m1 := NewMetrics()
	m2 := NewMetrics()
	m1.TradesAttempted.Inc()

	rec := httptest.NewRecorder()
	m2.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "engine_trades_attempted_total 0")
}
