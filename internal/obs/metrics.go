// Package obs exposes the worker's operational metrics via Prometheus.
package obs

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"copyTradeEngine/internal/ports"
)

// Metrics holds the worker's counters. One instance is shared by the task
// loop and the executor wiring.
type Metrics struct {
	registry *prometheus.Registry

	TasksProcessed   *prometheus.CounterVec
	TaskDuration     *prometheus.HistogramVec
	SubscriberErrors *prometheus.CounterVec
	TradesAttempted  prometheus.Counter
}

// NewMetrics creates and registers the metric set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		TasksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_tasks_processed_total",
			Help: "Tasks consumed from the work queue, by type and terminal status.",
		}, []string{"type", "status"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engine_task_duration_seconds",
			Help:    "Wall-clock duration of task processing, by type.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"type"}),
		SubscriberErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_subscriber_errors_total",
			Help: "Per-subscriber failures isolated during fan-out, by strategy.",
		}, []string{"strategy"}),
		TradesAttempted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_trades_attempted_total",
			Help: "Order placements attempted across all subscribers.",
		}),
	}
	reg.MustRegister(m.TasksProcessed, m.TaskDuration, m.SubscriberErrors, m.TradesAttempted)
	return m
}

// Handler returns the scrape handler for the metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the metrics endpoint until ctx is cancelled. Failures are
// logged; metrics exposure never takes the worker down.
func (m *Metrics) Serve(ctx context.Context, addr string, logger ports.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "metrics endpoint listening", map[string]interface{}{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error(ctx, err, "metrics endpoint stopped", map[string]interface{}{"addr": addr})
	}
}
