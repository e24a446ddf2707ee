package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector handles Prometheus metrics for the session service.
// Metrics live in the collector's own registry so that several collectors
// can coexist in one process, which the tests rely on.
type Collector struct {
	registry *prometheus.Registry
	metrics  map[string]prometheus.Collector
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	apiRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabble_api_request_duration_seconds",
			Help:    "Latency of calls to the restaurant API",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	pollTicks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabble_poll_ticks_total",
			Help: "Order status poll ticks by outcome",
		},
		[]string{"outcome"},
	)

	ordersPlaced := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabble_orders_placed_total",
			Help: "Order submissions by outcome",
		},
		[]string{"outcome"},
	)

	payments := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabble_order_payments_total",
			Help: "Per-order payment attempts by outcome",
		},
		[]string{"outcome"},
	)

	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabble_active_sessions",
			Help: "Open table sessions",
		},
	)

	metrics := map[string]prometheus.Collector{
		"api_request":     apiRequestDuration,
		"poll_ticks":      pollTicks,
		"orders_placed":   ordersPlaced,
		"payments":        payments,
		"active_sessions": activeSessions,
	}

	// Register metrics
	for _, metric := range metrics {
		registry.MustRegister(metric)
	}

	return &Collector{
		registry: registry,
		metrics:  metrics,
	}
}

// Registry exposes the underlying registry for scraping and tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveAPIRequest records the latency of one restaurant API call
func (c *Collector) ObserveAPIRequest(operation string, err error, d time.Duration) {
	if histogram, ok := c.metrics["api_request"].(*prometheus.HistogramVec); ok {
		histogram.WithLabelValues(operation, outcome(err)).Observe(d.Seconds())
	}
}

// PollTick counts a poll tick; outcome is "ok", "error" or "skipped"
func (c *Collector) PollTick(result string) {
	if counter, ok := c.metrics["poll_ticks"].(*prometheus.CounterVec); ok {
		counter.WithLabelValues(result).Inc()
	}
}

// OrderPlaced counts an order submission
func (c *Collector) OrderPlaced(err error) {
	if counter, ok := c.metrics["orders_placed"].(*prometheus.CounterVec); ok {
		counter.WithLabelValues(outcome(err)).Inc()
	}
}

// PaymentAttempt counts one order payment
func (c *Collector) PaymentAttempt(err error) {
	if counter, ok := c.metrics["payments"].(*prometheus.CounterVec); ok {
		counter.WithLabelValues(outcome(err)).Inc()
	}
}

// SessionOpened increments the active session gauge
func (c *Collector) SessionOpened() {
	if gauge, ok := c.metrics["active_sessions"].(prometheus.Gauge); ok {
		gauge.Inc()
	}
}

// SessionClosed decrements the active session gauge
func (c *Collector) SessionClosed() {
	if gauge, ok := c.metrics["active_sessions"].(prometheus.Gauge); ok {
		gauge.Dec()
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
