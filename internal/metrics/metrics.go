// Package metrics provides Prometheus instrumentation for the bot engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts price ticks received, partitioned by pair.
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botengine_ticks_total",
		Help: "Total price ticks received",
	}, []string{"pair"})

	// TradesTotal counts executed trades, partitioned by bot and side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botengine_trades_total",
		Help: "Total number of trades executed",
	}, []string{"bot", "side"})

	// RealizedProfit accumulates realized profit per bot (quote units).
	RealizedProfit = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botengine_realized_profit_total",
		Help: "Cumulative realized profit in quote currency",
	}, []string{"bot"})

	// SaveFailures counts persistence failures.
	SaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botengine_state_save_failures_total",
		Help: "Snapshot save failures",
	})

	// ActiveBots tracks the number of bots in the Running state.
	ActiveBots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "botengine_active_bots",
		Help: "Number of bots currently running",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "botengine_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// RejectedBuys counts buy signals dropped by the risk limiter.
	RejectedBuys = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botengine_rejected_buys_total",
		Help: "Buy signals rejected before execution",
	}, []string{"bot", "reason"})

	// TickLatency tracks the time spent handling one price tick.
	TickLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "botengine_tick_latency_seconds",
		Help:    "Price tick handling latency in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botengine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "botengine_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
