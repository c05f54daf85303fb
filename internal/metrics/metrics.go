// Package metrics provides Prometheus instrumentation for the arena.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CyclesTotal counts completed cycles.
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_cycles_total",
		Help: "Total number of completed cycles",
	})

	CurrentCycle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_current_cycle",
		Help: "Number of the last completed cycle",
	})

	// CycleDuration observes wall time per cycle phase.
	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_phase_duration_seconds",
		Help:    "Cycle phase duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
	}, []string{"phase"})

	// TradesTotal counts evaluated trades by kind and status.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_trades_total",
		Help: "Total number of evaluated trades",
	}, []string{"kind", "status"})

	// Rejections counts rejected trades by reason.
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_rejections_total",
		Help: "Trades rejected by the exchange",
	}, []string{"reason"})

	// AgentFailures counts decisions that produced no intent because of an
	// error, timeout or panic.
	AgentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_agent_failures_total",
		Help: "Agent decisions that failed",
	}, []string{"agent", "cause"})

	DecisionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_decision_latency_seconds",
		Help:    "Agent decision latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"agent"})

	QuoteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_quote_failures_total",
		Help: "Quote fetches that failed outright",
	})

	// MissingQuotes counts configured instruments absent from a cycle's quotes.
	MissingQuotes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_missing_quotes_total",
		Help: "Instruments without a quote in a cycle",
	}, []string{"instrument"})

	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_persist_failures_total",
		Help: "State checkpoints that failed to persist",
	})

	PortfolioValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arena_portfolio_value",
		Help: "Portfolio value per agent after the last cycle",
	}, []string{"agent"})

	// WebSocketClients tracks connected viewer clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency per route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
