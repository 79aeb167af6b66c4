// Package monitor provides Prometheus instrumentation for backtests and the API.
package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts finished backtest runs by strategy kind and result.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_runs_total",
		Help: "Total number of backtest runs",
	}, []string{"kind", "result"})

	// RunDuration tracks wall time per run.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backtest_run_duration_seconds",
		Help:    "Backtest run duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"kind"})

	// BarsProcessed counts bars replayed across all runs.
	BarsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backtest_bars_processed_total",
		Help: "Bars replayed by the backtest driver",
	})

	// OrderOutcomes counts resolved orders by outcome.
	OrderOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_order_outcomes_total",
		Help: "Resolved simulated orders by outcome",
	}, []string{"outcome"})

	// TradesClosed counts closed round trips by result.
	TradesClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_trades_closed_total",
		Help: "Closed simulated trades",
	}, []string{"result"})

	// SweepCombinations counts parameter combinations evaluated by sweeps.
	SweepCombinations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backtest_sweep_combinations_total",
		Help: "Parameter combinations evaluated by sweeps",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backtest_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backtest_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
	}, []string{"method", "path"})
)

// ObserveRun records one finished run.
func ObserveRun(kind string, d time.Duration, bars int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	RunsTotal.WithLabelValues(kind, result).Inc()
	RunDuration.WithLabelValues(kind).Observe(d.Seconds())
	BarsProcessed.Add(float64(bars))
}

// ObserveTrade records one closed trade.
func ObserveTrade(pnlcomm float64) {
	if pnlcomm > 0 {
		TradesClosed.WithLabelValues("win").Inc()
		return
	}
	TradesClosed.WithLabelValues("loss").Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request metrics using the matched route as path label.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
