// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cycle metrics
	CycleRunsTotal *prometheus.CounterVec
	CycleDuration  *prometheus.HistogramVec
	CycleErrors    *prometheus.CounterVec

	// Trading metrics
	PositionsOpened *prometheus.CounterVec
	PositionsClosed *prometheus.CounterVec
	RealizedPnL     *prometheus.CounterVec

	// Judge metrics
	JudgeRequestsTotal *prometheus.CounterVec
	JudgeOverrides     *prometheus.CounterVec
	JudgeLatency       prometheus.Histogram

	// Health metrics
	LastSuccessfulCycle *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "paper_trading_lab"
	}

	return &Metrics{
		// Cycle metrics
		CycleRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total number of cycle runs by cycle and status",
		}, []string{"cycle", "status"}),
		CycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Cycle execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"cycle"}),
		CycleErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "errors_total",
			Help:      "Total number of per-strategy errors surfaced by cycle runs",
		}, []string{"cycle", "strategy"}),

		// Trading metrics
		PositionsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened by strategy",
		}, []string{"strategy"}),
		PositionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "positions_closed_total",
			Help:      "Total number of positions closed by strategy and exit reason",
		}, []string{"strategy", "reason"}),
		RealizedPnL: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "realized_trades_total",
			Help:      "Total number of realized trades by strategy and outcome",
		}, []string{"strategy", "outcome"}),

		// Judge metrics
		JudgeRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "judge",
			Name:      "requests_total",
			Help:      "Total number of exit-judgment requests by status",
		}, []string{"status"}),
		JudgeOverrides: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "judge",
			Name:      "overrides_total",
			Help:      "Total number of soft exits vetoed by the judge, by strategy",
		}, []string{"strategy"}),
		JudgeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "judge",
			Name:      "latency_seconds",
			Help:      "Exit-judgment request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Health metrics
		LastSuccessfulCycle: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last successful run per cycle",
		}, []string{"cycle"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCycle records one finished cycle run.
func RecordCycle(cycle string, duration time.Duration, failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	DefaultMetrics.CycleRunsTotal.WithLabelValues(cycle, status).Inc()
	DefaultMetrics.CycleDuration.WithLabelValues(cycle).Observe(duration.Seconds())
	if !failed {
		DefaultMetrics.LastSuccessfulCycle.WithLabelValues(cycle).SetToCurrentTime()
	}
}

// RecordCycleErrors adds per-strategy error counts from a cycle run.
func RecordCycleErrors(cycle, strategy string, count int) {
	if count > 0 {
		DefaultMetrics.CycleErrors.WithLabelValues(cycle, strategy).Add(float64(count))
	}
}

// RecordPositionOpened increments the positions opened counter.
func RecordPositionOpened(strategy string) {
	DefaultMetrics.PositionsOpened.WithLabelValues(strategy).Inc()
}

// RecordPositionClosed increments the positions closed counter and the
// trade outcome counter.
func RecordPositionClosed(strategy, reason string, win bool) {
	DefaultMetrics.PositionsClosed.WithLabelValues(strategy, reason).Inc()
	outcome := "loss"
	if win {
		outcome = "win"
	}
	DefaultMetrics.RealizedPnL.WithLabelValues(strategy, outcome).Inc()
}

// RecordJudgeRequest records one judgment round trip.
func RecordJudgeRequest(err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.JudgeRequestsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.JudgeLatency.Observe(duration.Seconds())
}

// RecordJudgeOverride increments the judge override counter.
func RecordJudgeOverride(strategy string) {
	DefaultMetrics.JudgeOverrides.WithLabelValues(strategy).Inc()
}
