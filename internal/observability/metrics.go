// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Run metrics
	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	TickersTotal   *prometheus.CounterVec
	RowsProduced   *prometheus.CounterVec
	LastRowsOutput prometheus.Gauge

	// Extraction metrics
	APICallsTotal   *prometheus.CounterVec
	APICallLatency  *prometheus.HistogramVec
	PayloadReplays  prometheus.Counter
	APIRetriesTotal *prometheus.CounterVec

	// Storage metrics
	StoreWriteDuration *prometheus.HistogramVec
	StoreWriteErrors   *prometheus.CounterVec
	ExportedFiles      *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "market_etl"
	}

	return &Metrics{
		// Run metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline phase duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		TickersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "tickers_total",
			Help:      "Tickers processed by outcome and failure stage",
		}, []string{"outcome", "stage"}),
		RowsProduced: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rows_produced_total",
			Help:      "Rows produced per output table",
		}, []string{"table"}),
		LastRowsOutput: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_rows_written",
			Help:      "fact_prices rows written by the last run",
		}),

		// Extraction metrics
		APICallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alphavantage",
			Name:      "api_calls_total",
			Help:      "Upstream API calls by function and result",
		}, []string{"function", "result"}),
		APICallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alphavantage",
			Name:      "api_call_latency_seconds",
			Help:      "Upstream API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"function"}),
		PayloadReplays: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alphavantage",
			Name:      "payload_replays_total",
			Help:      "Payloads served from the raw archive instead of the API",
		}),
		APIRetriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alphavantage",
			Name:      "api_retries_total",
			Help:      "Upstream API retries by reason",
		}, []string{"reason"}),

		// Storage metrics
		StoreWriteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "write_duration_seconds",
			Help:      "Store write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table"}),
		StoreWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "write_errors_total",
			Help:      "Total number of store write errors",
		}, []string{"table"}),
		ExportedFiles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "files_written_total",
			Help:      "Output files written by format",
		}, []string{"format"}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRun records a finished pipeline run.
func RecordRun(status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues("total").Observe(durationSeconds)
}

// RecordPhase records the duration of one pipeline phase.
func RecordPhase(phase string, durationSeconds float64) {
	DefaultMetrics.RunDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordTickerSucceeded counts a ticker that made it into the output.
func RecordTickerSucceeded() {
	DefaultMetrics.TickersTotal.WithLabelValues("succeeded", "").Inc()
}

// RecordTickerFailed counts a failed ticker by stage.
func RecordTickerFailed(stage string) {
	DefaultMetrics.TickersTotal.WithLabelValues("failed", stage).Inc()
}

// RecordRows counts rows produced for a table.
func RecordRows(table string, n int) {
	DefaultMetrics.RowsProduced.WithLabelValues(table).Add(float64(n))
}

// RecordRunSucceeded updates health gauges after a successful run.
func RecordRunSucceeded(rowsWritten int, unixSeconds int64) {
	DefaultMetrics.LastRowsOutput.Set(float64(rowsWritten))
	DefaultMetrics.LastSuccessfulRun.Set(float64(unixSeconds))
}

// RecordAPICall records one upstream API request.
func RecordAPICall(function, result string, seconds float64) {
	DefaultMetrics.APICallsTotal.WithLabelValues(function, result).Inc()
	DefaultMetrics.APICallLatency.WithLabelValues(function).Observe(seconds)
}

// RecordAPIRetry records an upstream retry.
func RecordAPIRetry(reason string) {
	DefaultMetrics.APIRetriesTotal.WithLabelValues(reason).Inc()
}

// RecordPayloadReplay records a payload served from the raw archive.
func RecordPayloadReplay() {
	DefaultMetrics.PayloadReplays.Inc()
}

// RecordStoreWrite records store write metrics.
func RecordStoreWrite(table string, seconds float64, err error) {
	DefaultMetrics.StoreWriteDuration.WithLabelValues(table).Observe(seconds)
	if err != nil {
		DefaultMetrics.StoreWriteErrors.WithLabelValues(table).Inc()
	}
}

// RecordExport counts an output file written.
func RecordExport(format string) {
	DefaultMetrics.ExportedFiles.WithLabelValues(format).Inc()
}
