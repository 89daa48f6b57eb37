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
	// Pull metrics
	RecordsPulled    *prometheus.CounterVec
	RecordsStored    *prometheus.CounterVec
	PullRunsTotal    *prometheus.CounterVec
	PullDuration     *prometheus.HistogramVec
	WRDSQueryLatency *prometheus.HistogramVec

	// Dataset metrics
	DatasetsBuilt      *prometheus.CounterVec
	BenchmarkMaxVWDiff prometheus.Gauge

	// CDS metrics
	PortfoliosBuilt  prometheus.Counter
	ReturnsComputed  prometheus.Counter
	WorkbooksWritten prometheus.Counter

	// Progress metrics
	ProgressClients prometheus.Gauge
	ProgressEvents  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPull *prometheus.GaugeVec
	UptimeSeconds      prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crsp_equity_lab"
	}

	return &Metrics{
		// Pull metrics
		RecordsPulled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pull",
			Name:      "records_pulled_total",
			Help:      "Total number of records fetched from WRDS by pull kind",
		}, []string{"kind"}),
		RecordsStored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pull",
			Name:      "records_stored_total",
			Help:      "Total number of records written to the snapshot stores by pull kind",
		}, []string{"kind"}),
		PullRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pull",
			Name:      "runs_total",
			Help:      "Total number of pull runs by kind and status",
		}, []string{"kind", "status"}),
		PullDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pull",
			Name:      "duration_seconds",
			Help:      "Pull run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"kind"}),
		WRDSQueryLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "wrds",
			Name:      "query_latency_seconds",
			Help:      "WRDS query latency in seconds by table",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"table"}),

		// Dataset metrics
		DatasetsBuilt: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datasets",
			Name:      "built_total",
			Help:      "Total number of panel datasets built by return field",
		}, []string{"field"}),
		BenchmarkMaxVWDiff: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "datasets",
			Name:      "benchmark_max_vw_diff",
			Help:      "Largest absolute VW divergence against the published index in the last comparison",
		}),

		// CDS metrics
		PortfoliosBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cds",
			Name:      "portfolios_built_total",
			Help:      "Total number of tenor-quintile portfolios formed",
		}),
		ReturnsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cds",
			Name:      "return_series_computed_total",
			Help:      "Total number of portfolio return series computed",
		}),
		WorkbooksWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "workbooks_written_total",
			Help:      "Total number of Excel workbooks written",
		}),

		// Progress metrics
		ProgressClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "connected_clients",
			Help:      "Current number of websocket progress subscribers",
		}),
		ProgressEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "events_broadcast_total",
			Help:      "Total number of progress events broadcast",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulPull: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pull_timestamp",
			Help:      "Unix timestamp of the last successful pull by kind",
		}, []string{"kind"}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPullRun records a finished pull run.
func RecordPullRun(kind, status string, pulled, stored int, durationSeconds float64) {
	DefaultMetrics.PullRunsTotal.WithLabelValues(kind, status).Inc()
	DefaultMetrics.PullDuration.WithLabelValues(kind).Observe(durationSeconds)
	DefaultMetrics.RecordsPulled.WithLabelValues(kind).Add(float64(pulled))
	DefaultMetrics.RecordsStored.WithLabelValues(kind).Add(float64(stored))
}

// RecordPullSuccess stamps the freshness gauge for a pull kind.
func RecordPullSuccess(kind string, unixSeconds int64) {
	DefaultMetrics.LastSuccessfulPull.WithLabelValues(kind).Set(float64(unixSeconds))
}

// RecordWRDSQuery records WRDS query latency.
func RecordWRDSQuery(table string, seconds float64) {
	DefaultMetrics.WRDSQueryLatency.WithLabelValues(table).Observe(seconds)
}

// RecordDatasetBuilt increments the dataset counter for a return field.
func RecordDatasetBuilt(field string) {
	DefaultMetrics.DatasetsBuilt.WithLabelValues(field).Inc()
}

// RecordBenchmarkDiff updates the benchmark divergence gauge.
func RecordBenchmarkDiff(maxAbsVWDiff float64) {
	DefaultMetrics.BenchmarkMaxVWDiff.Set(maxAbsVWDiff)
}

// RecordPortfoliosBuilt adds to the portfolio formation counter.
func RecordPortfoliosBuilt(n int) {
	DefaultMetrics.PortfoliosBuilt.Add(float64(n))
}

// RecordReturnsComputed adds to the return series counter.
func RecordReturnsComputed(n int) {
	DefaultMetrics.ReturnsComputed.Add(float64(n))
}

// RecordWorkbookWritten increments the workbook counter.
func RecordWorkbookWritten() {
	DefaultMetrics.WorkbooksWritten.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// SetProgressClients updates the connected websocket subscriber gauge.
func SetProgressClients(n int) {
	DefaultMetrics.ProgressClients.Set(float64(n))
}

// RecordProgressEvent increments the published progress event counter.
func RecordProgressEvent() {
	DefaultMetrics.ProgressEvents.Inc()
}

// AddUptime adds elapsed seconds to the uptime counter.
func AddUptime(seconds float64) {
	DefaultMetrics.UptimeSeconds.Add(seconds)
}
