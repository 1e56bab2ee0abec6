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
	// Pricing metrics
	PriceResolutions    *prometheus.CounterVec
	PriceCacheLookups   *prometheus.CounterVec
	ProviderCalls       *prometheus.CounterVec
	ProviderCallLatency *prometheus.HistogramVec
	RateLimitWait       *prometheus.HistogramVec

	// Classification metrics
	Classifications *prometheus.CounterVec

	// Report metrics
	ReportsBuilt        *prometheus.CounterVec
	ReportBuildDuration prometheus.Histogram
	TransfersSkipped    prometheus.Counter
	TaxableEvents       *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "wallet_tax_engine"
	}

	return &Metrics{
		// Pricing metrics
		PriceResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "resolutions_total",
			Help:      "Total number of token price resolutions by source and tier",
		}, []string{"source", "tier"}),
		PriceCacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "cache_lookups_total",
			Help:      "Total number of price cache lookups by result",
		}, []string{"result"}),
		ProviderCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total number of upstream provider calls by provider and status",
		}, []string{"provider", "status"}),
		ProviderCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "Upstream provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		RateLimitWait: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting on the per-provider rate limiter",
			Buckets:   []float64{0, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
		}, []string{"provider"}),

		// Classification metrics
		Classifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "classifications_total",
			Help:      "Total number of classified transfers by category and rule",
		}, []string{"category", "rule"}),

		// Report metrics
		ReportsBuilt: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "built_total",
			Help:      "Total number of report builds by status",
		}, []string{"status"}),
		ReportBuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "build_duration_seconds",
			Help:      "Report build duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		TransfersSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "transfers_skipped_total",
			Help:      "Total number of malformed transfers skipped",
		}),
		TaxableEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "taxable_events_total",
			Help:      "Total number of taxable events by kind",
		}, []string{"kind"}),

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
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPriceResolution records which tier produced a price.
func RecordPriceResolution(source, tier string) {
	DefaultMetrics.PriceResolutions.WithLabelValues(source, tier).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.PriceCacheLookups.WithLabelValues(result).Inc()
}

// RecordProviderCall records an upstream call outcome and latency.
func RecordProviderCall(provider string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.ProviderCalls.WithLabelValues(provider, status).Inc()
	DefaultMetrics.ProviderCallLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordRateLimitWait records time spent blocked on a provider gate.
func RecordRateLimitWait(provider string, seconds float64) {
	DefaultMetrics.RateLimitWait.WithLabelValues(provider).Observe(seconds)
}

// RecordClassification increments the classification counter.
func RecordClassification(category, rule string) {
	DefaultMetrics.Classifications.WithLabelValues(category, rule).Inc()
}

// RecordReportBuild records a report build.
func RecordReportBuild(status string, durationSeconds float64) {
	DefaultMetrics.ReportsBuilt.WithLabelValues(status).Inc()
	DefaultMetrics.ReportBuildDuration.Observe(durationSeconds)
}

// RecordSkippedTransfers adds n to the skipped transfers counter.
func RecordSkippedTransfers(n int) {
	DefaultMetrics.TransfersSkipped.Add(float64(n))
}

// RecordTaxableEvent increments the taxable event counter.
func RecordTaxableEvent(kind string) {
	DefaultMetrics.TaxableEvents.WithLabelValues(kind).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
