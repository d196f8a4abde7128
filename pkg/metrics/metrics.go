// Package metrics provides Prometheus metrics for the price node.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RateUpdatesTotal is a counter of rate updates received from sources.
	RateUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_updates_total",
			Help: "Total number of rate updates received from sources",
		},
		[]string{"source", "symbol"},
	)

	// SourceHealth is a gauge of the health status of rate sources.
	SourceHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_health",
			Help: "Health status of rate sources (1=healthy, 0=unhealthy)",
		},
		[]string{"source", "type"},
	)

	// SourceLastUpdate is a gauge of the last update timestamp from sources.
	SourceLastUpdate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_last_update_timestamp",
			Help: "Unix timestamp of last update from source",
		},
		[]string{"source"},
	)

	// SourceRateCount is the number of rates a source contributed to the last snapshot.
	SourceRateCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_rate_count",
			Help: "Number of rates a source contributed to the last snapshot",
		},
		[]string{"source"},
	)

	// AggregationDuration is a histogram of aggregation pass duration.
	AggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "price_aggregation_duration_seconds",
			Help:    "Duration of price aggregation operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// OutlierRejectionsTotal is a counter of rejected outlier prices.
	OutlierRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outlier_rejections_total",
			Help: "Total number of outlier prices rejected",
		},
		[]string{"symbol"},
	)

	// OutlierFallbacksTotal counts pairs where filtering left nothing and the plain mean was used.
	OutlierFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outlier_filter_fallbacks_total",
			Help: "Total number of outlier filter fallbacks to the unfiltered mean",
		},
		[]string{"symbol"},
	)

	// TranslationSkippedTotal counts currencies left out of a snapshot for lack of bridge data.
	TranslationSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translation_skipped_total",
			Help: "Total number of currencies skipped during pivot translation",
		},
		[]string{"currency"},
	)

	// RateTransformsTotal counts transformer invocations by outcome.
	RateTransformsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_transforms_total",
			Help: "Total number of rate transformer invocations",
		},
		[]string{"currency", "result"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)

	// SnapshotPublishTotal counts snapshot publish attempts.
	SnapshotPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_publish_total",
			Help: "Total number of snapshot publish attempts",
		},
		[]string{"status"},
	)
)

var initOnce sync.Once

// Init registers all metrics with the default Prometheus registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RateUpdatesTotal,
			SourceHealth,
			SourceLastUpdate,
			SourceRateCount,
			AggregationDuration,
			OutlierRejectionsTotal,
			OutlierFallbacksTotal,
			TranslationSkippedTotal,
			RateTransformsTotal,
			HTTPRequestsTotal,
			HTTPRequestDuration,
			SnapshotPublishTotal,
		)
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ServeHTTP serves Prometheus metrics on a dedicated address.
func ServeHTTP(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordSourceUpdate records a rate update from a source.
func RecordSourceUpdate(source, symbol string) {
	RateUpdatesTotal.WithLabelValues(source, symbol).Inc()
	SourceLastUpdate.WithLabelValues(source).SetToCurrentTime()
}

// RecordSourceHealth records the health status of a source.
func RecordSourceHealth(source, sourceType string, healthy bool) {
	val := 0.0
	if healthy {
		val = 1.0
	}
	SourceHealth.WithLabelValues(source, sourceType).Set(val)
}

// RecordSourceRateCount records how many rates a source contributed to a snapshot.
func RecordSourceRateCount(source string, count int) {
	SourceRateCount.WithLabelValues(source).Set(float64(count))
}

// RecordAggregation records an aggregation operation.
func RecordAggregation(method string, duration time.Duration) {
	AggregationDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordOutlierRejection records an outlier rejection.
func RecordOutlierRejection(symbol string) {
	OutlierRejectionsTotal.WithLabelValues(symbol).Inc()
}

// RecordOutlierFallback records a pair whose filter yielded no inliers.
func RecordOutlierFallback(symbol string) {
	OutlierFallbacksTotal.WithLabelValues(symbol).Inc()
}

// RecordTranslationSkipped records a currency omitted from pivot translation.
func RecordTranslationSkipped(currency string) {
	TranslationSkippedTotal.WithLabelValues(currency).Inc()
}

// RecordTransform records a transformer invocation. result is "applied" or "unchanged".
func RecordTransform(currency, result string) {
	RateTransformsTotal.WithLabelValues(currency, result).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordSnapshotPublish records a snapshot publish attempt.
func RecordSnapshotPublish(status string) {
	SnapshotPublishTotal.WithLabelValues(status).Inc()
}
