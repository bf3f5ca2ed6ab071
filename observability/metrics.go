package observability

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SolveTotal counts version solver runs by outcome
	SolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obs_solve_total",
			Help: "Total number of version solver runs by outcome",
		},
		[]string{"outcome"}, // success, failure, error
	)

	// SolveDuration tracks version solver run duration in seconds
	SolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "obs_solve_duration_seconds",
			Help:    "Version solver run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to 16s
		},
	)

	// SolveSteps counts solver decisions and backjumps
	SolveSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obs_solve_steps_total",
			Help: "Total number of solver decisions, derivations and backjumps",
		},
		[]string{"kind"}, // decision, derivation, backjump, conflict
	)

	// SourceRequestsTotal counts bound source operations that reached the origin
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obs_source_requests_total",
			Help: "Total number of uncached source operations by source and operation",
		},
		[]string{"source", "operation"}, // operation: list, describe, download
	)

	// RegistryRequestsTotal counts HTTP requests to the registry by method and status
	RegistryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obs_registry_requests_total",
			Help: "Total number of registry HTTP requests by method and status",
		},
		[]string{"method", "status_code", "host"},
	)

	// RegistryRequestDuration tracks registry request duration in seconds
	RegistryRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "obs_registry_request_duration_seconds",
			Help:    "Registry HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"method", "host"},
	)

	// CacheHitsTotal counts cache hits by cache tier
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obs_cache_hits_total",
			Help: "Total number of cache hits by cache tier",
		},
		[]string{"tier"}, // memory, disk, manifest, package
	)

	// CacheMissesTotal counts cache misses by cache tier
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obs_cache_misses_total",
			Help: "Total number of cache misses by cache tier",
		},
		[]string{"tier"},
	)

	// PackageDownloadsTotal counts package downloads by status
	PackageDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obs_package_downloads_total",
			Help: "Total number of package downloads by status",
		},
		[]string{"status"}, // success, failure, cached
	)

	// PackageDownloadDuration tracks package download duration in seconds
	PackageDownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "obs_package_download_duration_seconds",
			Help:    "Package download and extraction duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to 40s
		},
	)

	// RegistrySyncTotal counts component versions handled by a registry sync
	RegistrySyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obs_registry_sync_total",
			Help: "Total number of component versions handled by registry sync by outcome",
		},
		[]string{"outcome"}, // added, existing, missing, duplicate
	)

	// RateLimitWaitsTotal counts requests that had to wait for the rate limiter
	RateLimitWaitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obs_rate_limit_waits_total",
			Help: "Total number of registry requests delayed by the rate limiter",
		},
		[]string{"host"},
	)
)

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer serves /metrics on addr until the server fails.
func StartMetricsServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	return http.ListenAndServe(addr, mux)
}

// GetCounterValue retrieves the current value of a counter metric with the given labels
// This is primarily intended for testing
func GetCounterValue(counter *prometheus.CounterVec, labels ...string) (float64, error) {
	metric, err := counter.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0, err
	}

	var pb dto.Metric
	if err := metric.Write(&pb); err != nil {
		return 0, err
	}

	if pb.Counter != nil {
		return pb.Counter.GetValue(), nil
	}

	return 0, nil
}
