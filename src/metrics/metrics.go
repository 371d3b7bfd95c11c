// Package metrics provides Prometheus metrics for the probe, the NWS client
// and the HTTP API
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream (api.weather.gov) metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_probe_upstream_requests_total",
			Help: "Total number of requests sent to the NWS API",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weather_probe_upstream_request_duration_seconds",
			Help:    "NWS API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_probe_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_probe_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// Probe metrics
	ProbeRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_probe_runs_total",
			Help: "Total number of probe runs",
		},
		[]string{"status"},
	)

	ProbeCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_probe_calls_total",
			Help: "Total number of weather module calls by outcome",
		},
		[]string{"call", "outcome"},
	)

	ScheduledRunsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_probe_scheduled_runs_skipped_total",
			Help: "Scheduled runs skipped because the previous run was still in flight",
		},
		[]string{"task"},
	)

	ProbeLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weather_probe_last_success_timestamp",
			Help: "Timestamp of the last probe run where every call succeeded",
		},
	)

	// HTTP API metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_probe_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weather_probe_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weather_probe_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)

	// Application info
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "weather_probe_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "build_date", "go_version"},
	)
)

// SetAppInfo records build information. The gauge value is always 1.
func SetAppInfo(version, commit, buildDate string) {
	AppInfo.WithLabelValues(version, commit, buildDate, runtime.Version()).Set(1)
}

// WriteTextfile writes every registered metric to path in the text exposition
// format, for the node_exporter textfile collector
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
