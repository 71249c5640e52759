package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokko_sync_runs_total",
			Help: "Sync runs by outcome.",
		},
		[]string{"outcome"},
	)
	syncRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tokko_sync_run_duration_seconds",
			Help:    "Wall time of completed sync runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokko_sync_records_total",
			Help: "Records processed by action (created, updated, failed).",
		},
		[]string{"action"},
	)
	mediaTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokko_sync_media_total",
			Help: "Gallery photos by result (reused, downloaded, failed).",
		},
		[]string{"result"},
	)
	fetchedProperties = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tokko_sync_fetched_properties",
			Help: "Properties returned by the last fetch.",
		},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 60},
		},
		[]string{"method", "endpoint", "status"},
	)
)

func init() {
	prometheus.MustRegister(syncRunsTotal)
	prometheus.MustRegister(syncRunDuration)
	prometheus.MustRegister(recordsTotal)
	prometheus.MustRegister(mediaTotal)
	prometheus.MustRegister(fetchedProperties)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
}

// RecordRun counts a finished run. outcome is "ok", "partial" or "aborted".
func RecordRun(outcome string, elapsed time.Duration) {
	syncRunsTotal.WithLabelValues(outcome).Inc()
	if outcome != "aborted" {
		syncRunDuration.Observe(elapsed.Seconds())
	}
}

func RecordRecord(action string) { recordsTotal.WithLabelValues(action).Inc() }

func RecordMedia(result string) { mediaTotal.WithLabelValues(result).Inc() }

func SetFetched(n int) { fetchedProperties.Set(float64(n)) }

// RecordRequest records metrics for one HTTP request.
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
