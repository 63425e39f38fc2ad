package obs

import (
	"fmt"
	"net/http"

	"github.com/edgecore/core-runtime/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names and roles are grounded on the teacher's
// internal/obs/metrics.go (counters/gauges/histogram + promhttp
// handler), renamed to the job-scheduler and asset-resolution domain
// this orchestrator actually runs (spec.md §2.3).
var (
	JobsAdmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_admitted_total",
		Help: "Total number of jobs admitted to a scheduler queue",
	})
	JobsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_completed_total",
		Help: "Total number of jobs that reached StatusComplete",
	})
	JobsRetried = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_retried_total",
		Help: "Total number of jobs that returned StatusRetry",
	})
	JobsRetryWhenOnline = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_retry_when_online_total",
		Help: "Total number of jobs parked awaiting connectivity",
	})
	JobsWaitingForInternet = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobs_waiting_for_internet",
		Help: "Current number of jobs parked in the waiting-for-internet list",
	})
	AssetDownloadsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "asset_downloads_in_flight",
		Help: "Current number of AssetDownloadJobs that have not yet completed",
	})
	AssetLoadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "asset_load_duration_seconds",
		Help:    "Histogram of AssetLoadJob resolution durations",
		Buckets: prometheus.DefBuckets,
	})
	ShadowPromotions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shadow_promotions_total",
		Help: "Total number of times a shadow CommandCenter was promoted to active",
	})
	CommandCenterReady = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "command_center_ready",
		Help: "1 if the active CommandCenter is ready to serve run_task calls, else 0",
	})
	StreamParseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stream_parse_errors_total",
		Help: "Total number of JSON stream parse failures",
	})
)

func init() {
	prometheus.MustRegister(
		JobsAdmitted, JobsCompleted, JobsRetried, JobsRetryWhenOnline,
		JobsWaitingForInternet, AssetDownloadsInFlight, AssetLoadDuration,
		ShadowPromotions, CommandCenterReady, StreamParseErrors,
	)
}

// StartMetricsServer exposes /metrics on cfg's configured port and
// returns the server for controlled shutdown.
func StartMetricsServer(cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Observability.MetricsPort), Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
