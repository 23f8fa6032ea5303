package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediafetch",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediafetch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ActiveDownloads = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediafetch",
		Name:      "active_downloads",
		Help:      "Number of downloads currently in flight.",
	})

	DownloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediafetch",
		Name:      "downloads_total",
		Help:      "Total finished download jobs by outcome.",
	}, []string{"outcome"})

	DownloadFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediafetch",
		Name:      "download_failures_total",
		Help:      "Total failed download jobs by error category.",
	}, []string{"category"})

	DownloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mediafetch",
		Name:      "download_duration_seconds",
		Help:      "Duration of download jobs in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	RateLimitRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediafetch",
		Name:      "rate_limit_rejections_total",
		Help:      "Total requests rejected by the rate limiter, by limit type.",
	}, []string{"limit_type"})

	ReapedJobsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediafetch",
		Name:      "reaped_jobs_total",
		Help:      "Total stale terminal jobs archived and removed by the reaper.",
	})

	ReapedFilesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediafetch",
		Name:      "reaped_files_total",
		Help:      "Total expired files removed by the reaper.",
	})

	WSClientsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediafetch",
		Name:      "ws_clients_connected",
		Help:      "Number of currently connected WebSocket clients.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveDownloads,
		DownloadsTotal,
		DownloadFailuresTotal,
		DownloadDuration,
		RateLimitRejectionsTotal,
		ReapedJobsTotal,
		ReapedFilesTotal,
		WSClientsConnected,
	)
}
