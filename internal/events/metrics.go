package events

import (
	"mediafetch/internal/domain"
	"mediafetch/internal/metrics"
)

// NewMetricsHandler counts terminal job outcomes. Register it for every
// event kind; non-terminal events pass through untouched.
func NewMetricsHandler() Handler {
	return func(event domain.Event) {
		switch e := event.(type) {
		case domain.JobCompletedEvent:
			metrics.DownloadsTotal.WithLabelValues("completed").Inc()
		case domain.JobFailedEvent:
			metrics.DownloadsTotal.WithLabelValues("failed").Inc()
			metrics.DownloadFailuresTotal.WithLabelValues(string(e.ErrorCategory)).Inc()
		case domain.JobCancelledEvent:
			metrics.DownloadsTotal.WithLabelValues("cancelled").Inc()
		}
	}
}
