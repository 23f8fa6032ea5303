package events

import (
	"context"
	"log/slog"

	"mediafetch/internal/domain"
)

// NewLoggingHandler returns a cross-cutting handler that records every
// domain event. Progress ticks log at debug to keep the log volume sane;
// completion fields that carry the download token stay out of info-level
// output entirely.
func NewLoggingHandler(logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(event domain.Event) {
		attrs := []slog.Attr{
			slog.String("jobId", string(event.Job())),
		}
		level := slog.LevelInfo
		switch e := event.(type) {
		case domain.JobStartedEvent:
			attrs = append(attrs, slog.String("url", e.URL), slog.String("formatId", e.FormatID))
		case domain.JobProgressUpdatedEvent:
			level = slog.LevelDebug
			attrs = append(attrs,
				slog.Float64("percentage", e.Progress.Percentage),
				slog.String("phase", e.Progress.Phase),
			)
		case domain.JobCompletedEvent:
			attrs = append(attrs, slog.Time("expireAt", e.ExpireAt))
		case domain.JobFailedEvent:
			level = slog.LevelWarn
			attrs = append(attrs,
				slog.String("error", e.ErrorMessage),
				slog.String("category", string(e.ErrorCategory)),
			)
		}
		logger.LogAttrs(context.Background(), level, event.Kind(), attrs...)
	}
}
