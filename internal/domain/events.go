package domain

import "time"

// Event is a domain event raised by a job lifecycle transition.
// Events are immutable and serialize to a self-describing map.
type Event interface {
	Kind() string
	Job() JobID
	Time() time.Time
	Fields() map[string]any
}

const (
	KindJobStarted         = "job_started"
	KindJobProgressUpdated = "job_progress"
	KindJobCompleted       = "job_completed"
	KindJobFailed          = "job_failed"
	KindJobCancelled       = "job_cancelled"
)

// EventKinds lists every event variant, in no particular order.
// Cross-cutting handlers subscribe to each kind explicitly.
var EventKinds = []string{
	KindJobStarted,
	KindJobProgressUpdated,
	KindJobCompleted,
	KindJobFailed,
	KindJobCancelled,
}

type JobStartedEvent struct {
	JobID      JobID
	URL        string
	FormatID   string
	OccurredAt time.Time
}

func (e JobStartedEvent) Kind() string    { return KindJobStarted }
func (e JobStartedEvent) Job() JobID      { return e.JobID }
func (e JobStartedEvent) Time() time.Time { return e.OccurredAt }
func (e JobStartedEvent) Fields() map[string]any {
	return map[string]any{
		"job_id":      string(e.JobID),
		"url":         e.URL,
		"format_id":   e.FormatID,
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339),
	}
}

type JobProgressUpdatedEvent struct {
	JobID      JobID
	Progress   Progress
	OccurredAt time.Time
}

func (e JobProgressUpdatedEvent) Kind() string    { return KindJobProgressUpdated }
func (e JobProgressUpdatedEvent) Job() JobID      { return e.JobID }
func (e JobProgressUpdatedEvent) Time() time.Time { return e.OccurredAt }
func (e JobProgressUpdatedEvent) Fields() map[string]any {
	return map[string]any{
		"job_id":      string(e.JobID),
		"progress":    e.Progress.Map(),
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339),
	}
}

type JobCompletedEvent struct {
	JobID       JobID
	DownloadURL string
	ExpireAt    time.Time
	OccurredAt  time.Time
}

func (e JobCompletedEvent) Kind() string    { return KindJobCompleted }
func (e JobCompletedEvent) Job() JobID      { return e.JobID }
func (e JobCompletedEvent) Time() time.Time { return e.OccurredAt }
func (e JobCompletedEvent) Fields() map[string]any {
	fields := map[string]any{
		"job_id":       string(e.JobID),
		"download_url": e.DownloadURL,
		"occurred_at":  e.OccurredAt.UTC().Format(time.RFC3339),
	}
	if !e.ExpireAt.IsZero() {
		fields["expire_at"] = e.ExpireAt.UTC().Format(time.RFC3339)
	}
	return fields
}

type JobFailedEvent struct {
	JobID         JobID
	ErrorMessage  string
	ErrorCategory ErrorCategory
	OccurredAt    time.Time
}

func (e JobFailedEvent) Kind() string    { return KindJobFailed }
func (e JobFailedEvent) Job() JobID      { return e.JobID }
func (e JobFailedEvent) Time() time.Time { return e.OccurredAt }
func (e JobFailedEvent) Fields() map[string]any {
	fields := map[string]any{
		"job_id":      string(e.JobID),
		"error":       e.ErrorMessage,
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339),
	}
	if e.ErrorCategory != "" {
		fields["error_category"] = string(e.ErrorCategory)
	}
	return fields
}

type JobCancelledEvent struct {
	JobID      JobID
	OccurredAt time.Time
}

func (e JobCancelledEvent) Kind() string    { return KindJobCancelled }
func (e JobCancelledEvent) Job() JobID      { return e.JobID }
func (e JobCancelledEvent) Time() time.Time { return e.OccurredAt }
func (e JobCancelledEvent) Fields() map[string]any {
	return map[string]any{
		"job_id":      string(e.JobID),
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339),
	}
}
