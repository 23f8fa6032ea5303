package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

type JobID string

// NewJobID returns a globally unique opaque 128-bit identifier.
func NewJobID() JobID {
	return JobID(uuid.NewString())
}

// DownloadJob is the aggregate root of a single download request.
// CreatedAt is immutable after creation; UpdatedAt is monotone
// non-decreasing across every mutation.
type DownloadJob struct {
	ID            JobID         `json:"job_id"`
	URL           string        `json:"url"`
	FormatID      string        `json:"format_id"`
	Status        JobStatus     `json:"status"`
	Progress      Progress      `json:"progress"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`
	DownloadURL   string        `json:"download_url,omitempty"`
	DownloadToken DownloadToken `json:"download_token,omitempty"`
	ExpireAt      *time.Time    `json:"expire_at,omitempty"`
}

// NewDownloadJob builds a pending job with initial progress.
func NewDownloadJob(rawURL, formatID string, now time.Time) (DownloadJob, error) {
	cleaned, err := ParseMediaURL(rawURL)
	if err != nil {
		return DownloadJob{}, err
	}
	now = now.UTC()
	return DownloadJob{
		ID:        NewJobID(),
		URL:       cleaned,
		FormatID:  strings.TrimSpace(formatID),
		Status:    JobPending,
		Progress:  InitialProgress(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ParseMediaURL validates a remote media URL. Only absolute http(s)
// URLs with a host are accepted.
func ParseMediaURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrInvalidURL
	}
	if parsed.Host == "" {
		return "", ErrInvalidURL
	}
	return parsed.String(), nil
}

// Start moves the job into processing. Repeated starts are a no-op and
// emit no event; starting a terminal job is a state error.
func (j *DownloadJob) Start(now time.Time) (Event, error) {
	switch j.Status {
	case JobProcessing:
		return nil, nil
	case JobPending:
		j.Status = JobProcessing
		j.touch(now)
		return JobStartedEvent{JobID: j.ID, URL: j.URL, FormatID: j.FormatID, OccurredAt: now.UTC()}, nil
	default:
		return nil, fmt.Errorf("%w: cannot start %s job", ErrJobState, j.Status)
	}
}

// SetProgress mutates progress; legal only while processing.
func (j *DownloadJob) SetProgress(p Progress, now time.Time) (Event, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidProgress, err)
	}
	if j.Status != JobProcessing {
		return nil, fmt.Errorf("%w: progress update on %s job", ErrJobState, j.Status)
	}
	j.Progress = p
	j.touch(now)
	return JobProgressUpdatedEvent{JobID: j.ID, Progress: p, OccurredAt: now.UTC()}, nil
}

// Complete finishes a processing job and publishes the download link.
// Completion forces progress to (100, completed).
func (j *DownloadJob) Complete(downloadURL string, token DownloadToken, expireAt time.Time, now time.Time) (Event, error) {
	if j.Status != JobProcessing {
		return nil, fmt.Errorf("%w: cannot complete %s job", ErrJobState, j.Status)
	}
	expireAt = expireAt.UTC()
	j.Status = JobCompleted
	j.Progress = CompletedProgress()
	j.DownloadURL = downloadURL
	j.DownloadToken = token
	j.ExpireAt = &expireAt
	j.touch(now)
	return JobCompletedEvent{JobID: j.ID, DownloadURL: downloadURL, ExpireAt: expireAt, OccurredAt: now.UTC()}, nil
}

// Fail is always legal while the job exists and replaces any prior error.
func (j *DownloadJob) Fail(message string, category ErrorCategory, now time.Time) Event {
	j.Status = JobFailed
	j.ErrorMessage = message
	j.ErrorCategory = category
	j.touch(now)
	return JobFailedEvent{JobID: j.ID, ErrorMessage: message, ErrorCategory: category, OccurredAt: now.UTC()}
}

// TimeRemaining is the number of whole seconds until the download link
// expires, floored at zero. Zero when no link has been published.
func (j DownloadJob) TimeRemaining(now time.Time) int64 {
	if j.ExpireAt == nil {
		return 0
	}
	remaining := int64(j.ExpireAt.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (j *DownloadJob) touch(now time.Time) {
	now = now.UTC()
	if now.After(j.UpdatedAt) {
		j.UpdatedAt = now
	}
}

// Validate checks domain invariants for DownloadJob.
func (j DownloadJob) Validate() error {
	if j.ID == "" {
		return errors.New("job id is required")
	}
	if j.URL == "" {
		return errors.New("url is required")
	}
	switch j.Status {
	case JobPending, JobProcessing, JobCompleted, JobFailed:
		// valid
	case "":
		return errors.New("status is required")
	default:
		return errors.New("invalid status: " + string(j.Status))
	}
	if err := j.Progress.Validate(); err != nil {
		return err
	}
	if j.UpdatedAt.Before(j.CreatedAt) {
		return errors.New("updatedAt before createdAt")
	}
	return nil
}
