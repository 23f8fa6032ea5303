package domain

import (
	"fmt"
	"time"
)

// JobArchive is an immutable post-mortem snapshot of a terminal job.
type JobArchive struct {
	JobID         JobID         `json:"job_id"`
	URL           string        `json:"url"`
	FormatID      string        `json:"format_id"`
	Status        JobStatus     `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	CompletedAt   time.Time     `json:"completed_at"`
	ArchivedAt    time.Time     `json:"archived_at"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`
	DownloadToken DownloadToken `json:"download_token,omitempty"`
}

// NewJobArchive snapshots a terminal job. Active jobs cannot be archived.
func NewJobArchive(job DownloadJob, now time.Time) (JobArchive, error) {
	if !job.Status.IsTerminal() {
		return JobArchive{}, fmt.Errorf("%w: cannot archive %s job", ErrJobState, job.Status)
	}
	return JobArchive{
		JobID:         job.ID,
		URL:           job.URL,
		FormatID:      job.FormatID,
		Status:        job.Status,
		CreatedAt:     job.CreatedAt,
		CompletedAt:   job.UpdatedAt,
		ArchivedAt:    now.UTC(),
		ErrorMessage:  job.ErrorMessage,
		ErrorCategory: job.ErrorCategory,
		DownloadToken: job.DownloadToken,
	}, nil
}
