package ports

import (
	"context"
	"time"

	"mediafetch/internal/domain"
)

// StatusUpdate carries the fields a terminal or processing transition
// writes atomically alongside the status itself.
type StatusUpdate struct {
	Status        domain.JobStatus
	ErrorMessage  string
	ErrorCategory domain.ErrorCategory
	DownloadURL   string
	DownloadToken domain.DownloadToken
	ExpireAt      *time.Time
}

// JobRepository is the live-state store for download jobs. UpdateProgress
// and UpdateStatus must be atomic at the store: the check against a
// terminal record happens inside the scripted operation, never in the
// caller. Both return false when the record does not exist (the job was
// deleted, i.e. cancelled) or when the stored record is already terminal.
type JobRepository interface {
	Create(ctx context.Context, job domain.DownloadJob) error
	Get(ctx context.Context, id domain.JobID) (domain.DownloadJob, error)
	UpdateProgress(ctx context.Context, id domain.JobID, p domain.Progress) (bool, error)
	UpdateStatus(ctx context.Context, id domain.JobID, update StatusUpdate) (bool, error)
	Delete(ctx context.Context, id domain.JobID) (bool, error)
	ListTerminalOlderThan(ctx context.Context, cutoff time.Time) ([]domain.DownloadJob, error)
}

// JobQueue hands pending jobs to download workers.
type JobQueue interface {
	Enqueue(ctx context.Context, id domain.JobID) error
	// Dequeue blocks up to timeout; ok is false when nothing arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (id domain.JobID, ok bool, err error)
}

// FileRepository stores download-token metadata. Save replaces any
// existing entry for the same job.
type FileRepository interface {
	Save(ctx context.Context, file domain.DownloadedFile) error
	GetByToken(ctx context.Context, token domain.DownloadToken) (domain.DownloadedFile, error)
	GetByJobID(ctx context.Context, id domain.JobID) (domain.DownloadedFile, error)
	DeleteByToken(ctx context.Context, token domain.DownloadToken) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]domain.DownloadedFile, error)
}

// JobArchiveRepository is the post-mortem store for terminal jobs.
type JobArchiveRepository interface {
	Save(ctx context.Context, archive domain.JobArchive) error
	Get(ctx context.Context, id domain.JobID) (domain.JobArchive, error)
	ListByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]domain.JobArchive, error)
}

// RateLimitRepository backs the distributed request counters.
// Increment must be a single atomic operation: read the counter, refuse
// the bump when it is already at the bound, otherwise increment and arm
// the expiry on first use so the counter dies at the window boundary.
// It returns the counter value after the operation and whether the
// request was admitted.
type RateLimitRepository interface {
	Increment(ctx context.Context, key string, limit int64, expiry time.Duration) (int64, bool, error)
	Count(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}
