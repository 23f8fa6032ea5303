package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediafetch/internal/domain"
	"mediafetch/internal/domain/ports"
)

// Manager owns the job state machine on top of the repository. All
// terminal-state races resolve inside the store's atomic updates; the
// manager never does load-then-save for progress or status.
type Manager struct {
	Repo ports.JobRepository
	Now  func() time.Time
}

func (m Manager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

// Create builds a pending job and persists it.
func (m Manager) Create(ctx context.Context, url, formatID string) (domain.DownloadJob, error) {
	job, err := domain.NewDownloadJob(url, formatID, m.now())
	if err != nil {
		return domain.DownloadJob{}, err
	}
	if err := m.Repo.Create(ctx, job); err != nil {
		return domain.DownloadJob{}, err
	}
	return job, nil
}

func (m Manager) Get(ctx context.Context, id domain.JobID) (domain.DownloadJob, error) {
	return m.Repo.Get(ctx, id)
}

// Start moves a pending job into processing. The event is nil for the
// idempotent already-processing case.
func (m Manager) Start(ctx context.Context, id domain.JobID) (domain.DownloadJob, domain.Event, error) {
	job, err := m.Repo.Get(ctx, id)
	if err != nil {
		return domain.DownloadJob{}, nil, err
	}
	event, err := job.Start(m.now())
	if err != nil {
		return domain.DownloadJob{}, nil, err
	}
	if event == nil {
		return job, nil, nil
	}
	applied, err := m.Repo.UpdateStatus(ctx, id, ports.StatusUpdate{Status: domain.JobProcessing})
	if err != nil {
		return domain.DownloadJob{}, nil, err
	}
	if !applied {
		return domain.DownloadJob{}, nil, m.refusalError(ctx, id, "start")
	}
	return job, event, nil
}

// UpdateProgress applies one progress tick through the store's atomic
// script. applied is false when the record is gone (the job was
// cancelled) or already terminal; callers treat that as a stop signal.
func (m Manager) UpdateProgress(ctx context.Context, id domain.JobID, p domain.Progress) (bool, domain.Event, error) {
	applied, err := m.Repo.UpdateProgress(ctx, id, p)
	if err != nil {
		return false, nil, err
	}
	if !applied {
		return false, nil, nil
	}
	return true, domain.JobProgressUpdatedEvent{JobID: id, Progress: p, OccurredAt: m.now()}, nil
}

// Complete publishes the download link and finishes the job.
func (m Manager) Complete(ctx context.Context, id domain.JobID, downloadURL string, token domain.DownloadToken, expireAt time.Time) (domain.DownloadJob, domain.Event, error) {
	job, err := m.Repo.Get(ctx, id)
	if err != nil {
		return domain.DownloadJob{}, nil, err
	}
	event, err := job.Complete(downloadURL, token, expireAt, m.now())
	if err != nil {
		return domain.DownloadJob{}, nil, err
	}
	expireAtUTC := expireAt.UTC()
	applied, err := m.Repo.UpdateStatus(ctx, id, ports.StatusUpdate{
		Status:        domain.JobCompleted,
		DownloadURL:   downloadURL,
		DownloadToken: token,
		ExpireAt:      &expireAtUTC,
	})
	if err != nil {
		return domain.DownloadJob{}, nil, err
	}
	if !applied {
		return domain.DownloadJob{}, nil, m.refusalError(ctx, id, "complete")
	}
	return job, event, nil
}

// Fail marks the job failed. Legal from any state while the record
// exists; a prior error is replaced.
func (m Manager) Fail(ctx context.Context, id domain.JobID, message string, category domain.ErrorCategory) (domain.DownloadJob, domain.Event, error) {
	applied, err := m.Repo.UpdateStatus(ctx, id, ports.StatusUpdate{
		Status:        domain.JobFailed,
		ErrorMessage:  message,
		ErrorCategory: category,
	})
	if err != nil {
		return domain.DownloadJob{}, nil, err
	}
	if !applied {
		return domain.DownloadJob{}, nil, domain.ErrNotFound
	}
	job, err := m.Repo.Get(ctx, id)
	if err != nil {
		return domain.DownloadJob{}, nil, err
	}
	return job, domain.JobFailedEvent{JobID: id, ErrorMessage: message, ErrorCategory: category, OccurredAt: m.now()}, nil
}

func (m Manager) Delete(ctx context.Context, id domain.JobID) (bool, error) {
	return m.Repo.Delete(ctx, id)
}

// FileDeleter is the slice of the file manager the cleanup needs.
type FileDeleter interface {
	DeleteByToken(ctx context.Context, token domain.DownloadToken, deletePhysical bool) (bool, error)
}

// CleanupExpired removes terminal jobs older than expiration, deleting
// any registered file along the way. Sub-step failures skip the job but
// never halt the sweep.
func (m Manager) CleanupExpired(ctx context.Context, expiration time.Duration, files FileDeleter) (int, error) {
	cutoff := m.now().Add(-expiration)
	jobs, err := m.Repo.ListTerminalOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, job := range jobs {
		if files != nil && job.DownloadToken != "" {
			_, _ = files.DeleteByToken(ctx, job.DownloadToken, true)
		}
		ok, err := m.Repo.Delete(ctx, job.ID)
		if err != nil {
			continue
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// StatusInfo projects the job for the status endpoint.
func (m Manager) StatusInfo(ctx context.Context, id domain.JobID) (map[string]any, error) {
	job, err := m.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	info := map[string]any{
		"job_id":   string(job.ID),
		"status":   string(job.Status),
		"progress": job.Progress.Map(),
	}
	if job.DownloadURL != "" {
		info["download_url"] = job.DownloadURL
	}
	if job.ExpireAt != nil {
		info["expire_at"] = job.ExpireAt.UTC().Format(time.RFC3339)
		info["time_remaining"] = job.TimeRemaining(m.now())
	}
	if job.ErrorMessage != "" {
		info["error"] = job.ErrorMessage
	}
	if job.ErrorCategory != "" {
		info["error_category"] = string(job.ErrorCategory)
	}
	return info, nil
}

// refusalError distinguishes a vanished record from a terminal one
// after the store refused an update.
func (m Manager) refusalError(ctx context.Context, id domain.JobID, op string) error {
	if _, err := m.Repo.Get(ctx, id); errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: %s refused on terminal job", domain.ErrJobState, op)
}
