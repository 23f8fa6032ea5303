package usecase

import (
	"context"
	"errors"
	"time"

	"mediafetch/internal/domain"
	"mediafetch/internal/services/file"
	"mediafetch/internal/services/job"
)

// DeleteJob cancels a job: the record disappears, which any in-flight
// worker observes at its next progress write, and subscribers get a
// cancellation event.
type DeleteJob struct {
	Jobs  job.Manager
	Files file.Manager
	Bus   Publisher
	Now   func() time.Time
}

func (uc DeleteJob) now() time.Time {
	if uc.Now != nil {
		return uc.Now().UTC()
	}
	return time.Now().UTC()
}

func (uc DeleteJob) Execute(ctx context.Context, id domain.JobID) (bool, error) {
	current, err := uc.Jobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, wrapRepo(err)
	}
	if current.DownloadToken != "" {
		_, _ = uc.Files.DeleteByToken(ctx, current.DownloadToken, true)
	}
	deleted, err := uc.Jobs.Delete(ctx, id)
	if err != nil {
		return false, wrapRepo(err)
	}
	if deleted && uc.Bus != nil {
		uc.Bus.Publish(domain.JobCancelledEvent{JobID: id, OccurredAt: uc.now()})
	}
	return deleted, nil
}
