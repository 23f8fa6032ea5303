package usecase

import (
	"context"

	"mediafetch/internal/domain"
	"mediafetch/internal/domain/ports"
	"mediafetch/internal/services/job"
)

// Publisher is the slice of the event bus the use cases need.
type Publisher interface {
	Publish(domain.Event)
}

// CreateJob admits a new download request: persist a pending job and
// hand it to the worker queue.
type CreateJob struct {
	Jobs  job.Manager
	Queue ports.JobQueue
}

type CreateJobInput struct {
	URL      string
	FormatID string
}

func (uc CreateJob) Execute(ctx context.Context, input CreateJobInput) (domain.DownloadJob, error) {
	created, err := uc.Jobs.Create(ctx, input.URL, input.FormatID)
	if err != nil {
		return domain.DownloadJob{}, err
	}
	if err := uc.Queue.Enqueue(ctx, created.ID); err != nil {
		// A job nobody will ever pick up must not sit in pending forever.
		_, _, _ = uc.Jobs.Fail(ctx, created.ID, "job could not be queued", domain.CategorySystemError)
		return domain.DownloadJob{}, wrapRepo(err)
	}
	return created, nil
}
