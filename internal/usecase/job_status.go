package usecase

import (
	"context"

	"mediafetch/internal/domain"
	"mediafetch/internal/services/job"
)

// JobStatus projects one job for the status endpoint.
type JobStatus struct {
	Jobs job.Manager
}

func (uc JobStatus) Execute(ctx context.Context, id domain.JobID) (map[string]any, error) {
	return uc.Jobs.StatusInfo(ctx, id)
}
