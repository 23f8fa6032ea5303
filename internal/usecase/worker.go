package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"mediafetch/internal/domain/ports"
)

// WorkerPool drains the job queue. Each worker services one download at
// a time; the semaphore additionally bounds downloads in flight across
// the pool so Count can exceed MaxConcurrent for queue responsiveness.
type WorkerPool struct {
	Queue    ports.JobQueue
	Download ExecuteDownload

	Count         int
	MaxConcurrent int64
	PollTimeout   time.Duration

	Logger *slog.Logger
}

func (p WorkerPool) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Run blocks until the context ends and every worker has drained.
func (p WorkerPool) Run(ctx context.Context) {
	count := p.Count
	if count <= 0 {
		count = 2
	}
	maxConcurrent := p.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = int64(count)
	}
	poll := p.PollTimeout
	if poll <= 0 {
		poll = 5 * time.Second
	}
	sem := semaphore.NewWeighted(maxConcurrent)

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.runWorker(ctx, worker, sem, poll)
		}(i)
	}
	wg.Wait()
}

func (p WorkerPool) runWorker(ctx context.Context, worker int, sem *semaphore.Weighted, poll time.Duration) {
	logger := p.logger().With(slog.Int("worker", worker))
	for {
		if ctx.Err() != nil {
			return
		}
		id, ok, err := p.Queue.Dequeue(ctx, poll)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("queue dequeue failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(poll):
			}
			continue
		}
		if !ok {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		result := p.Download.Execute(ctx, id, DownloadOptions{})
		sem.Release(1)

		switch {
		case result.Success:
			logger.Info("download finished", slog.String("jobId", string(id)))
		case result.Cancelled:
			logger.Info("download cancelled", slog.String("jobId", string(id)))
		default:
			logger.Warn("download failed",
				slog.String("jobId", string(id)),
				slog.String("category", string(result.ErrorCategory)),
			)
		}
	}
}
