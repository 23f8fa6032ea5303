package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mediafetch/internal/domain"
	"mediafetch/internal/domain/ports"
	"mediafetch/internal/metrics"
	"mediafetch/internal/services/file"
)

// Reaper is the periodic cleanup task: archive and delete stale
// terminal jobs, sweep expired file entries, prune orphaned scratch
// artifacts. Every sub-step is isolated; failures accumulate in the
// summary instead of halting the sweep.
type Reaper struct {
	Jobs    ports.JobRepository
	Files   file.Manager
	Archive ports.JobArchiveRepository

	ScratchDir string
	// Expiration is how long terminal jobs linger before archival.
	Expiration time.Duration
	Interval   time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// ReapSummary reports one sweep.
type ReapSummary struct {
	ExpiredJobsRemoved   int      `json:"expired_jobs_removed"`
	ExpiredFilesRemoved  int      `json:"expired_files_removed"`
	OrphanedFilesCleaned int      `json:"orphaned_files_cleaned"`
	Errors               []string `json:"errors,omitempty"`
}

const orphanAge = time.Hour

func (uc Reaper) now() time.Time {
	if uc.Now != nil {
		return uc.Now().UTC()
	}
	return time.Now().UTC()
}

func (uc Reaper) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}

func (uc Reaper) expiration() time.Duration {
	if uc.Expiration > 0 {
		return uc.Expiration
	}
	return time.Hour
}

// Run loops sweeps until the context ends.
func (uc Reaper) Run(ctx context.Context) {
	interval := uc.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary := uc.RunOnce(ctx)
			metrics.ReapedJobsTotal.Add(float64(summary.ExpiredJobsRemoved))
			metrics.ReapedFilesTotal.Add(float64(summary.ExpiredFilesRemoved + summary.OrphanedFilesCleaned))
			uc.logger().Info("reaper sweep finished",
				slog.Int("expiredJobs", summary.ExpiredJobsRemoved),
				slog.Int("expiredFiles", summary.ExpiredFilesRemoved),
				slog.Int("orphanedFiles", summary.OrphanedFilesCleaned),
				slog.Int("errors", len(summary.Errors)),
			)
		}
	}
}

// RunOnce performs a single sweep.
func (uc Reaper) RunOnce(ctx context.Context) ReapSummary {
	var summary ReapSummary
	now := uc.now()

	stale, err := uc.Jobs.ListTerminalOlderThan(ctx, now.Add(-uc.expiration()))
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("list terminal jobs: %v", err))
	}
	for _, staleJob := range stale {
		archive, err := domain.NewJobArchive(staleJob, now)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("archive %s: %v", staleJob.ID, err))
			continue
		}
		if err := uc.Archive.Save(ctx, archive); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("archive %s: %v", staleJob.ID, err))
			continue
		}
		if staleJob.DownloadToken != "" {
			deleted, err := uc.Files.DeleteByToken(ctx, staleJob.DownloadToken, true)
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("file for %s: %v", staleJob.ID, err))
			} else if deleted {
				summary.ExpiredFilesRemoved++
			}
		}
		removed, err := uc.Jobs.Delete(ctx, staleJob.ID)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("delete %s: %v", staleJob.ID, err))
			continue
		}
		if removed {
			summary.ExpiredJobsRemoved++
		}
	}

	removed, err := uc.Files.CleanupExpired(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("expired files: %v", err))
	}
	summary.ExpiredFilesRemoved += removed

	cleaned, errs := uc.sweepScratch(now)
	summary.OrphanedFilesCleaned = cleaned
	summary.Errors = append(summary.Errors, errs...)

	return summary
}

// sweepScratch removes scratch files older than an hour along with
// their per-job directories; empty directories go regardless of age.
func (uc Reaper) sweepScratch(now time.Time) (int, []string) {
	if uc.ScratchDir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(uc.ScratchDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, []string{fmt.Sprintf("scratch dir: %v", err)}
	}
	cleaned := 0
	var errs []string
	cutoff := now.Add(-orphanAge)
	for _, entry := range entries {
		path := filepath.Join(uc.ScratchDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if entry.IsDir() {
			children, err := os.ReadDir(path)
			if err != nil {
				errs = append(errs, fmt.Sprintf("scratch %s: %v", entry.Name(), err))
				continue
			}
			if len(children) == 0 || info.ModTime().Before(cutoff) {
				if err := os.RemoveAll(path); err != nil {
					errs = append(errs, fmt.Sprintf("scratch %s: %v", entry.Name(), err))
					continue
				}
				cleaned += countFiles(children)
			}
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				errs = append(errs, fmt.Sprintf("scratch %s: %v", entry.Name(), err))
				continue
			}
			cleaned++
		}
	}
	return cleaned, errs
}

func countFiles(entries []os.DirEntry) int {
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			n++
		}
	}
	return n
}
