package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediafetch/internal/domain"
	"mediafetch/internal/domain/ports"
	"mediafetch/internal/extractor/ytdlp"
	"mediafetch/internal/metrics"
	"mediafetch/internal/services/file"
	"mediafetch/internal/services/job"
)

// ExecuteDownload runs the end-to-end workflow for one claimed job:
// start, stream extractor progress, store the artifact, mint a token,
// complete. Every failure is classified and lands the job in FAILED;
// record disappearance mid-flight means cancellation.
type ExecuteDownload struct {
	Jobs      job.Manager
	Files     file.Manager
	Storage   ports.FileStorageRepository
	Extractor ports.Extractor
	Bus       Publisher

	ScratchDir    string
	PublicBaseURL string
	FileTTL       time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// DownloadOptions shape the extractor invocation when the job carries
// no explicit format id.
type DownloadOptions struct {
	MuteVideo bool
	MuteAudio bool
	// QualityCap is the maximum height; zero means unbounded.
	QualityCap int

	// Trimming takes effect only when both bounds are set.
	StartTime string
	EndTime   string
	Container string

	// OnProgress receives every applied progress snapshot.
	OnProgress func(domain.Progress)
}

type DownloadResult struct {
	Success       bool
	Cancelled     bool
	DownloadURL   string
	Token         domain.DownloadToken
	ExpireAt      time.Time
	ErrorMessage  string
	ErrorCategory domain.ErrorCategory
}

func (uc ExecuteDownload) now() time.Time {
	if uc.Now != nil {
		return uc.Now().UTC()
	}
	return time.Now().UTC()
}

func (uc ExecuteDownload) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}

func (uc ExecuteDownload) fileTTL() time.Duration {
	if uc.FileTTL > 0 {
		return uc.FileTTL
	}
	return 10 * time.Minute
}

func (uc ExecuteDownload) publish(event domain.Event) {
	if uc.Bus != nil && event != nil {
		uc.Bus.Publish(event)
	}
}

func (uc ExecuteDownload) Execute(ctx context.Context, id domain.JobID, opts DownloadOptions) DownloadResult {
	metrics.ActiveDownloads.Inc()
	started := time.Now()
	defer func() {
		metrics.ActiveDownloads.Dec()
		metrics.DownloadDuration.Observe(time.Since(started).Seconds())
	}()

	claimed, startEvent, err := uc.Jobs.Start(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return uc.cancelled(id)
		}
		return uc.failed(ctx, id, err)
	}
	uc.publish(startEvent)

	scratch := filepath.Join(uc.ScratchDir, string(id))
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	cancelled := false

	onProgress := func(tick ports.ProgressTick) {
		progress := progressFromTick(tick)
		applied, event, err := uc.Jobs.UpdateProgress(runCtx, id, progress)
		if err != nil {
			uc.logger().Warn("progress update failed",
				slog.String("jobId", string(id)),
				slog.String("error", err.Error()),
			)
			return
		}
		if !applied {
			// Record gone or terminal: the job was cancelled under us.
			cancelled = true
			stopRun()
			return
		}
		uc.publish(event)
		if opts.OnProgress != nil {
			opts.OnProgress(progress)
		}
	}
	onPostProcess := func(ports.PostProcessTick) {
		applied, event, err := uc.Jobs.UpdateProgress(runCtx, id, domain.ProcessingProgress(95))
		if err != nil || !applied {
			if err == nil {
				cancelled = true
				stopRun()
			}
			return
		}
		uc.publish(event)
	}

	outputPath, err := uc.Extractor.Download(runCtx, ports.DownloadRequest{
		URL:                  claimed.URL,
		Format:               formatSelector(claimed.FormatID, opts),
		OutputTemplate:       filepath.Join(scratch, "%(title)s.%(ext)s"),
		DownloadSections:     trimSections(opts),
		ForceKeyframesAtCuts: trimSections(opts) != "",
		RemuxContainer:       remuxContainer(opts),
		OnProgress:           onProgress,
		OnPostProcess:        onPostProcess,
	})
	if cancelled {
		uc.cleanupScratch(scratch)
		return uc.cancelled(id)
	}
	if err != nil {
		uc.cleanupScratch(scratch)
		return uc.failed(ctx, id, wrapExtractor(err))
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		uc.cleanupScratch(scratch)
		return uc.failed(ctx, id, wrapStorage(err))
	}
	filename := filepath.Base(outputPath)
	storedPath := filepath.Join(string(id), filename)
	if err := uc.Storage.Save(storedPath, content); err != nil {
		uc.cleanupScratch(scratch)
		return uc.failed(ctx, id, wrapStorage(err))
	}
	uc.cleanupScratch(scratch)

	registered, err := uc.Files.RegisterFile(ctx, storedPath, id, filename, uc.fileTTL())
	if err != nil {
		return uc.failed(ctx, id, wrapRepo(err))
	}
	downloadURL := file.DownloadURLFor(registered.Token, uc.PublicBaseURL)

	_, completeEvent, err := uc.Jobs.Complete(ctx, id, downloadURL, registered.Token, registered.ExpiresAt)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_, _ = uc.Files.DeleteByToken(ctx, registered.Token, true)
			return uc.cancelled(id)
		}
		return uc.failed(ctx, id, err)
	}
	uc.publish(completeEvent)

	return DownloadResult{
		Success:     true,
		DownloadURL: downloadURL,
		Token:       registered.Token,
		ExpireAt:    registered.ExpiresAt,
	}
}

func (uc ExecuteDownload) cancelled(id domain.JobID) DownloadResult {
	uc.publish(domain.JobCancelledEvent{JobID: id, OccurredAt: uc.now()})
	return DownloadResult{Cancelled: true}
}

func (uc ExecuteDownload) failed(ctx context.Context, id domain.JobID, cause error) DownloadResult {
	category := categorizeError(cause)
	message := cause.Error()
	_, event, err := uc.Jobs.Fail(ctx, id, message, category)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return uc.cancelled(id)
		}
		uc.logger().Error("could not mark job failed",
			slog.String("jobId", string(id)),
			slog.String("error", err.Error()),
		)
	} else {
		uc.publish(event)
	}
	return DownloadResult{ErrorMessage: message, ErrorCategory: category}
}

func (uc ExecuteDownload) cleanupScratch(dir string) {
	if dir == "" || dir == "/" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		uc.logger().Warn("scratch cleanup failed",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
	}
}

// progressFromTick maps an extractor tick into the job progress model.
// The downloading phase lives in [10,95]; "finished" pins 95 and only
// completion reaches 100.
func progressFromTick(tick ports.ProgressTick) domain.Progress {
	if tick.Status == "finished" {
		return domain.DownloadingProgress(95, nil, nil)
	}
	total := tick.TotalBytes
	if total == 0 {
		total = tick.TotalBytesEstimate
	}
	pct := 0.0
	if total > 0 {
		pct = float64(tick.DownloadedBytes) / float64(total) * 100
	}
	var speed *float64
	if tick.Speed > 0 {
		s := tick.Speed
		speed = &s
	}
	var eta *int64
	if tick.ETASeconds > 0 {
		e := tick.ETASeconds
		eta = &e
	}
	return domain.DownloadingProgress(pct, speed, eta)
}

// formatSelector computes the extractor format expression. An explicit
// format id wins; otherwise the selector is assembled from the options.
func formatSelector(formatID string, opts DownloadOptions) string {
	if formatID != "" {
		return formatID
	}
	if opts.MuteVideo {
		return "bestaudio/best"
	}
	video := "bestvideo"
	capSuffix := ""
	if opts.QualityCap > 0 {
		video = fmt.Sprintf("bestvideo[height<=%d]", opts.QualityCap)
		capSuffix = fmt.Sprintf("[height<=%d]", opts.QualityCap)
	}
	if opts.MuteAudio {
		return video + "/best" + capSuffix
	}
	return video + "+bestaudio/best" + capSuffix
}

// trimSections yields the download-section directive when both bounds
// are present.
func trimSections(opts DownloadOptions) string {
	if opts.StartTime == "" || opts.EndTime == "" {
		return ""
	}
	return "*" + opts.StartTime + "-" + opts.EndTime
}

// remuxContainer picks the output container: the requested one, or webm
// when trimming without an explicit choice.
func remuxContainer(opts DownloadOptions) string {
	if opts.Container != "" {
		return opts.Container
	}
	if trimSections(opts) != "" {
		return "webm"
	}
	return ""
}

// Categorize exposes the failure taxonomy to the HTTP edge.
func Categorize(err error) domain.ErrorCategory {
	return categorizeError(err)
}

// categorizeError maps a workflow failure onto the stable category
// taxonomy. Typed extractor errors are checked first; everything else
// falls back to substring heuristics on the lowercased message.
func categorizeError(err error) domain.ErrorCategory {
	var unavailable *ytdlp.VideoUnavailableError
	if errors.As(err, &unavailable) {
		return domain.CategoryVideoUnavailable
	}

	var extractorErr *ytdlp.ExtractorError
	if errors.As(err, &extractorErr) {
		msg := strings.ToLower(extractorErr.Msg)
		switch {
		case strings.Contains(msg, "unsupported url"), strings.Contains(msg, "invalid url"):
			return domain.CategoryInvalidURL
		case strings.Contains(msg, "private video"),
			strings.Contains(msg, "members-only"),
			strings.Contains(msg, "not available"):
			return domain.CategoryVideoUnavailable
		default:
			return domain.CategoryDownloadFailed
		}
	}

	var downloadErr *ytdlp.DownloadError
	if errors.As(err, &downloadErr) {
		msg := strings.ToLower(downloadErr.Msg)
		switch {
		case strings.Contains(msg, "http error 404"), strings.Contains(msg, "not found"):
			return domain.CategoryVideoUnavailable
		case strings.Contains(msg, "http error 403"):
			switch {
			case containsAny(msg, "geo", "region", "location"):
				return domain.CategoryGeoBlocked
			case containsAny(msg, "login", "sign in", "authenticate"):
				return domain.CategoryLoginRequired
			default:
				return domain.CategoryVideoUnavailable
			}
		case strings.Contains(msg, "http error 429"), strings.Contains(msg, "too many requests"):
			return domain.CategoryPlatformRateLimited
		case strings.Contains(msg, "format") && containsAny(msg, "not available", "not found"):
			return domain.CategoryFormatNotSupported
		case containsAny(msg, "network", "connection", "timeout", "timed out"):
			return domain.CategoryNetworkError
		default:
			return domain.CategoryDownloadFailed
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "url") && containsAny(msg, "invalid", "unsupported"):
		return domain.CategoryInvalidURL
	case containsAny(msg, "unavailable", "private", "deleted"):
		return domain.CategoryVideoUnavailable
	case strings.Contains(msg, "format") && strings.Contains(msg, "not"):
		return domain.CategoryFormatNotSupported
	case containsAny(msg, "too large", "file size"):
		return domain.CategoryFileTooLarge
	case containsAny(msg, "network", "connection", "timeout"):
		return domain.CategoryNetworkError
	case containsAny(msg, "rate limit", "too many"):
		return domain.CategoryPlatformRateLimited
	case containsAny(msg, "geo", "region", "location"):
		return domain.CategoryGeoBlocked
	case containsAny(msg, "login", "sign in", "authenticate"):
		return domain.CategoryLoginRequired
	default:
		return domain.CategorySystemError
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
