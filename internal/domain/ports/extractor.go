package ports

import (
	"context"

	"mediafetch/internal/domain"
)

// ProgressTick is one progress callback from the extractor tool.
// Status is "downloading" or "finished".
type ProgressTick struct {
	Status             string
	DownloadedBytes    int64
	TotalBytes         int64
	TotalBytesEstimate int64
	Speed              float64
	ETASeconds         int64
}

// PostProcessTick is one post-processor callback from the extractor.
type PostProcessTick struct {
	Status        string
	PostProcessor string
}

// DownloadRequest configures one extractor invocation.
type DownloadRequest struct {
	URL            string
	Format         string
	OutputTemplate string

	// Trimming; both must be set to take effect.
	DownloadSections     string
	ForceKeyframesAtCuts bool
	RemuxContainer       string

	OnProgress    func(ProgressTick)
	OnPostProcess func(PostProcessTick)
}

// Extractor is the opaque external media-download tool.
type Extractor interface {
	ValidateURL(ctx context.Context, url string) bool
	ExtractMetadata(ctx context.Context, url string) (domain.VideoMetadata, error)
	ListFormats(ctx context.Context, url string) ([]domain.VideoFormat, error)
	// Download runs the extractor and returns the output file path.
	Download(ctx context.Context, req DownloadRequest) (string, error)
}
