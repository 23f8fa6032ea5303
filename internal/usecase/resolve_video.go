package usecase

import (
	"context"

	"mediafetch/internal/domain"
	"mediafetch/internal/services/video"
)

// ResolveVideo answers the resolutions endpoint: metadata plus the
// grouped client-facing format list.
type ResolveVideo struct {
	Video video.Processor
}

type ResolveVideoResult struct {
	Meta    domain.VideoMetadata
	Formats []map[string]any
}

func (uc ResolveVideo) Execute(ctx context.Context, url string) (ResolveVideoResult, error) {
	if _, err := domain.ParseMediaURL(url); err != nil {
		return ResolveVideoResult{}, err
	}
	meta, err := uc.Video.ExtractMetadata(ctx, url)
	if err != nil {
		return ResolveVideoResult{}, err
	}
	formats, err := uc.Video.AvailableFormats(ctx, url)
	if err != nil {
		return ResolveVideoResult{}, err
	}
	return ResolveVideoResult{
		Meta:    meta,
		Formats: video.FormatsToClientList(formats, meta.Duration),
	}, nil
}
