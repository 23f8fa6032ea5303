package video

import (
	"context"
	"fmt"
	"sort"

	"mediafetch/internal/domain"
	"mediafetch/internal/domain/ports"
)

// MetadataExtractionError wraps an extractor failure so the original
// cause stays available for classification.
type MetadataExtractionError struct {
	Err error
}

func (e *MetadataExtractionError) Error() string {
	return fmt.Sprintf("metadata extraction failed: %v", e.Err)
}

func (e *MetadataExtractionError) Unwrap() error { return e.Err }

// Processor is the domain facade over the format/metadata extractor.
type Processor struct {
	Extractor ports.Extractor
}

func (p Processor) ValidateURL(ctx context.Context, url string) bool {
	if _, err := domain.ParseMediaURL(url); err != nil {
		return false
	}
	return p.Extractor.ValidateURL(ctx, url)
}

func (p Processor) ExtractMetadata(ctx context.Context, url string) (domain.VideoMetadata, error) {
	meta, err := p.Extractor.ExtractMetadata(ctx, url)
	if err != nil {
		return domain.VideoMetadata{}, &MetadataExtractionError{Err: err}
	}
	return meta, nil
}

// AvailableFormats lists renditions sorted by height descending, with
// combined video+audio formats ahead of equal-height splits.
func (p Processor) AvailableFormats(ctx context.Context, url string) ([]domain.VideoFormat, error) {
	formats, err := p.Extractor.ListFormats(ctx, url)
	if err != nil {
		return nil, &MetadataExtractionError{Err: err}
	}
	sorted := make([]domain.VideoFormat, len(formats))
	copy(sorted, formats)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Height != sorted[j].Height {
			return sorted[i].Height > sorted[j].Height
		}
		iCombined := sorted[i].HasVideo() && sorted[i].HasAudio()
		jCombined := sorted[j].HasVideo() && sorted[j].HasAudio()
		return iCombined && !jCombined
	})
	return sorted, nil
}

// FormatsToClientList groups formats for the resolutions endpoint:
// video+audio first, then video-only, then audio-only, each group by
// height descending.
func FormatsToClientList(formats []domain.VideoFormat, durationSeconds float64) []map[string]any {
	var combined, videoOnly, audioOnly []domain.VideoFormat
	for _, f := range formats {
		switch {
		case f.HasVideo() && f.HasAudio():
			combined = append(combined, f)
		case f.HasVideo():
			videoOnly = append(videoOnly, f)
		case f.HasAudio():
			audioOnly = append(audioOnly, f)
		}
	}
	byHeightDesc := func(group []domain.VideoFormat) {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Height > group[j].Height })
	}
	byHeightDesc(combined)
	byHeightDesc(videoOnly)
	byHeightDesc(audioOnly)

	var out []map[string]any
	appendGroup := func(group []domain.VideoFormat, kind string) {
		for _, f := range group {
			entry := map[string]any{
				"format_id": f.FormatID,
				"ext":       f.Ext,
				"type":      kind,
			}
			if f.Height > 0 {
				entry["height"] = f.Height
			}
			if f.FPS > 0 {
				entry["fps"] = f.FPS
			}
			if f.FormatNote != "" {
				entry["format_note"] = f.FormatNote
			}
			if size := f.EstimatedSize(durationSeconds); size > 0 {
				entry["filesize"] = size
			}
			out = append(out, entry)
		}
	}
	appendGroup(combined, "video_audio")
	appendGroup(videoOnly, "video_only")
	appendGroup(audioOnly, "audio_only")
	return out
}
