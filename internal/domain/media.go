package domain

// VideoMetadata describes a remote video as reported by the extractor.
type VideoMetadata struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Uploader  string  `json:"uploader"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
}

// VideoFormat is one downloadable rendition of a video.
type VideoFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height,omitempty"`
	Width          int     `json:"width,omitempty"`
	FPS            float64 `json:"fps,omitempty"`
	VCodec         string  `json:"vcodec,omitempty"`
	ACodec         string  `json:"acodec,omitempty"`
	Filesize       int64   `json:"filesize,omitempty"`
	FilesizeApprox int64   `json:"filesize_approx,omitempty"`
	TBR            float64 `json:"tbr,omitempty"` // total bitrate, kbit/s
	FormatNote     string  `json:"format_note,omitempty"`
}

func (f VideoFormat) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

func (f VideoFormat) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// EstimatedSize fills in a byte size from the best available signal:
// exact size, then the extractor's approximation, then bitrate*duration/8.
func (f VideoFormat) EstimatedSize(durationSeconds float64) int64 {
	if f.Filesize > 0 {
		return f.Filesize
	}
	if f.FilesizeApprox > 0 {
		return f.FilesizeApprox
	}
	if f.TBR > 0 && durationSeconds > 0 {
		return int64(f.TBR * 1000 / 8 * durationSeconds)
	}
	return 0
}
