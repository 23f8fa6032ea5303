package domain

import "errors"

// Progress is an immutable snapshot of how far a job has advanced.
// Speed (bytes/s) and ETASeconds are only meaningful while downloading.
type Progress struct {
	Percentage float64  `json:"percentage"`
	Phase      string   `json:"phase"`
	Speed      *float64 `json:"speed,omitempty"`
	ETASeconds *int64   `json:"eta_seconds,omitempty"`
}

const (
	PhaseStarting   = "starting"
	PhaseMetadata   = "extracting_metadata"
	PhaseDownload   = "downloading"
	PhaseProcessing = "processing"
	PhaseCompleted  = "completed"
)

func InitialProgress() Progress {
	return Progress{Percentage: 0, Phase: PhaseStarting}
}

func MetadataProgress() Progress {
	return Progress{Percentage: 5, Phase: PhaseMetadata}
}

// DownloadingProgress clamps pct into [10,95] so the UI never jumps
// backwards past the metadata phase and never shows 100 before the
// post-processing step finishes. Complete() is the only way to reach 100.
func DownloadingProgress(pct float64, speed *float64, etaSeconds *int64) Progress {
	if pct < 10 {
		pct = 10
	}
	if pct > 95 {
		pct = 95
	}
	return Progress{Percentage: pct, Phase: PhaseDownload, Speed: speed, ETASeconds: etaSeconds}
}

func ProcessingProgress(pct float64) Progress {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return Progress{Percentage: pct, Phase: PhaseProcessing}
}

func CompletedProgress() Progress {
	return Progress{Percentage: 100, Phase: PhaseCompleted}
}

// Validate checks the value-object invariants.
func (p Progress) Validate() error {
	if p.Percentage < 0 || p.Percentage > 100 {
		return errors.New("percentage out of range")
	}
	if p.Phase == "" {
		return errors.New("phase is required")
	}
	return nil
}

func (p Progress) Map() map[string]any {
	m := map[string]any{
		"percentage": p.Percentage,
		"phase":      p.Phase,
	}
	if p.Speed != nil {
		m["speed"] = *p.Speed
	}
	if p.ETASeconds != nil {
		m["eta_seconds"] = *p.ETASeconds
	}
	return m
}
