package domain

import (
	"errors"
	"time"
)

// DownloadedFile maps a download token to a stored artifact.
// Indexed both by token and by job id; one file per job, and a
// re-registration replaces the prior entry.
type DownloadedFile struct {
	Token     DownloadToken `json:"token"`
	FilePath  string        `json:"file_path"`
	JobID     JobID         `json:"job_id"`
	Filename  string        `json:"filename"`
	Filesize  *int64        `json:"filesize,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// NewDownloadedFile mints a fresh token for the stored artifact.
// Registering a file whose TTL has already elapsed is rejected.
func NewDownloadedFile(filePath string, jobID JobID, filename string, filesize *int64, ttl time.Duration, now time.Time) (DownloadedFile, error) {
	now = now.UTC()
	expiresAt := now.Add(ttl)
	if !expiresAt.After(now) {
		return DownloadedFile{}, errors.New("file ttl must be positive")
	}
	token, err := NewDownloadToken()
	if err != nil {
		return DownloadedFile{}, err
	}
	return DownloadedFile{
		Token:     token,
		FilePath:  filePath,
		JobID:     jobID,
		Filename:  filename,
		Filesize:  filesize,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, nil
}

func (f DownloadedFile) IsExpired(now time.Time) bool {
	return !now.Before(f.ExpiresAt)
}

// Validate checks domain invariants for DownloadedFile.
func (f DownloadedFile) Validate() error {
	if f.Token == "" {
		return errors.New("token is required")
	}
	if f.FilePath == "" {
		return errors.New("file path is required")
	}
	if f.JobID == "" {
		return errors.New("job id is required")
	}
	if !f.ExpiresAt.After(f.CreatedAt) {
		return errors.New("expiresAt must be after createdAt")
	}
	return nil
}

func (f DownloadedFile) Map(now time.Time) map[string]any {
	m := map[string]any{
		"token":      f.Token.String(),
		"job_id":     string(f.JobID),
		"filename":   f.Filename,
		"created_at": f.CreatedAt.UTC().Format(time.RFC3339),
		"expires_at": f.ExpiresAt.UTC().Format(time.RFC3339),
		"expired":    f.IsExpired(now),
	}
	if f.Filesize != nil {
		m["filesize"] = *f.Filesize
	}
	return m
}
