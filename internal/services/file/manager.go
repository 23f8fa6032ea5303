package file

import (
	"context"
	"errors"
	"strings"
	"time"

	"mediafetch/internal/domain"
	"mediafetch/internal/domain/ports"
)

// Manager owns the token-to-artifact mapping and the bytes lifecycle.
// Physical storage goes through the FileStorageRepository port, never
// the filesystem directly.
type Manager struct {
	Repo    ports.FileRepository
	Storage ports.FileStorageRepository
	Now     func() time.Time
}

func (m Manager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

// RegisterFile mints a fresh token for the stored artifact and persists
// the mapping. Any prior entry for the same job is replaced by the
// repository.
func (m Manager) RegisterFile(ctx context.Context, filePath string, jobID domain.JobID, filename string, ttl time.Duration) (domain.DownloadedFile, error) {
	var size *int64
	if n, err := m.Storage.Size(filePath); err == nil {
		size = &n
	}
	file, err := domain.NewDownloadedFile(filePath, jobID, filename, size, ttl, m.now())
	if err != nil {
		return domain.DownloadedFile{}, err
	}
	if err := m.Repo.Save(ctx, file); err != nil {
		return domain.DownloadedFile{}, err
	}
	return file, nil
}

// GetByToken resolves a token, lazily expiring it: a present-but-expired
// entry is deleted (metadata and best-effort bytes) before reporting
// ErrFileExpired, so callers never observe an expired token as live.
func (m Manager) GetByToken(ctx context.Context, token domain.DownloadToken) (domain.DownloadedFile, error) {
	file, err := m.Repo.GetByToken(ctx, token)
	if err != nil {
		return domain.DownloadedFile{}, err
	}
	if file.IsExpired(m.now()) {
		_, _ = m.DeleteByToken(ctx, token, true)
		return domain.DownloadedFile{}, domain.ErrFileExpired
	}
	return file, nil
}

func (m Manager) GetByJobID(ctx context.Context, id domain.JobID) (domain.DownloadedFile, error) {
	return m.Repo.GetByJobID(ctx, id)
}

// DeleteByToken removes the metadata entry and, when deletePhysical is
// set, the stored bytes.
func (m Manager) DeleteByToken(ctx context.Context, token domain.DownloadToken, deletePhysical bool) (bool, error) {
	file, err := m.Repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	removed, err := m.Repo.DeleteByToken(ctx, token)
	if err != nil {
		return false, err
	}
	if removed && deletePhysical {
		_ = m.Storage.Delete(file.FilePath)
	}
	return removed, nil
}

// CleanupExpired sweeps every expired entry, removing bytes then
// metadata, and returns the number of entries removed.
func (m Manager) CleanupExpired(ctx context.Context) (int, error) {
	expired, err := m.Repo.ListExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, file := range expired {
		_ = m.Storage.Delete(file.FilePath)
		ok, err := m.Repo.DeleteByToken(ctx, file.Token)
		if err != nil {
			continue
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Content reads the artifact bytes for a live token entry.
func (m Manager) Content(file domain.DownloadedFile) ([]byte, error) {
	return m.Storage.Get(file.FilePath)
}

// FileInfo projects the entry for API responses.
func (m Manager) FileInfo(ctx context.Context, token domain.DownloadToken) (map[string]any, error) {
	file, err := m.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return file.Map(m.now()), nil
}

// DownloadURLFor composes the public link for a token.
func DownloadURLFor(token domain.DownloadToken, base string) string {
	return strings.TrimRight(base, "/") + "/api/v1/downloads/file/" + token.String()
}
