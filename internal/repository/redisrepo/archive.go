package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"mediafetch/internal/domain"
)

const (
	archiveKeyPrefix    = "archive:job:"
	archiveStatusPrefix = "archive:index:status:"
	archiveDatePrefix   = "archive:index:date:"

	archiveTTL = 30 * 24 * time.Hour
)

type archiveDoc struct {
	JobID         string `json:"job_id"`
	URL           string `json:"url"`
	FormatID      string `json:"format_id"`
	Status        string `json:"status"`
	CreatedAtMs   int64  `json:"created_at_ms"`
	CompletedAtMs int64  `json:"completed_at_ms"`
	ArchivedAtMs  int64  `json:"archived_at_ms"`
	ErrorMessage  string `json:"error_message,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
	DownloadToken string `json:"download_token,omitempty"`
}

// JobArchiveRepository keeps 30-day post-mortem snapshots with
// secondary indexes by terminal status and by archive date.
type JobArchiveRepository struct {
	client *redis.Client
}

func NewJobArchiveRepository(client *redis.Client) *JobArchiveRepository {
	return &JobArchiveRepository{client: client}
}

func archiveKey(id domain.JobID) string { return archiveKeyPrefix + string(id) }

func (r *JobArchiveRepository) Save(ctx context.Context, archive domain.JobArchive) error {
	if !archive.Status.IsTerminal() {
		return domain.ErrJobState
	}
	doc := archiveDoc{
		JobID:         string(archive.JobID),
		URL:           archive.URL,
		FormatID:      archive.FormatID,
		Status:        string(archive.Status),
		CreatedAtMs:   archive.CreatedAt.UnixMilli(),
		CompletedAtMs: archive.CompletedAt.UnixMilli(),
		ArchivedAtMs:  archive.ArchivedAt.UnixMilli(),
		ErrorMessage:  archive.ErrorMessage,
		ErrorCategory: string(archive.ErrorCategory),
		DownloadToken: archive.DownloadToken.String(),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	statusKey := archiveStatusPrefix + string(archive.Status)
	dateKey := archiveDatePrefix + archive.ArchivedAt.UTC().Format("2006-01-02")

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, archiveKey(archive.JobID), data, archiveTTL)
	pipe.ZAdd(ctx, statusKey, redis.Z{Score: float64(archive.ArchivedAt.UnixMilli()), Member: string(archive.JobID)})
	pipe.Expire(ctx, statusKey, archiveTTL)
	pipe.SAdd(ctx, dateKey, string(archive.JobID))
	pipe.Expire(ctx, dateKey, archiveTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *JobArchiveRepository) Get(ctx context.Context, id domain.JobID) (domain.JobArchive, error) {
	raw, err := r.client.Get(ctx, archiveKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.JobArchive{}, domain.ErrNotFound
		}
		return domain.JobArchive{}, err
	}
	var doc archiveDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.JobArchive{}, err
	}
	return fromArchiveDoc(doc), nil
}

// ListByStatus returns the most recently archived snapshots for the
// given terminal status, newest first. Index entries whose snapshot
// already expired are skipped.
func (r *JobArchiveRepository) ListByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]domain.JobArchive, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := r.client.ZRevRange(ctx, archiveStatusPrefix+string(status), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	var archives []domain.JobArchive
	for _, id := range ids {
		archive, err := r.Get(ctx, domain.JobID(id))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		archives = append(archives, archive)
	}
	return archives, nil
}

func fromArchiveDoc(doc archiveDoc) domain.JobArchive {
	return domain.JobArchive{
		JobID:         domain.JobID(doc.JobID),
		URL:           doc.URL,
		FormatID:      doc.FormatID,
		Status:        domain.JobStatus(doc.Status),
		CreatedAt:     time.UnixMilli(doc.CreatedAtMs).UTC(),
		CompletedAt:   time.UnixMilli(doc.CompletedAtMs).UTC(),
		ArchivedAt:    time.UnixMilli(doc.ArchivedAtMs).UTC(),
		ErrorMessage:  doc.ErrorMessage,
		ErrorCategory: domain.ErrorCategory(doc.ErrorCategory),
		DownloadToken: domain.DownloadToken(doc.DownloadToken),
	}
}
