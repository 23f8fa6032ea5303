package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mediafetch/internal/domain"
)

const (
	fileTokenPrefix = "file_token:"
	fileJobPrefix   = "file_job:"
	fileIndexKey    = "file:index"

	// Metadata outlives the advertised expiry by a grace period so the
	// reaper can still read the file path when it removes the bytes.
	fileGrace = time.Hour
)

type fileDoc struct {
	Token       string `json:"token"`
	FilePath    string `json:"file_path"`
	JobID       string `json:"job_id"`
	Filename    string `json:"filename"`
	Filesize    *int64 `json:"filesize,omitempty"`
	CreatedAtMs int64  `json:"created_at_ms"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
}

// saveFileScript replaces any prior registration for the same job: the
// old token record and its index entry go away in the same atomic step
// that writes the new one.
// KEYS: token key, job key, index zset. ARGV: doc json, ttl ms, token,
// job id, expires_at_ms.
var saveFileScript = redis.NewScript(`
local old = redis.call('GET', KEYS[2])
if old then
  redis.call('DEL', 'file_token:' .. old)
  redis.call('ZREM', KEYS[3], old)
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
redis.call('SET', KEYS[2], ARGV[3], 'PX', ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[5], ARGV[3])
return 1
`)

// deleteFileScript removes the token record, its job mapping and its
// index entry together. Returns 1 when the token existed.
var deleteFileScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  redis.call('ZREM', KEYS[2], ARGV[1])
  return 0
end
local doc = cjson.decode(raw)
redis.call('DEL', KEYS[1])
redis.call('DEL', 'file_job:' .. doc['job_id'])
redis.call('ZREM', KEYS[2], ARGV[1])
return 1
`)

// FileRepository stores download-token metadata in Redis, indexed by
// token and by job with a zset of expiry times for reaper sweeps.
type FileRepository struct {
	client *redis.Client
}

func NewFileRepository(client *redis.Client) *FileRepository {
	return &FileRepository{client: client}
}

func fileTokenKey(token domain.DownloadToken) string { return fileTokenPrefix + token.String() }
func fileJobKey(id domain.JobID) string              { return fileJobPrefix + string(id) }

func (r *FileRepository) Save(ctx context.Context, file domain.DownloadedFile) error {
	if err := file.Validate(); err != nil {
		return err
	}
	doc := fileDoc{
		Token:       file.Token.String(),
		FilePath:    file.FilePath,
		JobID:       string(file.JobID),
		Filename:    file.Filename,
		Filesize:    file.Filesize,
		CreatedAtMs: file.CreatedAt.UnixMilli(),
		ExpiresAtMs: file.ExpiresAt.UnixMilli(),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	ttl := time.Until(file.ExpiresAt) + fileGrace
	if ttl <= 0 {
		ttl = fileGrace
	}
	return saveFileScript.Run(ctx, r.client,
		[]string{fileTokenKey(file.Token), fileJobKey(file.JobID), fileIndexKey},
		data, ttl.Milliseconds(), file.Token.String(), string(file.JobID), file.ExpiresAt.UnixMilli(),
	).Err()
}

func (r *FileRepository) GetByToken(ctx context.Context, token domain.DownloadToken) (domain.DownloadedFile, error) {
	raw, err := r.client.Get(ctx, fileTokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DownloadedFile{}, domain.ErrNotFound
		}
		return domain.DownloadedFile{}, err
	}
	return decodeFileDoc(raw)
}

func (r *FileRepository) GetByJobID(ctx context.Context, id domain.JobID) (domain.DownloadedFile, error) {
	token, err := r.client.Get(ctx, fileJobKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DownloadedFile{}, domain.ErrNotFound
		}
		return domain.DownloadedFile{}, err
	}
	return r.GetByToken(ctx, domain.DownloadToken(token))
}

func (r *FileRepository) DeleteByToken(ctx context.Context, token domain.DownloadToken) (bool, error) {
	result, err := deleteFileScript.Run(ctx, r.client,
		[]string{fileTokenKey(token), fileIndexKey}, token.String()).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// ListExpired returns metadata for every file whose expiry is at or
// before now, read through the zset index. Index entries whose record
// already fell to the store TTL are pruned on the way.
func (r *FileRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.DownloadedFile, error) {
	tokens, err := r.client.ZRangeByScore(ctx, fileIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: formatMs(now.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, err
	}
	var files []domain.DownloadedFile
	for _, token := range tokens {
		file, err := r.GetByToken(ctx, domain.DownloadToken(token))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				_ = r.client.ZRem(ctx, fileIndexKey, token).Err()
				continue
			}
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func formatMs(ms int64) string { return strconv.FormatInt(ms, 10) }

func decodeFileDoc(raw []byte) (domain.DownloadedFile, error) {
	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.DownloadedFile{}, err
	}
	return domain.DownloadedFile{
		Token:     domain.DownloadToken(doc.Token),
		FilePath:  doc.FilePath,
		JobID:     domain.JobID(doc.JobID),
		Filename:  doc.Filename,
		Filesize:  doc.Filesize,
		CreatedAt: time.UnixMilli(doc.CreatedAtMs).UTC(),
		ExpiresAt: time.UnixMilli(doc.ExpiresAtMs).UTC(),
	}, nil
}
