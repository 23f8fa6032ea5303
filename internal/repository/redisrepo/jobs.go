package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"mediafetch/internal/domain"
	"mediafetch/internal/domain/ports"
)

const (
	jobKeyPrefix = "job:"
	jobQueueKey  = "jobs:queue"
)

// jobDoc is the stored shape of a DownloadJob. Timestamps are unix
// milliseconds so the Lua scripts can compare and rewrite them without
// parsing RFC 3339 strings.
type jobDoc struct {
	ID            string      `json:"job_id"`
	URL           string      `json:"url"`
	FormatID      string      `json:"format_id"`
	Status        string      `json:"status"`
	Progress      progressDoc `json:"progress"`
	CreatedAtMs   int64       `json:"created_at_ms"`
	UpdatedAtMs   int64       `json:"updated_at_ms"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	ErrorCategory string      `json:"error_category,omitempty"`
	DownloadURL   string      `json:"download_url,omitempty"`
	DownloadToken string      `json:"download_token,omitempty"`
	ExpireAtMs    int64       `json:"expire_at_ms,omitempty"`
}

type progressDoc struct {
	Percentage float64  `json:"percentage"`
	Phase      string   `json:"phase"`
	Speed      *float64 `json:"speed,omitempty"`
	ETASeconds *int64   `json:"eta_seconds,omitempty"`
}

// updateProgressScript: load → refuse terminal → set progress and
// updated_at (store clock, monotone) → refresh TTL, as one atomic unit.
// Returns 1 applied, 0 missing, -1 terminal.
var updateProgressScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return 0 end
local job = cjson.decode(raw)
if job['status'] == 'completed' or job['status'] == 'failed' then return -1 end
job['progress'] = cjson.decode(ARGV[1])
local t = redis.call('TIME')
local nowms = t[1] * 1000 + math.floor(t[2] / 1000)
if nowms > (job['updated_at_ms'] or 0) then job['updated_at_ms'] = nowms end
redis.call('SET', KEYS[1], cjson.encode(job), 'PX', ARGV[2])
return 1
`)

// updateStatusScript applies a status transition with its side fields.
// Terminal records refuse every transition except a replacement failure.
// Returns 1 applied, 0 missing, -1 refused.
var updateStatusScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return 0 end
local job = cjson.decode(raw)
local update = cjson.decode(ARGV[1])
local terminal = job['status'] == 'completed' or job['status'] == 'failed'
if terminal and update['status'] ~= 'failed' then return -1 end
job['status'] = update['status']
if update['status'] == 'completed' then
  job['progress'] = {percentage=100, phase='completed'}
  job['download_url'] = update['download_url']
  job['download_token'] = update['download_token']
  job['expire_at_ms'] = update['expire_at_ms']
elseif update['status'] == 'failed' then
  job['error_message'] = update['error_message']
  job['error_category'] = update['error_category']
end
local t = redis.call('TIME')
local nowms = t[1] * 1000 + math.floor(t[2] / 1000)
if nowms > (job['updated_at_ms'] or 0) then job['updated_at_ms'] = nowms end
redis.call('SET', KEYS[1], cjson.encode(job), 'PX', ARGV[2])
return 1
`)

// JobRepository is the Redis-backed live-state store for jobs. Records
// carry a TTL refreshed by every atomic mutation.
type JobRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewJobRepository(client *redis.Client, ttl time.Duration) *JobRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JobRepository{client: client, ttl: ttl}
}

func jobKey(id domain.JobID) string { return jobKeyPrefix + string(id) }

func (r *JobRepository) Create(ctx context.Context, job domain.DownloadJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(toJobDoc(job))
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, jobKey(job.ID), data, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, id domain.JobID) (domain.DownloadJob, error) {
	raw, err := r.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DownloadJob{}, domain.ErrNotFound
		}
		return domain.DownloadJob{}, err
	}
	var doc jobDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.DownloadJob{}, err
	}
	return fromJobDoc(doc), nil
}

func (r *JobRepository) UpdateProgress(ctx context.Context, id domain.JobID, p domain.Progress) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	progress, err := json.Marshal(progressDoc{
		Percentage: p.Percentage,
		Phase:      p.Phase,
		Speed:      p.Speed,
		ETASeconds: p.ETASeconds,
	})
	if err != nil {
		return false, err
	}
	result, err := updateProgressScript.Run(ctx, r.client,
		[]string{jobKey(id)}, progress, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id domain.JobID, update ports.StatusUpdate) (bool, error) {
	doc := map[string]any{
		"status":         string(update.Status),
		"error_message":  update.ErrorMessage,
		"error_category": string(update.ErrorCategory),
		"download_url":   update.DownloadURL,
		"download_token": update.DownloadToken.String(),
	}
	if update.ExpireAt != nil {
		doc["expire_at_ms"] = update.ExpireAt.UnixMilli()
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	result, err := updateStatusScript.Run(ctx, r.client,
		[]string{jobKey(id)}, data, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (r *JobRepository) Delete(ctx context.Context, id domain.JobID) (bool, error) {
	removed, err := r.client.Del(ctx, jobKey(id)).Result()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

// ListTerminalOlderThan scans all live job records and returns terminal
// ones whose last mutation predates the cutoff. A SCAN keeps this free
// of a secondary index that would need maintenance from every script.
func (r *JobRepository) ListTerminalOlderThan(ctx context.Context, cutoff time.Time) ([]domain.DownloadJob, error) {
	var jobs []domain.DownloadJob
	iter := r.client.Scan(ctx, 0, jobKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between SCAN and GET
			}
			return nil, err
		}
		var doc jobDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		job := fromJobDoc(doc)
		if job.Status.IsTerminal() && job.UpdatedAt.Before(cutoff) {
			jobs = append(jobs, job)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// JobQueue is the Redis list feeding download workers.
type JobQueue struct {
	client *redis.Client
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) Enqueue(ctx context.Context, id domain.JobID) error {
	return q.client.LPush(ctx, jobQueueKey, string(id)).Err()
}

func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (domain.JobID, bool, error) {
	values, err := q.client.BRPop(ctx, timeout, jobQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	if len(values) != 2 {
		return "", false, nil
	}
	return domain.JobID(values[1]), true, nil
}

func toJobDoc(job domain.DownloadJob) jobDoc {
	doc := jobDoc{
		ID:       string(job.ID),
		URL:      job.URL,
		FormatID: job.FormatID,
		Status:   string(job.Status),
		Progress: progressDoc{
			Percentage: job.Progress.Percentage,
			Phase:      job.Progress.Phase,
			Speed:      job.Progress.Speed,
			ETASeconds: job.Progress.ETASeconds,
		},
		CreatedAtMs:   job.CreatedAt.UnixMilli(),
		UpdatedAtMs:   job.UpdatedAt.UnixMilli(),
		ErrorMessage:  job.ErrorMessage,
		ErrorCategory: string(job.ErrorCategory),
		DownloadURL:   job.DownloadURL,
		DownloadToken: job.DownloadToken.String(),
	}
	if job.ExpireAt != nil {
		doc.ExpireAtMs = job.ExpireAt.UnixMilli()
	}
	return doc
}

func fromJobDoc(doc jobDoc) domain.DownloadJob {
	job := domain.DownloadJob{
		ID:       domain.JobID(doc.ID),
		URL:      doc.URL,
		FormatID: doc.FormatID,
		Status:   domain.JobStatus(doc.Status),
		Progress: domain.Progress{
			Percentage: doc.Progress.Percentage,
			Phase:      doc.Progress.Phase,
			Speed:      doc.Progress.Speed,
			ETASeconds: doc.Progress.ETASeconds,
		},
		CreatedAt:     time.UnixMilli(doc.CreatedAtMs).UTC(),
		UpdatedAt:     time.UnixMilli(doc.UpdatedAtMs).UTC(),
		ErrorMessage:  doc.ErrorMessage,
		ErrorCategory: domain.ErrorCategory(doc.ErrorCategory),
		DownloadURL:   doc.DownloadURL,
		DownloadToken: domain.DownloadToken(doc.DownloadToken),
	}
	if doc.ExpireAtMs != 0 {
		expireAt := time.UnixMilli(doc.ExpireAtMs).UTC()
		job.ExpireAt = &expireAt
	}
	return job
}
