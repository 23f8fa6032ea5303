package apihttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mediafetch/internal/domain"
	"mediafetch/internal/metrics"
	"mediafetch/internal/services/ratelimit"
	"mediafetch/internal/usecase"
)

type createDownloadRequest struct {
	URL      string `json:"url"`
	FormatID string `json:"format_id"`
}

type createDownloadResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleDownloads(w http.ResponseWriter, r *http.Request) {
	// The file route shares the /api/v1/downloads/ prefix.
	if strings.HasPrefix(r.URL.Path, "/api/v1/downloads/file/") {
		s.handleFileByToken(w, r)
		return
	}
	if r.Method != http.MethodPost {
		writeCategoryError(w, http.StatusMethodNotAllowed, domain.CategoryInvalidRequest)
		return
	}

	var req createDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCategoryError(w, http.StatusBadRequest, domain.CategoryInvalidRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeCategoryError(w, http.StatusBadRequest, domain.CategoryInvalidRequest)
		return
	}

	if !s.enforceLimits(w, r, s.creationLimits(req.FormatID)) {
		return
	}

	created, err := s.createJob.Execute(r.Context(), usecase.CreateJobInput{
		URL:      strings.TrimSpace(req.URL),
		FormatID: strings.TrimSpace(req.FormatID),
	})
	if err != nil {
		writeUseCaseError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, createDownloadResponse{
		JobID:   string(created.ID),
		Status:  string(created.Status),
		Message: "download queued",
	})
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	id = strings.TrimSuffix(id, "/")
	if id == "" || strings.Contains(id, "/") {
		writeCategoryError(w, http.StatusNotFound, domain.CategoryJobNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleJobStatus(w, r, domain.JobID(id))
	case http.MethodDelete:
		s.handleJobDelete(w, r, domain.JobID(id))
	default:
		writeCategoryError(w, http.StatusMethodNotAllowed, domain.CategoryInvalidRequest)
	}
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request, id domain.JobID) {
	if s.jobStatus == nil {
		writeCategoryError(w, http.StatusNotFound, domain.CategoryJobNotFound)
		return
	}
	info, err := s.jobStatus.Execute(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeCategoryError(w, http.StatusNotFound, domain.CategoryJobNotFound)
			return
		}
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleJobDelete(w http.ResponseWriter, r *http.Request, id domain.JobID) {
	if s.deleteJob == nil {
		writeCategoryError(w, http.StatusNotFound, domain.CategoryJobNotFound)
		return
	}
	deleted, err := s.deleteJob.Execute(r.Context(), id)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	if !deleted {
		writeCategoryError(w, http.StatusNotFound, domain.CategoryJobNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// creationLimits assembles the counter dimensions a job-creation
// request must clear: the burst window, the per-type daily cap implied
// by the format, and the total daily cap.
func (s *Server) creationLimits(formatID string) []domain.RateLimit {
	var limits []domain.RateLimit
	if s.limits.BatchMinute > 0 {
		limits = append(limits, domain.RateLimit{
			Limit: s.limits.BatchMinute, Window: time.Minute, LimitType: "per_minute_batch",
		})
	}
	if typed, cap := s.typedDailyLimit(formatID); cap > 0 {
		limits = append(limits, domain.RateLimit{
			Limit: cap, Window: 24 * time.Hour, LimitType: typed,
		})
	}
	if s.limits.TotalJobsDaily > 0 {
		limits = append(limits, domain.RateLimit{
			Limit: s.limits.TotalJobsDaily, Window: 24 * time.Hour, LimitType: "daily_total",
		})
	}
	return limits
}

func (s *Server) typedDailyLimit(formatID string) (string, int64) {
	format := strings.ToLower(formatID)
	hasAudio := strings.Contains(format, "audio")
	hasVideo := strings.Contains(format, "video")
	switch {
	case hasAudio && !hasVideo:
		return "daily_audio-only", s.limits.AudioOnlyDaily
	case hasVideo && !hasAudio:
		return "daily_video-only", s.limits.VideoOnlyDaily
	default:
		return "daily_video-audio", s.limits.VideoAudioDaily
	}
}

// endpointLimit yields the hourly cap configured for this path, if any.
func (s *Server) endpointLimit(path string) []domain.RateLimit {
	cap, ok := s.limits.EndpointHourly[path]
	if !ok || cap <= 0 {
		return nil
	}
	limitType := "hourly_endpoint:" + strings.TrimSuffix(path, "/")
	return []domain.RateLimit{{Limit: cap, Window: time.Hour, LimitType: limitType}}
}

// enforceLimits runs the counters for this request and writes the 429
// when one is exhausted. Returns false when the request was rejected.
func (s *Server) enforceLimits(w http.ResponseWriter, r *http.Request, limits []domain.RateLimit) bool {
	if s.limiter == nil || len(limits) == 0 {
		return true
	}
	ip, err := domain.ParseClientIP(clientIP(r))
	if err != nil {
		s.logger.Warn("unparseable client address", slog.String("addr", clientIP(r)))
		return true
	}
	status, err := s.limiter.CheckAndIncrement(r.Context(), ip, limits...)
	if err != nil {
		var exceeded *ratelimit.LimitExceededError
		if errors.As(err, &exceeded) {
			metrics.RateLimitRejectionsTotal.WithLabelValues(exceeded.Status.LimitType).Inc()
			writeRateLimited(w, exceeded)
			return false
		}
		s.logger.Error("rate limit check failed", slog.String("error", err.Error()))
		return true
	}
	setRateLimitHeaders(w, status)
	return true
}
