package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"mediafetch/internal/domain"
	"mediafetch/internal/services/ratelimit"
	"mediafetch/internal/usecase"
)

// errorResponse is the canonical error body. Error carries the stable
// wire identifier; the triple comes from the frozen category catalog.
type errorResponse struct {
	Error         string `json:"error"`
	Title         string `json:"title,omitempty"`
	Message       string `json:"message,omitempty"`
	Action        string `json:"action,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
	LimitType     string `json:"limit_type,omitempty"`
	ResetAt       string `json:"reset_at,omitempty"`
}

func writeCategoryError(w http.ResponseWriter, status int, category domain.ErrorCategory) {
	detail := category.Detail()
	writeJSON(w, status, errorResponse{
		Error:         string(category),
		Title:         detail.Title,
		Message:       detail.Message,
		Action:        detail.Action,
		ErrorCategory: string(category),
	})
}

func writeRateLimited(w http.ResponseWriter, exceeded *ratelimit.LimitExceededError) {
	for key, value := range exceeded.Status.Headers() {
		w.Header().Set(key, value)
	}
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error:     "Rate limit exceeded",
		LimitType: exceeded.Status.LimitType,
		ResetAt:   exceeded.Status.ResetAt.UTC().Format(time.RFC3339),
	})
}

// writeUseCaseError maps a workflow error onto the category taxonomy
// and an HTTP status.
func writeUseCaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidURL):
		writeCategoryError(w, http.StatusBadRequest, domain.CategoryInvalidURL)
	case errors.Is(err, domain.ErrNotFound):
		writeCategoryError(w, http.StatusNotFound, domain.CategoryJobNotFound)
	case errors.Is(err, usecase.ErrRepository):
		writeCategoryError(w, http.StatusInternalServerError, domain.CategorySystemError)
	default:
		category := usecase.Categorize(err)
		status := http.StatusInternalServerError
		switch category {
		case domain.CategoryInvalidURL:
			status = http.StatusBadRequest
		case domain.CategoryVideoUnavailable, domain.CategoryGeoBlocked, domain.CategoryLoginRequired:
			status = http.StatusUnprocessableEntity
		case domain.CategoryPlatformRateLimited:
			status = http.StatusBadGateway
		}
		writeCategoryError(w, status, category)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func setRateLimitHeaders(w http.ResponseWriter, status domain.RateLimitStatus) {
	for key, value := range status.Headers() {
		w.Header().Set(key, value)
	}
}

func contentTypeForFile(name string) string {
	switch filepath.Ext(name) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mov":
		return "video/quicktime"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".opus", ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
