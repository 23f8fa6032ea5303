package apihttp

import (
	"encoding/json"
	"net/http"
	"strings"

	"mediafetch/internal/domain"
)

type resolutionsRequest struct {
	URL string `json:"url"`
}

type resolutionsResponse struct {
	Meta    domain.VideoMetadata `json:"meta"`
	Formats []map[string]any     `json:"formats"`
}

func (s *Server) handleResolutions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeCategoryError(w, http.StatusMethodNotAllowed, domain.CategoryInvalidRequest)
		return
	}
	if s.resolveVideo == nil {
		writeCategoryError(w, http.StatusInternalServerError, domain.CategorySystemError)
		return
	}

	var req resolutionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCategoryError(w, http.StatusBadRequest, domain.CategoryInvalidRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeCategoryError(w, http.StatusBadRequest, domain.CategoryInvalidRequest)
		return
	}

	if !s.enforceLimits(w, r, s.endpointLimit(r.URL.Path)) {
		return
	}

	result, err := s.resolveVideo.Execute(r.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolutionsResponse{
		Meta:    result.Meta,
		Formats: result.Formats,
	})
}
