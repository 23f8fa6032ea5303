package apihttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"mediafetch/internal/domain"
)

func (s *Server) handleFileByToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeCategoryError(w, http.StatusMethodNotAllowed, domain.CategoryInvalidRequest)
		return
	}
	if s.files == nil {
		writeCategoryError(w, http.StatusNotFound, domain.CategoryFileNotFound)
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/downloads/file/")
	raw = strings.TrimSuffix(raw, "/")
	token, err := domain.ParseDownloadToken(raw)
	if err != nil {
		writeCategoryError(w, http.StatusNotFound, domain.CategoryFileNotFound)
		return
	}

	file, err := s.files.GetByToken(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrFileExpired):
			writeCategoryError(w, http.StatusGone, domain.CategoryFileExpired)
		case errors.Is(err, domain.ErrNotFound):
			writeCategoryError(w, http.StatusNotFound, domain.CategoryFileNotFound)
		default:
			writeCategoryError(w, http.StatusInternalServerError, domain.CategorySystemError)
		}
		return
	}

	content, err := s.files.Content(file)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeCategoryError(w, http.StatusNotFound, domain.CategoryFileNotFound)
			return
		}
		writeCategoryError(w, http.StatusInternalServerError, domain.CategorySystemError)
		return
	}

	w.Header().Set("Content-Type", contentTypeForFile(file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+sanitizeFilename(file.Filename)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `"`, "")
	name = strings.ReplaceAll(name, "\r", "")
	name = strings.ReplaceAll(name, "\n", "")
	if name == "" {
		return "download"
	}
	return name
}
