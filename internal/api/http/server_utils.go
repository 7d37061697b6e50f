package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/relay"
	"github.com/o-sallam/ytlinks-backend/internal/search"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}

// writeDomainError maps classified failures to status codes. fallback is the
// message used for transient failures; their causes stay in the logs.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidVideoID):
		writeError(w, http.StatusBadRequest, "Invalid or missing videoId", "")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Video not found or unavailable", "")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "Video is private or age-restricted", "")
	case errors.Is(err, relay.ErrRangeRequired):
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "Range header is required", "")
	case errors.Is(err, relay.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "Invalid Range header", "")
	case errors.Is(err, relay.ErrRangeNotSatisfiable):
		var unsatisfiable *relay.UnsatisfiableError
		if errors.As(err, &unsatisfiable) {
			w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(unsatisfiable.Total, 10))
		}
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "Requested range not satisfiable", "")
	case errors.Is(err, search.ErrKeywordRequired):
		writeError(w, http.StatusBadRequest, "Keyword parameter is required", "")
	case errors.Is(err, domain.ErrResolutionFailed),
		errors.Is(err, domain.ErrDownloadFailed),
		errors.Is(err, domain.ErrProbeFailed):
		writeError(w, http.StatusInternalServerError, fallback, "upstream temporarily unavailable, retry later")
	default:
		writeError(w, http.StatusInternalServerError, fallback, "")
	}
}

func parseVideoID(r *http.Request) (domain.VideoID, string, error) {
	raw := r.PathValue("videoId")
	id, err := domain.ParseVideoID(raw)
	return id, raw, err
}

// parseQuality reads the optional ?quality= height ceiling.
func parseQuality(value string, fallback int) (int, error) {
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "p"))
	if value == "" {
		return fallback, nil
	}
	height, err := strconv.Atoi(value)
	if err != nil || height <= 0 {
		return 0, errors.New("quality must be a positive height")
	}
	return height, nil
}

func parsePage(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(value)
	if err != nil || page < 1 {
		return 0, errors.New("page must be >= 1")
	}
	if page > search.MaxPage {
		return 0, errors.New("page must be <= " + strconv.Itoa(search.MaxPage))
	}
	return page, nil
}
