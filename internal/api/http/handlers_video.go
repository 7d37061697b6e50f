package apihttp

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/usecase"
)

type videoResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ChannelName string `json:"channelName"`
	EmbedURL    string `json:"embedUrl"`
	Thumbnail   string `json:"thumbnail"`
	Duration    string `json:"duration"`
	Views       string `json:"views"`
	UploadDate  string `json:"uploadDate"`
}

type formatResponse struct {
	ID        string `json:"id"`
	Quality   string `json:"quality"`
	Container string `json:"container"`
	HasVideo  bool   `json:"hasVideo"`
	HasAudio  bool   `json:"hasAudio"`
	FileSize  string `json:"filesize"`
}

type formatsResponse struct {
	Formats []formatResponse `json:"formats"`
}

type searchResultResponse struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Channel    string `json:"channel"`
	Views      string `json:"views"`
	UploadDate string `json:"uploadDate"`
	Thumbnail  string `json:"thumbnail"`
	Duration   string `json:"duration"`
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	id, raw, err := parseVideoID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing videoId", raw)
		return
	}
	if s.describe == nil {
		writeError(w, http.StatusServiceUnavailable, "Video details not available", "")
		return
	}

	details, err := s.describe.Execute(r.Context(), id)
	if err != nil {
		s.logger.Warn("video details failed",
			slog.String("videoId", string(id)),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "Failed to fetch video details")
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponse(details))
}

func toVideoResponse(d usecase.VideoDetails) videoResponse {
	return videoResponse{
		Title:       d.Title,
		Description: d.Description,
		ChannelName: d.ChannelName,
		EmbedURL:    d.EmbedURL,
		Thumbnail:   d.Thumbnail,
		Duration:    d.Duration,
		Views:       d.Views,
		UploadDate:  d.UploadDate,
	}
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	id, raw, err := parseVideoID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing videoId", raw)
		return
	}
	if s.formats == nil {
		writeError(w, http.StatusServiceUnavailable, "Formats not available", "")
		return
	}

	formats, err := s.formats.Execute(r.Context(), id)
	if err != nil {
		s.logger.Warn("list formats failed",
			slog.String("videoId", string(id)),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "Failed to get video formats")
		return
	}

	resp := formatsResponse{Formats: make([]formatResponse, 0, len(formats))}
	for _, f := range formats {
		resp.Formats = append(resp.Formats, toFormatResponse(f))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toFormatResponse(f domain.Format) formatResponse {
	size := "unknown"
	if f.FileSize > 0 {
		size = strconv.FormatInt(f.FileSize, 10)
	}
	return formatResponse{
		ID:        f.ID,
		Quality:   orUnknown(f.Quality),
		Container: orUnknown(f.Container),
		HasVideo:  f.HasVideo,
		HasAudio:  f.HasAudio,
		FileSize:  size,
	}
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := parsePage(query.Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid page parameter", err.Error())
		return
	}
	if s.search == nil {
		writeError(w, http.StatusServiceUnavailable, "Search not available", "")
		return
	}

	results, err := s.search.Search(r.Context(), domain.SearchRequest{
		Keyword: query.Get("keyword"),
		Page:    page,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to search YouTube videos")
		return
	}

	out := make([]searchResultResponse, 0, len(results))
	for _, res := range results {
		out = append(out, toSearchResultResponse(res))
	}
	writeJSON(w, http.StatusOK, out)
}

func toSearchResultResponse(res domain.SearchResult) searchResultResponse {
	views := ""
	if res.Views > 0 {
		views = strconv.FormatInt(res.Views, 10)
	}
	duration := ""
	if res.DurationSeconds > 0 {
		duration = usecase.FormatDuration(res.DurationSeconds)
	}
	url := ""
	if res.ID != "" {
		url = res.ID.WatchURL()
	}
	return searchResultResponse{
		Title:      res.Title,
		URL:        url,
		Channel:    res.Channel,
		Views:      views,
		UploadDate: res.UploadDate,
		Thumbnail:  res.Thumbnail,
		Duration:   duration,
	}
}
