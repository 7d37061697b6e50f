package ytdlp

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

// infoPayload is the subset of `yt-dlp -J` output we read.
type infoPayload struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Channel      string          `json:"channel"`
	Uploader     string          `json:"uploader"`
	Thumbnail    string          `json:"thumbnail"`
	Duration     float64         `json:"duration"`
	ViewCount    int64           `json:"view_count"`
	UploadDate   string          `json:"upload_date"`
	Availability string          `json:"availability"`
	AgeLimit     int             `json:"age_limit"`
	Formats      []formatPayload `json:"formats"`
}

type formatPayload struct {
	FormatID       string  `json:"format_id"`
	FormatNote     string  `json:"format_note"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	FileSize       int64   `json:"filesize"`
	FileSizeApprox int64   `json:"filesize_approx"`
	TBR            float64 `json:"tbr"`
	URL            string  `json:"url"`
	Protocol       string  `json:"protocol"`
}

func parseInfo(data []byte) (domain.VideoMetadata, error) {
	var payload infoPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.VideoMetadata{}, err
	}

	channel := strings.TrimSpace(payload.Channel)
	if channel == "" {
		channel = strings.TrimSpace(payload.Uploader)
	}

	formats := make([]domain.Format, 0, len(payload.Formats))
	for _, f := range payload.Formats {
		formats = append(formats, toFormat(f))
	}

	return domain.VideoMetadata{
		ID:              domain.VideoID(payload.ID),
		Title:           payload.Title,
		Description:     payload.Description,
		ChannelName:     channel,
		Thumbnail:       payload.Thumbnail,
		DurationSeconds: int64(payload.Duration),
		Views:           payload.ViewCount,
		UploadDate:      formatUploadDate(payload.UploadDate),
		Formats:         formats,
	}, nil
}

func toFormat(f formatPayload) domain.Format {
	hasVideo := f.VCodec != "" && f.VCodec != "none"
	hasAudio := f.ACodec != "" && f.ACodec != "none"
	size, exact := f.FileSize, f.FileSize > 0
	if !exact {
		size = f.FileSizeApprox
	}
	url := f.URL
	// Manifest-based formats cannot be addressed by byte ranges.
	if proto := strings.ToLower(f.Protocol); proto != "" && proto != "https" && proto != "http" {
		url = ""
	}
	return domain.Format{
		ID:        f.FormatID,
		Quality:   qualityLabel(f),
		Container: f.Ext,
		MimeType:  mimeFor(f.Ext, hasVideo),
		Height:    f.Height,
		Bitrate:   int64(f.TBR * 1000),
		HasVideo:  hasVideo,
		HasAudio:  hasAudio,
		FileSize:  size,
		ExactSize: exact,
		URL:       url,
	}
}

func qualityLabel(f formatPayload) string {
	if f.Height > 0 {
		return strconv.Itoa(f.Height) + "p"
	}
	if note := strings.TrimSpace(f.FormatNote); note != "" {
		return note
	}
	return "unknown"
}

func mimeFor(ext string, hasVideo bool) string {
	kind := "video/"
	if !hasVideo {
		kind = "audio/"
	}
	switch strings.ToLower(ext) {
	case "mp4":
		return kind + "mp4"
	case "m4a":
		return "audio/mp4"
	case "webm":
		return kind + "webm"
	case "3gp":
		return "video/3gpp"
	default:
		return ""
	}
}

// formatUploadDate turns yt-dlp's YYYYMMDD into YYYY-MM-DD.
func formatUploadDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) != 8 {
		return raw
	}
	if _, err := strconv.Atoi(raw); err != nil {
		return raw
	}
	return raw[:4] + "-" + raw[4:6] + "-" + raw[6:]
}
