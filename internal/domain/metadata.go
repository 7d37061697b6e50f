package domain

import "time"

// Format is one encoding the platform offers for a video.
type Format struct {
	ID        string `json:"id"`
	Quality   string `json:"quality"`
	Container string `json:"container"`
	MimeType  string `json:"mimeType,omitempty"`
	Height    int    `json:"height,omitempty"`
	Bitrate   int64  `json:"bitrate,omitempty"`
	HasVideo  bool   `json:"hasVideo"`
	HasAudio  bool   `json:"hasAudio"`
	FileSize  int64  `json:"filesize,omitempty"`
	// ExactSize is false when FileSize is only the platform's estimate.
	ExactSize bool   `json:"-"`
	URL       string `json:"-"`
}

// Muxed reports whether the format carries both audio and video tracks.
func (f Format) Muxed() bool {
	return f.HasVideo && f.HasAudio
}

// VideoMetadata is the descriptive information the platform reports for a
// video, together with its format list.
type VideoMetadata struct {
	ID              VideoID
	Title           string
	Description     string
	ChannelName     string
	Thumbnail       string
	DurationSeconds int64
	Views           int64
	UploadDate      string
	Formats         []Format
	FetchedAt       time.Time
}
