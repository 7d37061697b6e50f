package domain

import (
	"regexp"
	"strings"
)

// VideoID is the platform's opaque identifier for a single video.
type VideoID string

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID validates raw and returns it as a VideoID. Placeholders sent by
// clients with unset state ("undefined", "null") are rejected.
func ParseVideoID(raw string) (VideoID, error) {
	value := strings.TrimSpace(raw)
	switch strings.ToLower(value) {
	case "", "undefined", "null":
		return "", ErrInvalidVideoID
	}
	if !videoIDPattern.MatchString(value) {
		return "", ErrInvalidVideoID
	}
	return VideoID(value), nil
}

func (id VideoID) String() string {
	return string(id)
}

func (id VideoID) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + string(id)
}

func (id VideoID) EmbedURL() string {
	return "https://www.youtube.com/embed/" + string(id)
}

func (id VideoID) ThumbnailURL() string {
	return "https://img.youtube.com/vi/" + string(id) + "/maxresdefault.jpg"
}
