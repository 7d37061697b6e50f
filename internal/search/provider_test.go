package search

import (
	"testing"

	"github.com/raitonoberu/ytsearch"
)

func TestToSearchResult(t *testing.T) {
	video := &ytsearch.VideoItem{
		ID:            "dQw4w9WgXcQ",
		Title:         "Never Gonna Give You Up",
		PublishedTime: "15 years ago",
		Duration:      213,
		ViewCount:     1_500_000_000,
		Thumbnails: []ytsearch.Thumbnail{
			{URL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/hq720.jpg", Width: 720},
			{URL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/default.jpg", Width: 120},
		},
		Channel: ytsearch.Channel{Title: "Rick Astley"},
	}

	got := toSearchResult(video)
	if got.ID != "dQw4w9WgXcQ" || got.Title != video.Title || got.Channel != "Rick Astley" {
		t.Fatalf("unexpected identity fields: %+v", got)
	}
	if got.Views != 1_500_000_000 {
		t.Fatalf("views = %d", got.Views)
	}
	if got.UploadDate != "15 years ago" {
		t.Fatalf("uploadDate = %q", got.UploadDate)
	}
	if got.DurationSeconds != 213 {
		t.Fatalf("duration = %d", got.DurationSeconds)
	}
	if got.Thumbnail != "https://i.ytimg.com/vi/dQw4w9WgXcQ/hq720.jpg" {
		t.Fatalf("thumbnail = %q", got.Thumbnail)
	}
}

func TestToSearchResultWithoutThumbnails(t *testing.T) {
	got := toSearchResult(&ytsearch.VideoItem{ID: "abcdefghijk", Title: "t"})
	if got.Thumbnail != "" || got.Views != 0 || got.UploadDate != "" {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}
