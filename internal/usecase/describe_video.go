package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

const (
	unknownTitle   = "Unknown Title"
	unknownChannel = "Unknown Channel"
	unknownDate    = "Unknown"
	zeroDuration   = "0:00"
)

// DurationLookup is the part of the duration resolver the use cases need.
type DurationLookup interface {
	GetDuration(ctx context.Context, id domain.VideoID) (int64, error)
	Remember(ctx context.Context, id domain.VideoID, seconds int64)
}

// VideoDetails is the client-facing description of a video with every field
// filled in.
type VideoDetails struct {
	Title           string
	Description     string
	ChannelName     string
	EmbedURL        string
	Thumbnail       string
	Duration        string
	DurationSeconds int64
	Views           string
	UploadDate      string
}

// DescribeVideo combines metadata with an independently resolved duration.
type DescribeVideo struct {
	Info      *GetVideoInfo
	Durations DurationLookup
}

func (uc DescribeVideo) Execute(ctx context.Context, id domain.VideoID) (VideoDetails, error) {
	if uc.Info == nil {
		return VideoDetails{}, ErrNotConfigured
	}

	var (
		meta   domain.VideoMetadata
		probed int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		meta, err = uc.Info.Execute(gctx, id)
		return err
	})
	if uc.Durations != nil {
		g.Go(func() error {
			// A missing duration degrades to "0:00" rather than failing.
			if seconds, err := uc.Durations.GetDuration(gctx, id); err == nil {
				probed = seconds
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return VideoDetails{}, err
	}

	seconds := meta.DurationSeconds
	if seconds > 0 && uc.Durations != nil {
		uc.Durations.Remember(ctx, id, seconds)
	}
	if seconds <= 0 {
		seconds = probed
	}
	return buildDetails(id, meta, seconds), nil
}

func buildDetails(id domain.VideoID, meta domain.VideoMetadata, seconds int64) VideoDetails {
	thumbnail := strings.TrimSpace(meta.Thumbnail)
	if thumbnail == "" {
		thumbnail = id.ThumbnailURL()
	}
	return VideoDetails{
		Title:           orDefault(meta.Title, unknownTitle),
		Description:     meta.Description,
		ChannelName:     orDefault(meta.ChannelName, unknownChannel),
		EmbedURL:        id.EmbedURL(),
		Thumbnail:       thumbnail,
		Duration:        FormatDuration(seconds),
		DurationSeconds: max(seconds, 0),
		Views:           strconv.FormatInt(max(meta.Views, 0), 10),
		UploadDate:      orDefault(meta.UploadDate, unknownDate),
	}
}

// FormatDuration renders seconds as minutes:seconds; hours are folded into
// the minutes.
func FormatDuration(seconds int64) string {
	if seconds <= 0 {
		return zeroDuration
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
