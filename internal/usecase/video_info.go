package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/domain/ports"
)

// GetVideoInfo returns metadata from the repository while it is younger than
// MaxAge and from the provider otherwise. Concurrent lookups of one id share
// a provider call.
type GetVideoInfo struct {
	Provider ports.MetadataProvider
	Repo     ports.MetadataRepository
	MaxAge   time.Duration
	Logger   *slog.Logger

	group singleflight.Group
}

func (uc *GetVideoInfo) Execute(ctx context.Context, id domain.VideoID) (domain.VideoMetadata, error) {
	if uc.Provider == nil {
		return domain.VideoMetadata{}, ErrNotConfigured
	}
	if meta, ok := uc.stored(ctx, id); ok {
		return meta, nil
	}

	ch := uc.group.DoChan(string(id), func() (interface{}, error) {
		fetchCtx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithDeadline(fetchCtx, deadline)
			defer cancel()
		}
		meta, err := uc.Provider.VideoInfo(fetchCtx, id)
		if err != nil {
			return nil, wrapProvider(err)
		}
		if meta.ID == "" {
			meta.ID = id
		}
		if meta.FetchedAt.IsZero() {
			meta.FetchedAt = time.Now().UTC()
		}
		uc.save(fetchCtx, meta)
		return meta, nil
	})
	select {
	case <-ctx.Done():
		return domain.VideoMetadata{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.VideoMetadata{}, res.Err
		}
		return res.Val.(domain.VideoMetadata), nil
	}
}

// VideoInfo lets the use case stand in for a metadata provider.
func (uc *GetVideoInfo) VideoInfo(ctx context.Context, id domain.VideoID) (domain.VideoMetadata, error) {
	return uc.Execute(ctx, id)
}

func (uc *GetVideoInfo) stored(ctx context.Context, id domain.VideoID) (domain.VideoMetadata, bool) {
	if uc.Repo == nil || uc.MaxAge <= 0 {
		return domain.VideoMetadata{}, false
	}
	meta, err := uc.Repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			uc.logger().Warn("metadata repository read failed", slog.String("videoId", string(id)), slog.String("error", err.Error()))
		}
		return domain.VideoMetadata{}, false
	}
	if time.Since(meta.FetchedAt) > uc.MaxAge {
		return domain.VideoMetadata{}, false
	}
	return meta, true
}

func (uc *GetVideoInfo) save(ctx context.Context, meta domain.VideoMetadata) {
	if uc.Repo == nil {
		return
	}
	if err := uc.Repo.Upsert(ctx, meta); err != nil {
		uc.logger().Warn("metadata repository write failed", slog.String("videoId", string(meta.ID)), slog.String("error", err.Error()))
	}
}

func (uc *GetVideoInfo) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}
