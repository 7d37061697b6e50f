package usecase

import (
	"context"
	"sort"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/domain/ports"
)

// ListFormats enumerates a video's formats, highest resolution first, muxed
// before single-track at the same height.
type ListFormats struct {
	Provider ports.MetadataProvider
}

func (uc ListFormats) Execute(ctx context.Context, id domain.VideoID) ([]domain.Format, error) {
	if uc.Provider == nil {
		return nil, ErrNotConfigured
	}
	meta, err := uc.Provider.VideoInfo(ctx, id)
	if err != nil {
		return nil, wrapProvider(err)
	}
	formats := make([]domain.Format, len(meta.Formats))
	copy(formats, meta.Formats)
	sort.SliceStable(formats, func(i, j int) bool {
		a, b := formats[i], formats[j]
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		return a.Muxed() && !b.Muxed()
	})
	return formats, nil
}
