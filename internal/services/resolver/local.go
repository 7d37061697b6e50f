package resolver

import (
	"context"
	"fmt"
	"os"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/domain/ports"
)

// LocalStrategy serves a fully materialized copy from the local cache store.
// Unless lookupOnly is set it downloads the copy first when needed.
type LocalStrategy struct {
	cache      ports.LocalCache
	lookupOnly bool
}

func NewLocalStrategy(cache ports.LocalCache) *LocalStrategy {
	return &LocalStrategy{cache: cache}
}

// NewCachedStrategy answers only for videos that are already on disk.
func NewCachedStrategy(cache ports.LocalCache) *LocalStrategy {
	return &LocalStrategy{cache: cache, lookupOnly: true}
}

func (s *LocalStrategy) Name() string {
	if s.lookupOnly {
		return "cached"
	}
	return "local"
}

func (s *LocalStrategy) Resolve(ctx context.Context, id domain.VideoID, qualityCeiling int) (domain.MediaSourceDescriptor, error) {
	var path string
	if s.lookupOnly {
		var ok bool
		if path, ok = s.cache.Lookup(id); !ok {
			return domain.MediaSourceDescriptor{}, fmt.Errorf("%w: %w: no local copy", domain.ErrResolutionFailed, ErrNotApplicable)
		}
	} else {
		var err error
		if path, err = s.cache.EnsureMaterialized(ctx, id, qualityCeiling); err != nil {
			return domain.MediaSourceDescriptor{}, err
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return domain.MediaSourceDescriptor{}, fmt.Errorf("%w: stat cached file: %v", domain.ErrResolutionFailed, err)
	}
	return domain.MediaSourceDescriptor{
		VideoID:            id,
		Kind:               domain.SourceLocalFile,
		Locator:            path,
		MimeType:           RelayMimeType,
		TotalSize:          info.Size(),
		SupportsByteRanges: true,
		Strategy:           s.Name(),
	}, nil
}
