package ports

import (
	"context"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

// SourceStrategy is one way of turning a video id into a playable source.
type SourceStrategy interface {
	Name() string
	Resolve(ctx context.Context, id domain.VideoID, qualityCeiling int) (domain.MediaSourceDescriptor, error)
}

// SourceResolver picks a playable source, falling back between strategies.
type SourceResolver interface {
	Resolve(ctx context.Context, id domain.VideoID, qualityCeiling int) (domain.MediaSourceDescriptor, error)
}

// MetadataProvider returns descriptive metadata and the format list for a
// video from the platform.
type MetadataProvider interface {
	VideoInfo(ctx context.Context, id domain.VideoID) (domain.VideoMetadata, error)
}

// Materializer downloads a video into destPath. It must not leave destPath
// behind on failure.
type Materializer interface {
	Download(ctx context.Context, id domain.VideoID, qualityCeiling int, destPath string) error
}

// LocalCache hands out paths to fully materialized local copies.
type LocalCache interface {
	EnsureMaterialized(ctx context.Context, id domain.VideoID, qualityCeiling int) (string, error)
	Lookup(id domain.VideoID) (string, bool)
}
