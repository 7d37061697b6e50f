package ports

import (
	"context"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

// MetadataRepository persists fetched video metadata between restarts.
type MetadataRepository interface {
	Get(ctx context.Context, id domain.VideoID) (domain.VideoMetadata, error)
	Upsert(ctx context.Context, meta domain.VideoMetadata) error
}
