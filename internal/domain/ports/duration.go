package ports

import (
	"context"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

// DurationProbe measures a video's duration in seconds.
type DurationProbe interface {
	Name() string
	ProbeDuration(ctx context.Context, id domain.VideoID) (int64, error)
}

// DurationStore keeps successful probe results. Put never replaces an
// existing entry.
type DurationStore interface {
	Get(ctx context.Context, id domain.VideoID) (int64, bool, error)
	Put(ctx context.Context, id domain.VideoID, seconds int64) error
}
