package duration

import (
	"context"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/domain/ports"
)

// MetadataProbe reads the duration reported in the platform's metadata.
type MetadataProbe struct {
	provider ports.MetadataProvider
}

func NewMetadataProbe(provider ports.MetadataProvider) *MetadataProbe {
	return &MetadataProbe{provider: provider}
}

func (p *MetadataProbe) Name() string { return "metadata" }

func (p *MetadataProbe) ProbeDuration(ctx context.Context, id domain.VideoID) (int64, error) {
	meta, err := p.provider.VideoInfo(ctx, id)
	if err != nil {
		return 0, err
	}
	return meta.DurationSeconds, nil
}
