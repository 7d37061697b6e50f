package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/domain/ports"
)

// RelayMimeType is the Content-Type the relay advertises; formats in this
// container win ties.
const RelayMimeType = "video/mp4"

var errNoCompatibleFormat = errors.New("no compatible muxed format")

// DirectStrategy picks a byte-addressable remote URL from the platform's
// format list.
type DirectStrategy struct {
	provider ports.MetadataProvider
}

func NewDirectStrategy(provider ports.MetadataProvider) *DirectStrategy {
	return &DirectStrategy{provider: provider}
}

func (s *DirectStrategy) Name() string { return "direct" }

func (s *DirectStrategy) Resolve(ctx context.Context, id domain.VideoID, qualityCeiling int) (domain.MediaSourceDescriptor, error) {
	meta, err := s.provider.VideoInfo(ctx, id)
	if err != nil {
		return domain.MediaSourceDescriptor{}, err
	}
	best, ok := SelectFormat(meta.Formats, qualityCeiling)
	if !ok {
		return domain.MediaSourceDescriptor{}, fmt.Errorf("%w: %w at or below %dp", domain.ErrResolutionFailed, errNoCompatibleFormat, qualityCeiling)
	}

	desc := domain.MediaSourceDescriptor{
		VideoID:            id,
		Kind:               domain.SourceRemoteDirect,
		Locator:            best.URL,
		MimeType:           best.MimeType,
		SupportsByteRanges: true,
		Height:             best.Height,
		Strategy:           s.Name(),
	}
	if best.ExactSize {
		desc.TotalSize = best.FileSize
	}
	if desc.MimeType == "" {
		desc.MimeType = RelayMimeType
	}
	return desc, nil
}

// SelectFormat returns the best muxed format the relay can serve at or below
// qualityCeiling: highest height first, then the relay's native container,
// then bitrate.
func SelectFormat(formats []domain.Format, qualityCeiling int) (domain.Format, bool) {
	if qualityCeiling <= 0 {
		qualityCeiling = domain.DefaultQualityCeiling
	}
	candidates := make([]domain.Format, 0, len(formats))
	for _, f := range formats {
		if !f.Muxed() || f.URL == "" {
			continue
		}
		if f.Height <= 0 || f.Height > qualityCeiling {
			continue
		}
		if !relayContainer(f.Container) {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return domain.Format{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		an, bn := nativeContainer(a), nativeContainer(b)
		if an != bn {
			return an
		}
		return a.Bitrate > b.Bitrate
	})
	return candidates[0], true
}

func relayContainer(container string) bool {
	switch strings.ToLower(container) {
	case "mp4", "webm":
		return true
	}
	return false
}

func nativeContainer(f domain.Format) bool {
	return strings.EqualFold(f.Container, "mp4") || f.MimeType == RelayMimeType
}
