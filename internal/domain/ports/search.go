package ports

import (
	"context"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

type SearchProvider interface {
	Name() string
	Search(ctx context.Context, request domain.SearchRequest) ([]domain.SearchResult, error)
}

// EventPublisher receives lifecycle events. Implementations must not block.
type EventPublisher interface {
	Publish(event domain.Event)
}
