package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/domain/ports"
	"github.com/o-sallam/ytlinks-backend/internal/metrics"
)

const (
	DefaultLimit   = 5
	MaxLimit       = 20
	MaxPage        = 10
	defaultTimeout = 15 * time.Second
)

var (
	ErrKeywordRequired = errors.New("keyword parameter is required")
	ErrSearchFailed    = errors.New("search failed")
)

// Service answers keyword searches through a provider with a TTL cache.
type Service struct {
	provider ports.SearchProvider
	backend  CacheBackend
	memory   *memoryCache
	ttl      time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	group singleflight.Group
}

type Option func(*Service)

func WithCacheBackend(backend CacheBackend) Option {
	return func(s *Service) { s.backend = backend }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(provider ports.SearchProvider, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		memory:   newMemoryCache(defaultCacheMaxEntries),
		ttl:      defaultCacheTTL,
		timeout:  defaultTimeout,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Search(ctx context.Context, request domain.SearchRequest) ([]domain.SearchResult, error) {
	request.Keyword = strings.TrimSpace(request.Keyword)
	if request.Keyword == "" {
		return nil, ErrKeywordRequired
	}
	if request.Page < 1 {
		request.Page = 1
	}
	if request.Page > MaxPage {
		request.Page = MaxPage
	}
	if request.Limit <= 0 {
		request.Limit = DefaultLimit
	}
	if request.Limit > MaxLimit {
		request.Limit = MaxLimit
	}

	key := cacheKey(request.Keyword, request.Page, request.Limit)
	if results, ok := s.lookup(ctx, key); ok {
		metrics.SearchCacheHitsTotal.Inc()
		return results, nil
	}
	metrics.SearchCacheMissesTotal.Inc()

	ch := s.group.DoChan(key, func() (interface{}, error) {
		searchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		results, err := s.provider.Search(searchCtx, request)
		if err != nil {
			return nil, err
		}
		s.store(searchCtx, key, results)
		return results, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			s.logger.Warn("search failed",
				slog.String("provider", s.provider.Name()),
				slog.String("keyword", request.Keyword),
				slog.String("error", res.Err.Error()),
			)
			return nil, fmt.Errorf("%w: %v", ErrSearchFailed, res.Err)
		}
		return cloneResults(res.Val.([]domain.SearchResult)), nil
	}
}

func (s *Service) lookup(ctx context.Context, key string) ([]domain.SearchResult, bool) {
	now := s.now()
	if results, ok := s.memory.get(key, now); ok {
		return results, true
	}
	if s.backend == nil {
		return nil, false
	}
	results, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Debug("search cache backend read failed", slog.String("error", err.Error()))
		return nil, false
	}
	if ok {
		s.memory.set(key, results, now.Add(s.ttl), now)
	}
	return results, ok
}

func (s *Service) store(ctx context.Context, key string, results []domain.SearchResult) {
	now := s.now()
	s.memory.set(key, results, now.Add(s.ttl), now)
	if s.backend == nil {
		return
	}
	if err := s.backend.Set(ctx, key, results, s.ttl); err != nil {
		s.logger.Debug("search cache backend write failed", slog.String("error", err.Error()))
	}
}
