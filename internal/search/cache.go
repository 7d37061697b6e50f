package search

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

const (
	defaultCacheTTL        = 30 * time.Minute
	defaultCacheMaxEntries = 500
	redisCachePrefix       = "ytlinks:search:"
)

// CacheBackend is an optional shared cache in front of the in-memory one.
type CacheBackend interface {
	Get(ctx context.Context, key string) ([]domain.SearchResult, bool, error)
	Set(ctx context.Context, key string, results []domain.SearchResult, ttl time.Duration) error
}

type cachedResults struct {
	results   []domain.SearchResult
	expiresAt time.Time
}

type memoryCache struct {
	mu         sync.Mutex
	entries    map[string]cachedResults
	maxEntries int
}

func newMemoryCache(maxEntries int) *memoryCache {
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}
	return &memoryCache{entries: make(map[string]cachedResults), maxEntries: maxEntries}
}

func (c *memoryCache) get(key string, now time.Time) ([]domain.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !now.Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return cloneResults(entry.results), true
}

func (c *memoryCache) set(key string, results []domain.SearchResult, expiresAt time.Time, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedResults{results: cloneResults(results), expiresAt: expiresAt}
	if len(c.entries) <= c.maxEntries {
		return
	}
	for k, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, k)
		}
	}
	// Still over capacity: drop the entry closest to expiry.
	for len(c.entries) > c.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for k, entry := range c.entries {
			if oldestKey == "" || entry.expiresAt.Before(oldest) {
				oldestKey, oldest = k, entry.expiresAt
			}
		}
		delete(c.entries, oldestKey)
	}
}

func cloneResults(in []domain.SearchResult) []domain.SearchResult {
	if in == nil {
		return nil
	}
	out := make([]domain.SearchResult, len(in))
	copy(out, in)
	return out
}

// RedisCacheBackend stores search results in Redis as JSON.
type RedisCacheBackend struct {
	client *redis.Client
}

func NewRedisCacheBackend(client *redis.Client) *RedisCacheBackend {
	return &RedisCacheBackend{client: client}
}

func (r *RedisCacheBackend) Get(ctx context.Context, key string) ([]domain.SearchResult, bool, error) {
	data, err := r.client.Get(ctx, redisCachePrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var results []domain.SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false, err
	}
	return results, true, nil
}

func (r *RedisCacheBackend) Set(ctx context.Context, key string, results []domain.SearchResult, ttl time.Duration) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisCachePrefix+key, data, ttl).Err()
}

func (r *RedisCacheBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
