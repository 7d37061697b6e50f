package search

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

type fakeProvider struct {
	calls   atomic.Int32
	results []domain.SearchResult
	err     error
	delay   time.Duration
	lastReq domain.SearchRequest
	mu      sync.Mutex
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(ctx context.Context, request domain.SearchRequest) ([]domain.SearchResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastReq = request
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.results, f.err
}

type mapBackend struct {
	mu   sync.Mutex
	data map[string][]domain.SearchResult
	ttls map[string]time.Duration
}

func newMapBackend() *mapBackend {
	return &mapBackend{data: map[string][]domain.SearchResult{}, ttls: map[string]time.Duration{}}
}

func (b *mapBackend) Get(_ context.Context, key string) ([]domain.SearchResult, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.data[key]
	return r, ok, nil
}

func (b *mapBackend) Set(_ context.Context, key string, results []domain.SearchResult, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = results
	b.ttls[key] = ttl
	return nil
}

func sampleResults() []domain.SearchResult {
	return []domain.SearchResult{
		{ID: "aaaaaaaaaaa", Title: "First", DurationSeconds: 61},
		{ID: "bbbbbbbbbbb", Title: "Second"},
	}
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"  Hello   World ", "hello world"},
		{"ＦＵＬＬ width", "full width"},
		{"ÉCOLE Été", "école été"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := NormalizeQuery(tc.raw); got != tc.want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
	if cacheKey("Lo-Fi  Beats", 1, 5) != cacheKey("lo-fi beats", 1, 5) {
		t.Fatal("equivalent queries produced different keys")
	}
	if cacheKey("x", 1, 5) == cacheKey("x", 2, 5) {
		t.Fatal("pages share a cache key")
	}
}

func TestServiceRequiresKeyword(t *testing.T) {
	svc := NewService(&fakeProvider{})
	if _, err := svc.Search(context.Background(), domain.SearchRequest{Keyword: "  "}); !errors.Is(err, ErrKeywordRequired) {
		t.Fatalf("expected ErrKeywordRequired, got %v", err)
	}
}

func TestServiceDefaultsAndClamps(t *testing.T) {
	provider := &fakeProvider{results: sampleResults()}
	svc := NewService(provider)

	if _, err := svc.Search(context.Background(), domain.SearchRequest{Keyword: "cats"}); err != nil {
		t.Fatal(err)
	}
	provider.mu.Lock()
	req := provider.lastReq
	provider.mu.Unlock()
	if req.Page != 1 || req.Limit != DefaultLimit {
		t.Fatalf("request = %+v", req)
	}

	if _, err := svc.Search(context.Background(), domain.SearchRequest{Keyword: "dogs", Page: 99, Limit: 999}); err != nil {
		t.Fatal(err)
	}
	provider.mu.Lock()
	req = provider.lastReq
	provider.mu.Unlock()
	if req.Page != MaxPage || req.Limit != MaxLimit {
		t.Fatalf("request = %+v", req)
	}
}

func TestServiceCachesResults(t *testing.T) {
	provider := &fakeProvider{results: sampleResults()}
	backend := newMapBackend()
	svc := NewService(provider, WithCacheBackend(backend), WithCacheTTL(time.Minute))
	now := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return now }

	for _, kw := range []string{"Cats", "cats", "  CATS "} {
		got, err := svc.Search(context.Background(), domain.SearchRequest{Keyword: kw})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d", len(got))
		}
	}
	if provider.calls.Load() != 1 {
		t.Fatalf("provider calls = %d, want 1", provider.calls.Load())
	}
	key := cacheKey("cats", 1, DefaultLimit)
	if backend.ttls[key] != time.Minute {
		t.Fatalf("backend ttl = %v", backend.ttls[key])
	}

	now = now.Add(2 * time.Minute)
	backend.mu.Lock()
	delete(backend.data, key)
	backend.mu.Unlock()
	if _, err := svc.Search(context.Background(), domain.SearchRequest{Keyword: "cats"}); err != nil {
		t.Fatal(err)
	}
	if provider.calls.Load() != 2 {
		t.Fatalf("provider calls after expiry = %d, want 2", provider.calls.Load())
	}
}

func TestServiceReadsSharedBackend(t *testing.T) {
	provider := &fakeProvider{results: sampleResults()}
	backend := newMapBackend()
	backend.data[cacheKey("cats", 1, DefaultLimit)] = []domain.SearchResult{{ID: "ccccccccccc"}}
	svc := NewService(provider, WithCacheBackend(backend))

	got, err := svc.Search(context.Background(), domain.SearchRequest{Keyword: "cats"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "ccccccccccc" || provider.calls.Load() != 0 {
		t.Fatalf("got %+v after %d provider calls", got, provider.calls.Load())
	}
}

func TestServiceDoesNotCacheFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("boom")}
	svc := NewService(provider)
	if _, err := svc.Search(context.Background(), domain.SearchRequest{Keyword: "cats"}); !errors.Is(err, ErrSearchFailed) {
		t.Fatalf("expected ErrSearchFailed, got %v", err)
	}
	provider.err = nil
	provider.results = sampleResults()
	if _, err := svc.Search(context.Background(), domain.SearchRequest{Keyword: "cats"}); err != nil {
		t.Fatal(err)
	}
	if provider.calls.Load() != 2 {
		t.Fatalf("provider calls = %d, want 2", provider.calls.Load())
	}
}

func TestServiceReturnsCopies(t *testing.T) {
	provider := &fakeProvider{results: sampleResults()}
	svc := NewService(provider)
	first, _ := svc.Search(context.Background(), domain.SearchRequest{Keyword: "cats"})
	first[0].Title = "mutated"
	second, _ := svc.Search(context.Background(), domain.SearchRequest{Keyword: "cats"})
	if second[0].Title != "First" {
		t.Fatal("cached results were mutated through a returned slice")
	}
}

func TestMemoryCacheEviction(t *testing.T) {
	c := newMemoryCache(2)
	now := time.Unix(0, 0)
	c.set("a", nil, now.Add(1*time.Minute), now)
	c.set("b", nil, now.Add(3*time.Minute), now)
	c.set("c", nil, now.Add(2*time.Minute), now)
	if len(c.entries) != 2 {
		t.Fatalf("entries = %d", len(c.entries))
	}
	if _, ok := c.entries["a"]; ok {
		t.Fatal("entry closest to expiry kept")
	}
}

func TestProviderWalksPages(t *testing.T) {
	pages := [][]domain.SearchResult{
		{{ID: "p1aaaaaaaaa"}},
		{{ID: "p2aaaaaaaaa"}, {ID: "p2bbbbbbbbb"}, {ID: "p2ccccccccc"}},
	}
	p := NewYouTubeProvider()
	p.newPage = func(query string) pageFetcher {
		i := 0
		return func() ([]domain.SearchResult, error) {
			if i >= len(pages) {
				return nil, nil
			}
			i++
			return pages[i-1], nil
		}
	}

	got, err := p.Search(context.Background(), domain.SearchRequest{Keyword: "x", Page: 2, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "p2aaaaaaaaa" {
		t.Fatalf("got %+v", got)
	}

	got, err = p.Search(context.Background(), domain.SearchRequest{Keyword: "x", Page: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no results past the last page, got %+v", got)
	}
}

func TestProviderRetriesTransientErrors(t *testing.T) {
	p := NewYouTubeProvider()
	p.retry = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	attempts := 0
	p.newPage = func(string) pageFetcher {
		return func() ([]domain.SearchResult, error) {
			attempts++
			if attempts < 3 {
				return nil, io.ErrUnexpectedEOF
			}
			return []domain.SearchResult{{ID: "okaaaaaaaaa"}}, nil
		}
	}
	got, err := p.Search(context.Background(), domain.SearchRequest{Keyword: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || attempts != 3 {
		t.Fatalf("got %d results after %d attempts", len(got), attempts)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		calls++
		return errors.New("bad request")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRedisCacheBackendIntegration(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(opts)
	defer client.Close()
	backend := NewRedisCacheBackend(client)
	ctx := context.Background()
	if err := backend.Ping(ctx); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	key := "test:" + time.Now().Format("150405.000000")
	defer client.Del(ctx, redisCachePrefix+key)

	if err := backend.Set(ctx, key, sampleResults(), time.Minute); err != nil {
		t.Fatal(err)
	}
	got, ok, err := backend.Get(ctx, key)
	if err != nil || !ok || len(got) != 2 || got[0].Title != "First" {
		t.Fatalf("Get = (%+v, %v, %v)", got, ok, err)
	}
}
