package duration

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/domain/ports"
)

const testID = domain.VideoID("dQw4w9WgXcQ")

type fakeProbe struct {
	name    string
	seconds int64
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakeProbe) Name() string { return f.name }

func (f *fakeProbe) ProbeDuration(ctx context.Context, id domain.VideoID) (int64, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.seconds, f.err
}

type failingStore struct{}

func (failingStore) Get(context.Context, domain.VideoID) (int64, bool, error) {
	return 0, false, errors.New("store down")
}

func (failingStore) Put(context.Context, domain.VideoID, int64) error {
	return errors.New("store down")
}

func TestGetDurationCachesSuccess(t *testing.T) {
	probe := &fakeProbe{name: "p", seconds: 212}
	r := NewResolver([]ports.DurationProbe{probe})

	for i := 0; i < 3; i++ {
		got, err := r.GetDuration(context.Background(), testID)
		if err != nil {
			t.Fatalf("GetDuration: %v", err)
		}
		if got != 212 {
			t.Fatalf("got %d, want 212", got)
		}
	}
	if probe.calls.Load() != 1 {
		t.Fatalf("probe calls = %d, want 1", probe.calls.Load())
	}
}

func TestGetDurationDoesNotCacheFailure(t *testing.T) {
	probe := &fakeProbe{name: "p", err: errors.New("transient")}
	r := NewResolver([]ports.DurationProbe{probe})

	if _, err := r.GetDuration(context.Background(), testID); !errors.Is(err, domain.ErrProbeFailed) {
		t.Fatalf("expected ErrProbeFailed, got %v", err)
	}
	probe.err = nil
	probe.seconds = 90
	got, err := r.GetDuration(context.Background(), testID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got != 90 || probe.calls.Load() != 2 {
		t.Fatalf("got %d after %d calls", got, probe.calls.Load())
	}
}

func TestGetDurationFallsThroughProbes(t *testing.T) {
	first := &fakeProbe{name: "ffprobe", err: errors.New("no local copy")}
	zero := &fakeProbe{name: "metadata", seconds: 0}
	last := &fakeProbe{name: "watchpage", seconds: 61}
	r := NewResolver([]ports.DurationProbe{first, zero, last})

	got, err := r.GetDuration(context.Background(), testID)
	if err != nil {
		t.Fatal(err)
	}
	if got != 61 {
		t.Fatalf("got %d, want 61", got)
	}
	if first.calls.Load() != 1 || zero.calls.Load() != 1 || last.calls.Load() != 1 {
		t.Fatal("probes not tried in order")
	}
}

func TestGetDurationProbeTimeout(t *testing.T) {
	slow := &fakeProbe{name: "slow", seconds: 5, delay: time.Second}
	r := NewResolver([]ports.DurationProbe{slow}, WithProbeTimeout(20*time.Millisecond))
	start := time.Now()
	if _, err := r.GetDuration(context.Background(), testID); !errors.Is(err, domain.ErrProbeFailed) {
		t.Fatalf("expected ErrProbeFailed, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("probe not bounded by timeout")
	}
}

func TestGetDurationNoProbes(t *testing.T) {
	r := NewResolver(nil)
	if _, err := r.GetDuration(context.Background(), testID); !errors.Is(err, domain.ErrProbeFailed) {
		t.Fatalf("expected ErrProbeFailed, got %v", err)
	}
}

func TestGetDurationCoalesces(t *testing.T) {
	probe := &fakeProbe{name: "p", seconds: 10, delay: 100 * time.Millisecond}
	r := NewResolver([]ports.DurationProbe{probe})
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.GetDuration(context.Background(), testID); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if probe.calls.Load() != 1 {
		t.Fatalf("probe calls = %d, want 1", probe.calls.Load())
	}
}

func TestPeekAndRemember(t *testing.T) {
	r := NewResolver(nil)
	if _, ok := r.Peek(context.Background(), testID); ok {
		t.Fatal("unexpected cached value")
	}
	r.Remember(context.Background(), testID, 0)
	if _, ok := r.Peek(context.Background(), testID); ok {
		t.Fatal("zero duration remembered")
	}
	r.Remember(context.Background(), testID, 33)
	r.Remember(context.Background(), testID, 44)
	got, ok := r.Peek(context.Background(), testID)
	if !ok || got != 33 {
		t.Fatalf("Peek = (%d, %v), want (33, true)", got, ok)
	}
}

func TestSharedStorePopulatesLocal(t *testing.T) {
	shared := NewMemoryStore()
	_ = shared.Put(context.Background(), testID, 77)
	probe := &fakeProbe{name: "p", seconds: 1}
	r := NewResolver([]ports.DurationProbe{probe}, WithSharedStore(shared))

	got, err := r.GetDuration(context.Background(), testID)
	if err != nil || got != 77 {
		t.Fatalf("GetDuration = (%d, %v)", got, err)
	}
	if probe.calls.Load() != 0 {
		t.Fatal("probe ran despite shared hit")
	}
	if _, ok, _ := r.local.Get(context.Background(), testID); !ok {
		t.Fatal("local store not populated from shared")
	}
}

func TestSharedStoreFailureIsNotFatal(t *testing.T) {
	probe := &fakeProbe{name: "p", seconds: 12}
	r := NewResolver([]ports.DurationProbe{probe}, WithSharedStore(failingStore{}))
	got, err := r.GetDuration(context.Background(), testID)
	if err != nil || got != 12 {
		t.Fatalf("GetDuration = (%d, %v)", got, err)
	}
}

func TestMemoryStoreAppendOnly(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, testID, 10)
	_ = s.Put(ctx, testID, 20)
	got, ok, err := s.Get(ctx, testID)
	if err != nil || !ok || got != 10 {
		t.Fatalf("Get = (%d, %v, %v)", got, ok, err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.Put(ctx, domain.VideoID(string(rune('a'+i%26))), int64(i+1))
		}(i)
		go func() {
			defer wg.Done()
			_, _, _ = s.Get(ctx, testID)
		}()
	}
	wg.Wait()
	if s.Len() != 26 {
		t.Fatalf("Len = %d, want 26", s.Len())
	}
}

type fakeProvider struct {
	meta domain.VideoMetadata
	err  error
}

func (f fakeProvider) VideoInfo(context.Context, domain.VideoID) (domain.VideoMetadata, error) {
	return f.meta, f.err
}

func TestMetadataProbe(t *testing.T) {
	p := NewMetadataProbe(fakeProvider{meta: domain.VideoMetadata{DurationSeconds: 212}})
	got, err := p.ProbeDuration(context.Background(), testID)
	if err != nil || got != 212 {
		t.Fatalf("ProbeDuration = (%d, %v)", got, err)
	}
	p = NewMetadataProbe(fakeProvider{err: domain.ErrNotFound})
	if _, err := p.ProbeDuration(context.Background(), testID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreIntegration(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	prefix := "ytlinks-test:" + time.Now().Format("150405.000000") + ":"
	store := NewRedisStore(client, prefix)
	defer client.Del(ctx, prefix+string(testID))

	if _, ok, err := store.Get(ctx, testID); err != nil || ok {
		t.Fatalf("Get on empty = (%v, %v)", ok, err)
	}
	if err := store.Put(ctx, testID, 100); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, testID, 200); err != nil {
		t.Fatal(err)
	}
	got, ok, err := store.Get(ctx, testID)
	if err != nil || !ok || got != 100 {
		t.Fatalf("Get = (%d, %v, %v)", got, ok, err)
	}
}
