package duration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/domain/ports"
	"github.com/o-sallam/ytlinks-backend/internal/metrics"
)

const defaultProbeTimeout = 20 * time.Second

// Resolver answers duration lookups cache-first. Probes run in order on a
// miss; only successful results are stored, so a failed lookup is retried
// by the next caller.
type Resolver struct {
	local   ports.DurationStore
	shared  ports.DurationStore
	probes  []ports.DurationProbe
	timeout time.Duration
	logger  *slog.Logger

	group singleflight.Group
}

type Option func(*Resolver)

// WithSharedStore adds a second-level store, such as Redis, consulted after
// the in-process cache.
func WithSharedStore(store ports.DurationStore) Option {
	return func(r *Resolver) { r.shared = store }
}

func WithProbeTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewResolver(probes []ports.DurationProbe, opts ...Option) *Resolver {
	r := &Resolver{
		local:   NewMemoryStore(),
		probes:  append([]ports.DurationProbe(nil), probes...),
		timeout: defaultProbeTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Peek returns a cached duration without probing.
func (r *Resolver) Peek(ctx context.Context, id domain.VideoID) (int64, bool) {
	if seconds, ok, err := r.local.Get(ctx, id); err == nil && ok {
		return seconds, true
	}
	if r.shared == nil {
		return 0, false
	}
	seconds, ok, err := r.shared.Get(ctx, id)
	if err != nil {
		r.logger.Debug("shared duration store read failed", slog.String("videoId", string(id)), slog.String("error", err.Error()))
		return 0, false
	}
	if ok {
		_ = r.local.Put(ctx, id, seconds)
	}
	return seconds, ok
}

// GetDuration returns the video's duration in seconds.
func (r *Resolver) GetDuration(ctx context.Context, id domain.VideoID) (int64, error) {
	if seconds, ok := r.Peek(ctx, id); ok {
		metrics.DurationCacheHitsTotal.Inc()
		return seconds, nil
	}

	ch := r.group.DoChan(string(id), func() (interface{}, error) {
		return r.probe(context.WithoutCancel(ctx), id)
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int64), nil
	}
}

// Remember stores a duration learned elsewhere, for example from metadata.
func (r *Resolver) Remember(ctx context.Context, id domain.VideoID, seconds int64) {
	if seconds <= 0 {
		return
	}
	r.store(ctx, id, seconds)
}

func (r *Resolver) probe(ctx context.Context, id domain.VideoID) (int64, error) {
	if len(r.probes) == 0 {
		return 0, fmt.Errorf("%w: no probes configured", domain.ErrProbeFailed)
	}
	failures := make([]error, 0, len(r.probes))
	for _, p := range r.probes {
		seconds, err := r.runProbe(ctx, p, id)
		if err == nil {
			r.store(ctx, id, seconds)
			return seconds, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", p.Name(), err))
	}
	err := errors.Join(failures...)
	r.logger.Warn("duration probe failed", slog.String("videoId", string(id)), slog.String("error", err.Error()))
	return 0, fmt.Errorf("%w: %v", domain.ErrProbeFailed, err)
}

func (r *Resolver) runProbe(ctx context.Context, p ports.DurationProbe, id domain.VideoID) (int64, error) {
	probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	seconds, err := p.ProbeDuration(probeCtx, id)
	if err == nil && seconds <= 0 {
		err = errors.New("non-positive duration")
	}
	if err != nil {
		metrics.DurationProbesTotal.WithLabelValues(p.Name(), "error").Inc()
		return 0, err
	}
	metrics.DurationProbesTotal.WithLabelValues(p.Name(), "success").Inc()
	return seconds, nil
}

func (r *Resolver) store(ctx context.Context, id domain.VideoID, seconds int64) {
	_ = r.local.Put(ctx, id, seconds)
	if r.shared == nil {
		return
	}
	if err := r.shared.Put(ctx, id, seconds); err != nil {
		r.logger.Debug("shared duration store write failed", slog.String("videoId", string(id)), slog.String("error", err.Error()))
	}
}
