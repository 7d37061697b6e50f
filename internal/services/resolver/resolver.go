package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/domain/ports"
	"github.com/o-sallam/ytlinks-backend/internal/metrics"
	"github.com/o-sallam/ytlinks-backend/internal/telemetry"
)

const defaultStrategyTimeout = 20 * time.Second

// ErrNotApplicable marks a strategy that had nothing to offer for the video.
// It does not count against a platform verdict.
var ErrNotApplicable = errors.New("strategy not applicable")

// Resolver tries its strategies in order until one produces a source. A
// failing strategy never aborts the chain.
type Resolver struct {
	strategies []ports.SourceStrategy
	timeout    time.Duration
	timeouts   map[string]time.Duration
	cacheTTL   time.Duration
	logger     *slog.Logger
	now        func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cachedSource
}

type cachedSource struct {
	desc    domain.MediaSourceDescriptor
	expires time.Time
}

type Option func(*Resolver)

// WithStrategyTimeout bounds each strategy attempt.
func WithStrategyTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithStrategyTimeoutFor overrides the attempt bound for the named strategy.
func WithStrategyTimeoutFor(name string, d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeouts[name] = d
		}
	}
}

// WithCacheTTL reuses a resolved source for d. Zero disables reuse.
func WithCacheTTL(d time.Duration) Option {
	return func(r *Resolver) { r.cacheTTL = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func New(strategies []ports.SourceStrategy, opts ...Option) *Resolver {
	r := &Resolver{
		strategies: append([]ports.SourceStrategy(nil), strategies...),
		timeout:    defaultStrategyTimeout,
		timeouts:   make(map[string]time.Duration),
		logger:     slog.Default(),
		now:        time.Now,
		cache:      make(map[string]cachedSource),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, id domain.VideoID, qualityCeiling int) (domain.MediaSourceDescriptor, error) {
	if qualityCeiling <= 0 {
		qualityCeiling = domain.DefaultQualityCeiling
	}
	key := string(id) + "@" + strconv.Itoa(qualityCeiling)
	if desc, ok := r.cached(key); ok {
		return desc, nil
	}

	ch := r.group.DoChan(key, func() (interface{}, error) {
		desc, err := r.resolveChain(context.WithoutCancel(ctx), id, qualityCeiling)
		if err != nil {
			return nil, err
		}
		r.store(key, desc)
		return desc, nil
	})
	select {
	case <-ctx.Done():
		return domain.MediaSourceDescriptor{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.MediaSourceDescriptor{}, res.Err
		}
		return res.Val.(domain.MediaSourceDescriptor), nil
	}
}

// Invalidate drops a reused source, typically after its URL stopped working.
func (r *Resolver) Invalidate(id domain.VideoID, qualityCeiling int) {
	if qualityCeiling <= 0 {
		qualityCeiling = domain.DefaultQualityCeiling
	}
	r.mu.Lock()
	delete(r.cache, string(id)+"@"+strconv.Itoa(qualityCeiling))
	r.mu.Unlock()
}

func (r *Resolver) resolveChain(ctx context.Context, id domain.VideoID, qualityCeiling int) (domain.MediaSourceDescriptor, error) {
	if len(r.strategies) == 0 {
		return domain.MediaSourceDescriptor{}, fmt.Errorf("%w: no strategies configured", domain.ErrResolutionFailed)
	}
	failures := make([]error, 0, len(r.strategies))
	for _, strategy := range r.strategies {
		desc, err := r.attempt(ctx, strategy, id, qualityCeiling)
		if err == nil {
			return desc, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", strategy.Name(), err))
	}
	return domain.MediaSourceDescriptor{}, combineFailures(failures)
}

func (r *Resolver) attempt(ctx context.Context, strategy ports.SourceStrategy, id domain.VideoID, qualityCeiling int) (domain.MediaSourceDescriptor, error) {
	name := strategy.Name()
	ctx, span := telemetry.Tracer().Start(ctx, "resolver."+name)
	defer span.End()
	span.SetAttributes(
		attribute.String("video.id", string(id)),
		attribute.Int("quality.ceiling", qualityCeiling),
	)

	timeout := r.timeout
	if d, ok := r.timeouts[name]; ok {
		timeout = d
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	desc, err := strategy.Resolve(attemptCtx, id, qualityCeiling)
	metrics.ResolveDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
	if err == nil && desc.Locator == "" {
		err = fmt.Errorf("%w: empty locator", domain.ErrResolutionFailed)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s timed out after %s", domain.ErrResolutionFailed, name, timeout)
		}
		result := "error"
		if errors.Is(err, ErrNotApplicable) {
			result = "skipped"
		}
		metrics.ResolveAttemptsTotal.WithLabelValues(name, result).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Debug("resolution strategy failed",
			slog.String("strategy", name),
			slog.String("videoId", string(id)),
			slog.String("error", err.Error()),
		)
		return domain.MediaSourceDescriptor{}, err
	}

	if desc.Strategy == "" {
		desc.Strategy = name
	}
	metrics.ResolveAttemptsTotal.WithLabelValues(name, "success").Inc()
	span.SetAttributes(attribute.String("source.kind", string(desc.Kind)))
	r.logger.Debug("source resolved",
		slog.String("strategy", name),
		slog.String("videoId", string(id)),
		slog.String("kind", string(desc.Kind)),
		slog.Int64("size", desc.TotalSize),
	)
	return desc, nil
}

// combineFailures reports a platform verdict (not found, forbidden) only when
// every strategy that applied agreed on one; otherwise the resolution failed.
func combineFailures(failures []error) error {
	joined := errors.Join(failures...)
	verdict := error(nil)
	for _, err := range failures {
		switch {
		case errors.Is(err, ErrNotApplicable):
			continue
		case errors.Is(err, domain.ErrForbidden):
			if verdict == nil || verdict == domain.ErrNotFound {
				verdict = domain.ErrForbidden
			}
		case errors.Is(err, domain.ErrNotFound):
			if verdict == nil {
				verdict = domain.ErrNotFound
			}
		default:
			return fmt.Errorf("%w: %v", domain.ErrResolutionFailed, joined)
		}
	}
	if verdict == nil {
		return fmt.Errorf("%w: %v", domain.ErrResolutionFailed, joined)
	}
	return fmt.Errorf("%w: %v", verdict, joined)
}

func (r *Resolver) cached(key string) (domain.MediaSourceDescriptor, bool) {
	if r.cacheTTL <= 0 {
		return domain.MediaSourceDescriptor{}, false
	}
	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if !ok || r.now().After(entry.expires) {
		return domain.MediaSourceDescriptor{}, false
	}
	return entry.desc, true
}

func (r *Resolver) store(key string, desc domain.MediaSourceDescriptor) {
	if r.cacheTTL <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for k, entry := range r.cache {
		if now.After(entry.expires) {
			delete(r.cache, k)
		}
	}
	r.cache[key] = cachedSource{desc: desc, expires: now.Add(r.cacheTTL)}
}
