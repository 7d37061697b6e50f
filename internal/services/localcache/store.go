package localcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/domain/ports"
	"github.com/o-sallam/ytlinks-backend/internal/metrics"
)

const (
	fileExt        = ".mp4"
	defaultTimeout = 10 * time.Minute
)

// Store is the on-disk cache of fully materialized videos. A file at the
// deterministic path for an id is always complete: downloads land in a
// hidden temp file and are renamed into place only after success.
type Store struct {
	dir          string
	materializer ports.Materializer
	timeout      time.Duration
	events       ports.EventPublisher
	logger       *slog.Logger

	group singleflight.Group
}

type Option func(*Store)

func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithEvents(p ports.EventPublisher) Option {
	return func(s *Store) { s.events = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates the cache directory if needed and removes temp files left by a
// previous process.
func New(dir string, materializer ports.Materializer, opts ...Option) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("cache dir is required")
	}
	if materializer == nil {
		return nil, errors.New("materializer is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	s := &Store{
		dir:          abs,
		materializer: materializer,
		timeout:      defaultTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.removeStaleParts()
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

// PathFor returns the deterministic cache path for id.
func (s *Store) PathFor(id domain.VideoID) string {
	return filepath.Join(s.dir, string(id)+fileExt)
}

// Lookup reports the path of an existing local copy without downloading.
func (s *Store) Lookup(id domain.VideoID) (string, bool) {
	path := s.PathFor(id)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return "", false
	}
	return path, true
}

// EnsureMaterialized returns the local copy of id, downloading it first when
// absent. Concurrent callers for the same id share one download. A caller
// that gives up does not cancel the download for the others.
func (s *Store) EnsureMaterialized(ctx context.Context, id domain.VideoID, qualityCeiling int) (string, error) {
	if path, ok := s.Lookup(id); ok {
		metrics.LocalCacheHitsTotal.Inc()
		return path, nil
	}

	ch := s.group.DoChan(string(id), func() (interface{}, error) {
		if path, ok := s.Lookup(id); ok {
			return path, nil
		}
		dlCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.materialize(dlCtx, id, qualityCeiling)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Store) materialize(ctx context.Context, id domain.VideoID, qualityCeiling int) (string, error) {
	started := time.Now()
	s.publish(domain.Event{Type: domain.EventMaterializeStart, VideoID: id})

	tmp, err := os.CreateTemp(s.dir, "."+string(id)+"-*.part")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", domain.ErrDownloadFailed, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	// The downloader writes the file itself and must not find one in place.
	_ = os.Remove(tmpPath)

	err = s.materializer.Download(ctx, id, qualityCeiling, tmpPath)
	if err == nil {
		var info fs.FileInfo
		info, err = os.Stat(tmpPath)
		if err == nil && info.Size() == 0 {
			err = errors.New("empty download")
		}
	}
	if err == nil {
		err = os.Rename(tmpPath, s.PathFor(id))
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		metrics.MaterializationsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("materialization failed",
			slog.String("videoId", string(id)),
			slog.Duration("elapsed", time.Since(started)),
			slog.String("error", err.Error()),
		)
		s.publish(domain.Event{Type: domain.EventMaterializeFinish, VideoID: id, Outcome: "failed", Error: err.Error()})
		if errors.Is(err, domain.ErrDownloadFailed) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}

	metrics.MaterializationsTotal.WithLabelValues("success").Inc()
	metrics.MaterializeDuration.Observe(time.Since(started).Seconds())
	s.logger.Info("video materialized",
		slog.String("videoId", string(id)),
		slog.Duration("elapsed", time.Since(started)),
	)
	s.publish(domain.Event{Type: domain.EventMaterializeFinish, VideoID: id, Outcome: "completed"})
	return s.PathFor(id), nil
}

// Stats returns the number of cached videos and their total size in bytes.
func (s *Store) Stats() (count int, size int64) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		count++
		size += info.Size()
	}
	return count, size
}

func (s *Store) removeStaleParts() {
	matches, err := filepath.Glob(filepath.Join(s.dir, ".*.part"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			s.logger.Debug("removed stale partial download", slog.String("path", m))
		}
	}
}

func (s *Store) publish(event domain.Event) {
	if s.events == nil {
		return
	}
	event.At = time.Now().UTC()
	s.events.Publish(event)
}
