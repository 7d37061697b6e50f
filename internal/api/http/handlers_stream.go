package apihttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/relay"
)

const (
	durationHeader      = "X-Video-Duration"
	durationWarmTimeout = 30 * time.Second
)

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, raw, err := parseVideoID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing videoId", raw)
		return
	}
	ceiling, err := parseQuality(r.URL.Query().Get("quality"), s.qualityCeiling)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quality parameter", err.Error())
		return
	}

	if r.Method == http.MethodHead {
		s.handleStreamProbe(w, r, id)
		return
	}

	window, err := relay.ParseRange(r.Header.Get("Range"))
	if err != nil {
		writeDomainError(w, err, "Failed to stream video")
		return
	}
	if s.resolver == nil || s.relay == nil {
		writeError(w, http.StatusServiceUnavailable, "Streaming not available", "")
		return
	}

	logger := s.logger.With(slog.String("videoId", string(id)), slog.Int("quality", ceiling))
	ctx := r.Context()

	extra := http.Header{}
	if seconds, ok := s.peekDuration(ctx, id); ok {
		extra.Set(durationHeader, strconv.FormatInt(seconds, 10))
	} else if window.Start == 0 {
		s.warmDuration(ctx, id)
	}

	for attempt := 0; ; attempt++ {
		desc, err := s.resolver.Resolve(ctx, id, ceiling)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("client went away during source resolution", slog.String("error", err.Error()))
				return
			}
			logger.Warn("source resolution failed", slog.String("error", err.Error()))
			writeDomainError(w, err, "Failed to stream video")
			return
		}

		result, err := s.relay.Stream(ctx, w, relay.Request{Source: desc, Range: window, Header: extra})
		if err == nil {
			return
		}
		if result.Committed {
			if errors.Is(err, relay.ErrClientGone) {
				return
			}
			// Headers are out; only a torn connection tells the client the
			// body is short.
			panic(http.ErrAbortHandler)
		}
		if ctx.Err() != nil {
			logger.Debug("client went away before streaming started", slog.String("error", err.Error()))
			return
		}
		if errors.Is(err, relay.ErrSourceExpired) && attempt == 0 {
			logger.Info("source locator expired, resolving again", slog.String("strategy", desc.Strategy))
			s.resolver.Invalidate(id, ceiling)
			continue
		}
		if errors.Is(err, relay.ErrSourceExpired) || errors.Is(err, relay.ErrSourceUnavailable) {
			s.resolver.Invalidate(id, ceiling)
		}
		if !errors.Is(err, relay.ErrRangeNotSatisfiable) {
			logger.Warn("stream failed before commit",
				slog.String("strategy", desc.Strategy),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err, "Failed to stream video")
		return
	}
}

// handleStreamProbe answers HEAD with duration headers only.
func (s *Server) handleStreamProbe(w http.ResponseWriter, r *http.Request, id domain.VideoID) {
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "no-cache")
	if s.durations != nil {
		seconds, err := s.durations.GetDuration(r.Context(), id)
		if err == nil {
			w.Header().Set(durationHeader, strconv.FormatInt(seconds, 10))
		} else {
			s.logger.Debug("duration probe failed",
				slog.String("videoId", string(id)),
				slog.String("error", err.Error()),
			)
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) peekDuration(ctx context.Context, id domain.VideoID) (int64, bool) {
	if s.durations == nil {
		return 0, false
	}
	return s.durations.Peek(ctx, id)
}

// warmDuration starts a detached lookup so later chunks carry the header.
func (s *Server) warmDuration(ctx context.Context, id domain.VideoID) {
	if s.durations == nil {
		return
	}
	go func() {
		warmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), durationWarmTimeout)
		defer cancel()
		if _, err := s.durations.GetDuration(warmCtx, id); err != nil {
			s.logger.Debug("duration warm-up failed",
				slog.String("videoId", string(id)),
				slog.String("error", err.Error()),
			)
		}
	}()
}
