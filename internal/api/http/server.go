package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/relay"
	"github.com/o-sallam/ytlinks-backend/internal/usecase"
)

type DescribeVideoUseCase interface {
	Execute(ctx context.Context, id domain.VideoID) (usecase.VideoDetails, error)
}

type ListFormatsUseCase interface {
	Execute(ctx context.Context, id domain.VideoID) ([]domain.Format, error)
}

type SourceResolver interface {
	Resolve(ctx context.Context, id domain.VideoID, qualityCeiling int) (domain.MediaSourceDescriptor, error)
	Invalidate(id domain.VideoID, qualityCeiling int)
}

type DurationResolver interface {
	Peek(ctx context.Context, id domain.VideoID) (int64, bool)
	GetDuration(ctx context.Context, id domain.VideoID) (int64, error)
}

type StreamRelay interface {
	Stream(ctx context.Context, w http.ResponseWriter, req relay.Request) (relay.Result, error)
}

type SearchService interface {
	Search(ctx context.Context, request domain.SearchRequest) ([]domain.SearchResult, error)
}

type Server struct {
	describe       DescribeVideoUseCase
	formats        ListFormatsUseCase
	resolver       SourceResolver
	durations      DurationResolver
	relay          StreamRelay
	search         SearchService
	qualityCeiling int
	allowedOrigins []string
	rateRPS        float64
	rateBurst      int
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithDescribeVideo(uc DescribeVideoUseCase) ServerOption {
	return func(s *Server) {
		s.describe = uc
	}
}

func WithListFormats(uc ListFormatsUseCase) ServerOption {
	return func(s *Server) {
		s.formats = uc
	}
}

// WithStreaming wires the resolver, duration lookup and relay used by the
// stream endpoint.
func WithStreaming(resolver SourceResolver, durations DurationResolver, r StreamRelay) ServerOption {
	return func(s *Server) {
		s.resolver = resolver
		s.durations = durations
		s.relay = r
	}
}

func WithSearch(svc SearchService) ServerOption {
	return func(s *Server) {
		s.search = svc
	}
}

func WithQualityCeiling(height int) ServerOption {
	return func(s *Server) {
		if height > 0 {
			s.qualityCeiling = height
		}
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.rateRPS = rps
			s.rateBurst = burst
		}
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		qualityCeiling: domain.DefaultQualityCeiling,
		rateRPS:        50,
		rateBurst:      100,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/video/{videoId}", s.handleVideo)
	mux.HandleFunc("GET /api/video/{$}", s.handleMissingID)
	mux.HandleFunc("GET /api/stream/{videoId}", s.handleStream)
	mux.HandleFunc("GET /api/stream/{$}", s.handleMissingID)
	mux.HandleFunc("GET /api/formats/{videoId}", s.handleFormats)
	mux.HandleFunc("GET /api/formats/{$}", s.handleMissingID)
	mux.HandleFunc("GET /api/youtube_search", s.handleSearch)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "ytlinks-backend",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health" && !strings.HasPrefix(p, "/ws")
		}),
	)
	s.handler = recoveryMiddleware(s.logger,
		rateLimitMiddleware(s.rateRPS, s.rateBurst,
			metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Publish forwards a lifecycle event to websocket subscribers.
func (s *Server) Publish(event domain.Event) {
	if s.wsHub != nil {
		s.wsHub.Broadcast(string(event.Type), event)
	}
}

// Close disconnects websocket clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	select {
	case s.wsHub.register <- client:
	case <-s.wsHub.done:
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handleMissingID(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusBadRequest, "Invalid or missing videoId", "")
}
