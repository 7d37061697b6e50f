package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "github.com/o-sallam/ytlinks-backend/internal/api/http"
	"github.com/o-sallam/ytlinks-backend/internal/app"
	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/domain/ports"
	"github.com/o-sallam/ytlinks-backend/internal/metrics"
	"github.com/o-sallam/ytlinks-backend/internal/relay"
	mongorepo "github.com/o-sallam/ytlinks-backend/internal/repository/mongo"
	"github.com/o-sallam/ytlinks-backend/internal/search"
	"github.com/o-sallam/ytlinks-backend/internal/services/duration"
	"github.com/o-sallam/ytlinks-backend/internal/services/ffprobe"
	"github.com/o-sallam/ytlinks-backend/internal/services/localcache"
	"github.com/o-sallam/ytlinks-backend/internal/services/resolver"
	"github.com/o-sallam/ytlinks-backend/internal/services/watchpage"
	"github.com/o-sallam/ytlinks-backend/internal/services/ytdlp"
	"github.com/o-sallam/ytlinks-backend/internal/telemetry"
	"github.com/o-sallam/ytlinks-backend/internal/usecase"
)

const (
	serviceName    = "ytlinks-backend"
	metadataMaxAge = 6 * time.Hour
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), serviceName, telemetry.SettingsFromEnv())
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("cacheDir", cfg.CacheDir),
		slog.Int("qualityCeiling", cfg.QualityCeiling),
		slog.Int64("chunkBytes", cfg.ChunkSizeBytes),
		slog.Bool("browserProbe", cfg.FlareSolverrURL != ""),
		slog.Bool("redis", cfg.RedisURL != ""),
		slog.Bool("mongo", cfg.MongoURI != ""),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := &eventForwarder{}

	redisClient := connectRedis(rootCtx, cfg.RedisURL, logger)
	mongoClient, videoRepo := connectMongo(rootCtx, cfg, logger)

	upstreamClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	ytdlpClient := ytdlp.New(ytdlp.Config{
		Binary:          cfg.YtDlpPath,
		InfoTimeout:     cfg.ResolveTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
	})

	infoUC := &usecase.GetVideoInfo{Provider: ytdlpClient, MaxAge: metadataMaxAge, Logger: logger}
	if videoRepo != nil {
		infoUC.Repo = videoRepo
	}

	store, err := localcache.New(cfg.CacheDir, ytdlpClient,
		localcache.WithTimeout(cfg.DownloadTimeout),
		localcache.WithEvents(events),
		localcache.WithLogger(logger),
	)
	if err != nil {
		logger.Error("local cache init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Stored metadata carries no format URLs, so the direct strategy asks
	// yt-dlp for fresh ones.
	sourceResolver := resolver.New(
		[]ports.SourceStrategy{
			resolver.NewCachedStrategy(store),
			resolver.NewDirectStrategy(ytdlpClient),
			resolver.NewLocalStrategy(store),
		},
		resolver.WithStrategyTimeout(cfg.ResolveTimeout),
		resolver.WithStrategyTimeoutFor("local", cfg.DownloadTimeout),
		resolver.WithCacheTTL(cfg.SourceCacheTTL),
		resolver.WithLogger(logger),
	)

	probes := []ports.DurationProbe{ffprobe.New(cfg.FFProbePath, store)}
	if cfg.FlareSolverrURL != "" {
		probes = append(probes, watchpage.NewBrowserProbe(watchpage.BrowserConfig{
			BaseURL: cfg.FlareSolverrURL,
			Client:  upstreamClient,
			Logger:  logger,
		}))
	}
	probes = append(probes,
		duration.NewMetadataProbe(infoUC),
		watchpage.NewHTTPProbe(upstreamClient, cfg.UserAgent),
	)
	durationOpts := []duration.Option{
		duration.WithProbeTimeout(cfg.ProbeTimeout),
		duration.WithLogger(logger),
	}
	switch {
	case redisClient != nil:
		durationOpts = append(durationOpts, duration.WithSharedStore(duration.NewRedisStore(redisClient, "")))
	case videoRepo != nil:
		durationOpts = append(durationOpts, duration.WithSharedStore(videoRepo.DurationStore()))
	}
	durations := duration.NewResolver(probes, durationOpts...)

	searchOpts := []search.Option{
		search.WithCacheTTL(cfg.SearchCacheTTL),
		search.WithLogger(logger),
	}
	if redisClient != nil {
		searchOpts = append(searchOpts, search.WithCacheBackend(search.NewRedisCacheBackend(redisClient)))
	}
	searchSvc := search.NewService(search.NewYouTubeProvider(), searchOpts...)

	streamRelay := relay.New(
		relay.WithChunkSize(cfg.ChunkSizeBytes),
		relay.WithSource(domain.SourceRemoteDirect, relay.NewHTTPSource(relay.WithUserAgent(cfg.UserAgent))),
		relay.WithEvents(events),
		relay.WithLogger(logger),
	)

	handler := apihttp.NewServer(
		apihttp.WithLogger(logger),
		apihttp.WithDescribeVideo(usecase.DescribeVideo{Info: infoUC, Durations: durations}),
		apihttp.WithListFormats(usecase.ListFormats{Provider: infoUC}),
		apihttp.WithStreaming(sourceResolver, durations, streamRelay),
		apihttp.WithSearch(searchSvc),
		apihttp.WithQualityCeiling(cfg.QualityCeiling),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)
	events.target.Store(handler)

	go updateCacheMetrics(rootCtx, store)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", slog.String("error", err.Error()))
		}
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}

// eventForwarder lets components built before the HTTP server publish to
// its websocket hub.
type eventForwarder struct {
	target atomic.Pointer[apihttp.Server]
}

func (f *eventForwarder) Publish(event domain.Event) {
	if s := f.target.Load(); s != nil {
		s.Publish(event)
	}
}

func connectRedis(ctx context.Context, url string, logger *slog.Logger) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("redis url invalid, shared caches disabled", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed, shared caches disabled", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}

func connectMongo(ctx context.Context, cfg app.Config, logger *slog.Logger) (*mongo.Client, *mongorepo.VideoRepository) {
	if cfg.MongoURI == "" {
		return nil, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Warn("mongo connect failed, metadata persistence disabled", slog.String("error", err.Error()))
		return nil, nil
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		logger.Warn("mongo ping failed, metadata persistence disabled", slog.String("error", err.Error()))
		_ = client.Disconnect(context.Background())
		return nil, nil
	}

	repo := mongorepo.NewVideoRepository(client, cfg.MongoDatabase, cfg.MongoCollection)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
	}
	logger.Info("mongo connected", slog.String("database", cfg.MongoDatabase))
	return client, repo
}

func updateCacheMetrics(ctx context.Context, store *localcache.Store) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		count, size := store.Stats()
		metrics.LocalCacheSizeBytes.Set(float64(size))
		slog.Debug("local cache stats", slog.Int("files", count), slog.Int64("bytes", size))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	handlerOpts := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
