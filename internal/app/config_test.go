package app

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

var configEnvVars = []string{
	"HTTP_ADDR", "PORT", "LOG_LEVEL", "LOG_FORMAT",
	"QUALITY_CEILING", "STREAM_CHUNK_BYTES", "CACHE_DIR",
	"RESOLVE_TIMEOUT_SECONDS", "PROBE_TIMEOUT_SECONDS", "DOWNLOAD_TIMEOUT_SECONDS", "SOURCE_CACHE_TTL_SECONDS",
	"YTDLP_PATH", "FFPROBE_PATH", "FLARESOLVERR_URL", "REDIS_URL",
	"MONGO_URI", "MONGO_DB", "MONGO_COLLECTION", "CORS_ALLOWED_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "SEARCH_CACHE_TTL_MINUTES", "USER_AGENT",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPAddr", cfg.HTTPAddr, ":5000"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "text"},
		{"QualityCeiling", cfg.QualityCeiling, 720},
		{"ChunkSizeBytes", cfg.ChunkSizeBytes, int64(1 << 20)},
		{"CacheDir", cfg.CacheDir, "data/cache"},
		{"ResolveTimeout", cfg.ResolveTimeout, 20 * time.Second},
		{"ProbeTimeout", cfg.ProbeTimeout, 20 * time.Second},
		{"DownloadTimeout", cfg.DownloadTimeout, 600 * time.Second},
		{"SourceCacheTTL", cfg.SourceCacheTTL, 30 * time.Minute},
		{"YtDlpPath", cfg.YtDlpPath, "yt-dlp"},
		{"FFProbePath", cfg.FFProbePath, "ffprobe"},
		{"FlareSolverrURL", cfg.FlareSolverrURL, ""},
		{"RedisURL", cfg.RedisURL, ""},
		{"MongoURI", cfg.MongoURI, ""},
		{"MongoDatabase", cfg.MongoDatabase, "ytlinks"},
		{"MongoCollection", cfg.MongoCollection, "videos"},
		{"RateLimitRPS", cfg.RateLimitRPS, float64(50)},
		{"RateLimitBurst", cfg.RateLimitBurst, 100},
		{"SearchCacheTTL", cfg.SearchCacheTTL, 30 * time.Minute},
		{"UserAgent", cfg.UserAgent, defaultUserAgent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins: got %v, want nil/empty", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearConfigEnv(t)
	setEnvs(t, map[string]string{
		"HTTP_ADDR":                ":9090",
		"LOG_LEVEL":                "DEBUG",
		"LOG_FORMAT":               "JSON",
		"QUALITY_CEILING":          "480",
		"STREAM_CHUNK_BYTES":       "524288",
		"CACHE_DIR":                "/var/cache/relay",
		"RESOLVE_TIMEOUT_SECONDS":  "15",
		"PROBE_TIMEOUT_SECONDS":    "30",
		"DOWNLOAD_TIMEOUT_SECONDS": "120",
		"FLARESOLVERR_URL":         "flaresolverr:8191",
		"CORS_ALLOWED_ORIGINS":     "http://localhost:3000, https://ytlinks.vercel.app,,",
		"RATE_LIMIT_RPS":           "2.5",
	})

	cfg := LoadConfig()

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("log settings = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.QualityCeiling != 480 {
		t.Errorf("QualityCeiling = %d", cfg.QualityCeiling)
	}
	if cfg.ChunkSizeBytes != 524288 {
		t.Errorf("ChunkSizeBytes = %d", cfg.ChunkSizeBytes)
	}
	if cfg.CacheDir != "/var/cache/relay" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.ResolveTimeout != 15*time.Second || cfg.ProbeTimeout != 30*time.Second || cfg.DownloadTimeout != 2*time.Minute {
		t.Errorf("timeouts = %v/%v/%v", cfg.ResolveTimeout, cfg.ProbeTimeout, cfg.DownloadTimeout)
	}
	if cfg.FlareSolverrURL != "http://flaresolverr:8191/" {
		t.Errorf("FlareSolverrURL = %q", cfg.FlareSolverrURL)
	}
	wantOrigins := []string{"http://localhost:3000", "https://ytlinks.vercel.app"}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, wantOrigins) {
		t.Errorf("CORSAllowedOrigins = %v, want %v", cfg.CORSAllowedOrigins, wantOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Errorf("RateLimitRPS = %v", cfg.RateLimitRPS)
	}
}

func TestLoadConfigPortFallback(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "7000")

	if got := LoadConfig().HTTPAddr; got != ":7000" {
		t.Fatalf("HTTPAddr = %q, want :7000", got)
	}
}

func TestLoadConfigInvalidNumbersFallBack(t *testing.T) {
	clearConfigEnv(t)
	setEnvs(t, map[string]string{
		"QUALITY_CEILING":    "-1",
		"STREAM_CHUNK_BYTES": "lots",
		"RATE_LIMIT_RPS":     "0",
	})

	cfg := LoadConfig()
	if cfg.QualityCeiling != 720 {
		t.Errorf("QualityCeiling = %d, want 720", cfg.QualityCeiling)
	}
	if cfg.ChunkSizeBytes != 1<<20 {
		t.Errorf("ChunkSizeBytes = %d, want %d", cfg.ChunkSizeBytes, 1<<20)
	}
	if cfg.RateLimitRPS != 50 {
		t.Errorf("RateLimitRPS = %v, want 50", cfg.RateLimitRPS)
	}
}
