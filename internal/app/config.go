package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr           string
	LogLevel           string
	LogFormat          string
	QualityCeiling     int
	ChunkSizeBytes     int64
	CacheDir           string
	ResolveTimeout     time.Duration
	ProbeTimeout       time.Duration
	DownloadTimeout    time.Duration
	SourceCacheTTL     time.Duration
	YtDlpPath          string
	FFProbePath        string
	FlareSolverrURL    string
	RedisURL           string
	MongoURI           string
	MongoDatabase      string
	MongoCollection    string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	SearchCacheTTL     time.Duration
	UserAgent          string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// LoadConfig reads configuration from the environment. Values from a .env file
// in the working directory are applied first without overriding variables
// that are already set.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:           httpAddr(),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		QualityCeiling:     int(getEnvInt64("QUALITY_CEILING", 720)),
		ChunkSizeBytes:     getEnvInt64("STREAM_CHUNK_BYTES", 1<<20),
		CacheDir:           getEnv("CACHE_DIR", "data/cache"),
		ResolveTimeout:     getEnvSeconds("RESOLVE_TIMEOUT_SECONDS", 20),
		ProbeTimeout:       getEnvSeconds("PROBE_TIMEOUT_SECONDS", 20),
		DownloadTimeout:    getEnvSeconds("DOWNLOAD_TIMEOUT_SECONDS", 600),
		SourceCacheTTL:     getEnvSeconds("SOURCE_CACHE_TTL_SECONDS", 1800),
		YtDlpPath:          getEnv("YTDLP_PATH", "yt-dlp"),
		FFProbePath:        getEnv("FFPROBE_PATH", "ffprobe"),
		FlareSolverrURL:    normalizeServiceURL(getEnv("FLARESOLVERR_URL", "")),
		RedisURL:           getEnv("REDIS_URL", ""),
		MongoURI:           getEnv("MONGO_URI", ""),
		MongoDatabase:      getEnv("MONGO_DB", "ytlinks"),
		MongoCollection:    getEnv("MONGO_COLLECTION", "videos"),
		CORSAllowedOrigins: parseList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst:     int(getEnvInt64("RATE_LIMIT_BURST", 100)),
		SearchCacheTTL:     time.Duration(getEnvInt64("SEARCH_CACHE_TTL_MINUTES", 30)) * time.Minute,
		UserAgent:          getEnv("USER_AGENT", defaultUserAgent),
	}
}

func httpAddr() string {
	if addr := getEnv("HTTP_ADDR", ""); addr != "" {
		return addr
	}
	if port := getEnv("PORT", ""); port != "" {
		return ":" + port
	}
	return ":5000"
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvSeconds(key string, fallback int64) time.Duration {
	return time.Duration(getEnvInt64(key, fallback)) * time.Second
}

func parseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func normalizeServiceURL(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		value = "http://" + value
	}
	if !strings.HasSuffix(value, "/") {
		value += "/"
	}
	return value
}
