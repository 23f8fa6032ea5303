package app

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr      string
	RedisURL      string
	LogLevel      string
	LogFormat     string
	PublicBaseURL string

	DownloadDir string
	ScratchDir  string
	YTDLPPath   string

	WorkerCount    int
	JobTTLSeconds  int64
	FileTTLMinutes int64

	RateLimitEnabled         bool
	RateLimitVideoOnlyDaily  int64
	RateLimitAudioOnlyDaily  int64
	RateLimitVideoAudioDaily int64
	RateLimitTotalJobsDaily  int64
	RateLimitBatchMinute     int64
	// RateLimitEndpointHourly maps a request path to its hourly cap.
	RateLimitEndpointHourly map[string]int64
	RateLimitWhitelist      []string

	AllowedOrigins []string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DownloadDir: getEnv("DOWNLOAD_DIR", "downloads"),
		ScratchDir:  getEnv("SCRATCH_DIR", "scratch"),
		YTDLPPath:   getEnv("YTDLP_PATH", "yt-dlp"),

		WorkerCount:    int(getEnvInt64("WORKER_COUNT", 2)),
		JobTTLSeconds:  getEnvInt64("JOB_TTL_SECONDS", 3600),
		FileTTLMinutes: getEnvInt64("FILE_TTL_MINUTES", 10),

		RateLimitEnabled:         getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitVideoOnlyDaily:  getEnvInt64("RATE_LIMIT_VIDEO_ONLY_DAILY", 20),
		RateLimitAudioOnlyDaily:  getEnvInt64("RATE_LIMIT_AUDIO_ONLY_DAILY", 20),
		RateLimitVideoAudioDaily: getEnvInt64("RATE_LIMIT_VIDEO_AUDIO_DAILY", 20),
		RateLimitTotalJobsDaily:  getEnvInt64("RATE_LIMIT_TOTAL_JOBS_DAILY", 50),
		RateLimitBatchMinute:     getEnvInt64("RATE_LIMIT_BATCH_MINUTE", 5),
		RateLimitEndpointHourly:  parseEndpointLimits(os.Getenv("RATE_LIMIT_ENDPOINT_HOURLY")),
		RateLimitWhitelist:       parseCommaList(os.Getenv("RATE_LIMIT_WHITELIST")),

		AllowedOrigins: parseCommaList(os.Getenv("ALLOWED_ORIGINS")),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// parseEndpointLimits parses "path:limit,path:limit" pairs. Entries with
// a malformed or non-positive limit are dropped.
func parseEndpointLimits(value string) map[string]int64 {
	out := make(map[string]int64)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx := strings.LastIndex(pair, ":")
		if idx <= 0 || idx == len(pair)-1 {
			continue
		}
		path := strings.TrimSpace(pair[:idx])
		limit, err := strconv.ParseInt(strings.TrimSpace(pair[idx+1:]), 10, 64)
		if err != nil || limit <= 0 {
			continue
		}
		out[path] = limit
	}
	return out
}

func parseCommaList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
