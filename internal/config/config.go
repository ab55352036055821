package config

import (
	"os"
	"strconv"
)

type Config struct {
	APIPort  string
	LogLevel string

	ExtractionProvider string

	GeminiAPIURL string
	GeminiAPIKey string
	GeminiModel  string

	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string

	MaxFilesPerRequest       int
	MaxFileSizeBytes         int
	MaxConcurrentExtractions int
	RequestTimeoutSeconds    int

	ExtractionRateLimitRPS   float64
	ExtractionRateLimitBurst int

	RetryMaxAttempts        int
	RetryInitialBackoffMS   int
	RetryMaxBackoffMS       int
	BreakerEnabled          bool
	BreakerMinRequests      int
	BreakerFailureRatio     float64
	BreakerOpenTimeoutSec   int
	BreakerHalfOpenMaxCalls int
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		ExtractionProvider: mustEnv("EXTRACTION_PROVIDER", "gemini"),

		GeminiAPIURL: mustEnv("GEMINI_API_URL", "https://generativelanguage.googleapis.com"),
		GeminiAPIKey: mustEnv("GEMINI_API_KEY", ""),
		GeminiModel:  mustEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		OpenAIBaseURL: mustEnv("OPENAI_BASE_URL", ""),
		OpenAIAPIKey:  mustEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   mustEnv("OPENAI_MODEL", "gpt-4o-mini"),

		MaxFilesPerRequest:       mustEnvInt("MAX_FILES_PER_REQUEST", 10),
		MaxFileSizeBytes:         mustEnvInt("MAX_FILE_SIZE_BYTES", 16*1024*1024),
		MaxConcurrentExtractions: mustEnvInt("MAX_CONCURRENT_EXTRACTIONS", 4),
		RequestTimeoutSeconds:    mustEnvInt("REQUEST_TIMEOUT_SECONDS", 120),

		ExtractionRateLimitRPS:   mustEnvFloat("EXTRACTION_RATE_LIMIT_RPS", 2),
		ExtractionRateLimitBurst: mustEnvInt("EXTRACTION_RATE_LIMIT_BURST", 4),

		RetryMaxAttempts:        mustEnvInt("EXTRACTION_RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoffMS:   mustEnvInt("EXTRACTION_RETRY_INITIAL_BACKOFF_MS", 1000),
		RetryMaxBackoffMS:       mustEnvInt("EXTRACTION_RETRY_MAX_BACKOFF_MS", 4000),
		BreakerEnabled:          mustEnvBool("BREAKER_ENABLED", true),
		BreakerMinRequests:      mustEnvInt("BREAKER_MIN_REQUESTS", 10),
		BreakerFailureRatio:     mustEnvFloat("BREAKER_FAILURE_RATIO", 0.5),
		BreakerOpenTimeoutSec:   mustEnvInt("BREAKER_OPEN_TIMEOUT_SECONDS", 30),
		BreakerHalfOpenMaxCalls: mustEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 2),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
