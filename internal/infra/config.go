package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	HistoryDriverSQLite   = "sqlite"
	HistoryDriverPostgres = "postgres"
	HistoryDriverMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	DefaultLocale     string
	HistoryDriver     string
	HistorySQLitePath string
	DatabaseURL       string
	ImageHistoryMax   int
	VideoHistoryMax   int
	StoragePath       string
	StorageBaseURL    string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiVideoModel  string
	GeminiBaseURL     string
	GeminiTimeout     time.Duration
	GeminiSynthetic   bool
	AuthInteractive   bool
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              port,
		DefaultLocale:     getEnv("DEFAULT_LOCALE", "en"),
		HistoryDriver:     strings.ToLower(getEnv("HISTORY_DRIVER", HistoryDriverSQLite)),
		HistorySQLitePath: getEnv("HISTORY_SQLITE_PATH", "./data/history.db"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ImageHistoryMax:   getEnvInt("HISTORY_IMAGE_MAX", 100),
		VideoHistoryMax:   getEnvInt("HISTORY_VIDEO_MAX", 100),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:    getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		GeminiAPIKey:      strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiVideoModel:  getEnv("GEMINI_VIDEO_MODEL", "veo-3.1-fast-generate-preview"),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTimeout:     time.Second * time.Duration(getEnvInt("GEMINI_TIMEOUT_SECONDS", 300)),
		GeminiSynthetic:   getEnvBool("GEMINI_SYNTHETIC", false),
		AuthInteractive:   getEnvBool("AUTH_INTERACTIVE", true),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	switch cfg.HistoryDriver {
	case HistoryDriverSQLite, HistoryDriverMemory:
	case HistoryDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres history driver")
		}
	default:
		return nil, fmt.Errorf("unsupported HISTORY_DRIVER %q", cfg.HistoryDriver)
	}

	if cfg.ImageHistoryMax <= 0 || cfg.VideoHistoryMax <= 0 {
		return nil, fmt.Errorf("history capacity must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
