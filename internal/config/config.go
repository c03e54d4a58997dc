package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
	Twitter TwitterConfig
	Store   StoreConfig
	Auth    AuthConfig
	OpenAI  OpenAIConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// TwitterConfig holds the provider credential and polling cadence.
type TwitterConfig struct {
	BearerToken  string
	PollInterval time.Duration
}

// StoreConfig selects how the watchlist is persisted. DatabaseURL takes
// precedence; otherwise WatchlistPath names a YAML file.
type StoreConfig struct {
	DatabaseURL   string
	WatchlistPath string
}

// AuthConfig enables admin authentication when AdminPasswordHash is set.
type AuthConfig struct {
	JWTSecret         string
	AdminPasswordHash string
	TokenDuration     time.Duration
}

// OpenAIConfig enables post summaries on new_post events when APIKey is set.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultPollInterval  = 60 * time.Second
	defaultWatchlistPath = "watchlist.yaml"
	defaultTokenDuration = 24 * time.Hour
	defaultOpenAIModel   = "gpt-4o-mini"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Twitter: TwitterConfig{
			BearerToken:  os.Getenv("TWITTER_BEARER_TOKEN"),
			PollInterval: defaultPollInterval,
		},
		Store: StoreConfig{
			DatabaseURL:   os.Getenv("DATABASE_URL"),
			WatchlistPath: getEnv("WATCHLIST_PATH", defaultWatchlistPath),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("ADMIN_JWT_SECRET", ""),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			TokenDuration:     defaultTokenDuration,
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getEnv("OPENAI_MODEL", defaultOpenAIModel),
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("POLL_INTERVAL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid POLL_INTERVAL_SECONDS: %w", err)
		}
		if d == 0 {
			return Config{}, fmt.Errorf("invalid POLL_INTERVAL_SECONDS: must be positive")
		}
		cfg.Twitter.PollInterval = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if cfg.Auth.AdminPasswordHash != "" && cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("ADMIN_JWT_SECRET is required when ADMIN_PASSWORD_HASH is set")
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
