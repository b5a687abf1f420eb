package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g. SHEETSTORE_PORT.
const Prefix = "SHEETSTORE"

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Storage. An empty DatabaseURL selects the in-memory store.
	DatabaseURL       string        `envconfig:"DATABASE_URL"`
	QueryTimeout      time.Duration `envconfig:"QUERY_TIMEOUT" default:"5s"`
	DBConnectAttempts int           `envconfig:"DB_CONNECT_ATTEMPTS" default:"5"`
	DBConnectBackoff  time.Duration `envconfig:"DB_CONNECT_BACKOFF" default:"500ms"`

	// Export providers
	ExportTimeout       time.Duration `envconfig:"EXPORT_TIMEOUT" default:"30s"`
	BreakerMaxFailures  int           `envconfig:"BREAKER_MAX_FAILURES" default:"5"`
	BreakerResetTimeout time.Duration `envconfig:"BREAKER_RESET_TIMEOUT" default:"30s"`
	BlobDir             string        `envconfig:"BLOB_DIR" default:"./artifacts"`
	BlobBaseURL         string        `envconfig:"BLOB_BASE_URL" default:"http://localhost:8080/artifacts"`
	BlobUploadURL       string        `envconfig:"BLOB_UPLOAD_URL"`
	GoogleClientID      string        `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret  string        `envconfig:"GOOGLE_CLIENT_SECRET"`

	// Webhook notifications
	WebhookEndpoints    []string      `envconfig:"WEBHOOK_ENDPOINTS"`
	WebhookRetryMax     int           `envconfig:"WEBHOOK_RETRY_MAX" default:"3"`
	WebhookRetryBackoff time.Duration `envconfig:"WEBHOOK_RETRY_BACKOFF" default:"100ms"`
	WebhookTimeout      time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"5s"`

	InsertConcurrency int `envconfig:"INSERT_CONCURRENCY" default:"8"`
}

// Load reads the optional .env file at envFile and then the environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.New("port must not be empty")
	case c.QueryTimeout <= 0:
		return errors.New("query timeout must be positive")
	case c.ExportTimeout <= 0:
		return errors.New("export timeout must be positive")
	case c.DBConnectAttempts < 1:
		return errors.New("db connect attempts must be at least 1")
	case c.BreakerMaxFailures < 1:
		return errors.New("breaker max failures must be at least 1")
	case c.InsertConcurrency < 1:
		return errors.New("insert concurrency must be at least 1")
	case c.WebhookRetryMax < 0:
		return errors.New("webhook retry max must not be negative")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// UseMemoryStore reports whether no database is configured.
func (c Config) UseMemoryStore() bool {
	return c.DatabaseURL == ""
}
