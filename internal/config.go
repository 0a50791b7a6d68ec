package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	LogLevel string
	Port     uint16

	// DatabaseUrl selects PostgreSQL storage. Empty keeps orders in memory.
	DatabaseUrl string

	Session SessionConfig
	NATS    NATSConfig
	Worker  WorkerConfig
	Mail    MailConfig
	Sentry  SentryConfig
}

// SessionConfig controls the shopper session cookie and in-memory store.
type SessionConfig struct {
	CookieName   string
	CookieSecure bool
	TTL          time.Duration
	// SweepInterval is how often idle sessions are evicted.
	SweepInterval time.Duration
}

// NATSConfig configures order placed events. An empty URL disables publishing.
type NATSConfig struct {
	URL     string
	Subject string
}

// WorkerConfig configures the background order worker.
type WorkerConfig struct {
	Concurrency int
	QueueSize   int
	JobTimeout  time.Duration
}

// MailConfig configures order confirmation mail. An empty host disables it.
type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
	FromName     string
}

// SentryConfig holds configuration for Sentry error tracking
type SentryConfig struct {
	DSN              string
	Enabled          bool
	Environment      string
	Release          string
	SampleRate       float64
	TracesSampleRate float64
	Debug            bool
}

func NewConfig() (*Config, error) {
	// Try to load .env from current directory, then walk up to find it (max 2 levels)
	err := godotenv.Load()
	if err != nil {
		// Walk up directories to find .env (max 2 parent directories)
		dir, _ := os.Getwd()
		found := false
		for i := 0; i < 2; i++ {
			dir = filepath.Join(dir, "..")
			if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
				found = true
				break
			}
		}
		if !found {
			slog.Default().Warn("Warning: .env file not found, using environment variables and defaults")
		}
	}

	cfg := &Config{
		Env:         getEnv("ENV", "dev"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Port:        getEnvInt("PORT", 3000),
		DatabaseUrl: getEnv("DATABASE_URL", ""),
		Session: SessionConfig{
			CookieName:    getEnv("SESSION_COOKIE_NAME", "bb_session"),
			CookieSecure:  getEnvBool("COOKIE_SECURE", false),
			TTL:           getEnvDuration("SESSION_TTL", 2*time.Hour),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT", "orders.placed"),
		},
		Worker: WorkerConfig{
			Concurrency: int(getEnvInt("WORKER_CONCURRENCY", 4)),
			QueueSize:   int(getEnvInt("WORKER_QUEUE_SIZE", 64)),
			JobTimeout:  getEnvDuration("WORKER_JOB_TIMEOUT", 10*time.Second),
		},
		Mail: MailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     int(getEnvInt("SMTP_PORT", 587)),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			From:         getEnv("MAIL_FROM", "orders@burgerbuilder.local"),
			FromName:     getEnv("MAIL_FROM_NAME", "Burger Builder"),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			Enabled:          getEnvBool("SENTRY_ENABLED", false), // Disabled by default for development
			Environment:      getEnv("SENTRY_ENVIRONMENT", "development"),
			Release:          getEnv("SENTRY_RELEASE", ""),
			SampleRate:       getEnvFloat("SENTRY_SAMPLE_RATE", 1.0),
			TracesSampleRate: getEnvFloat("SENTRY_TRACES_SAMPLE_RATE", 0.0), // Disabled by default
			Debug:            getEnvBool("SENTRY_DEBUG", false),
		},
	}

	// Validate env
	validEnv := cfg.Env == "dev" || cfg.Env == "prod"
	if !validEnv {
		slog.Default().Warn("Invalid environment. Using default: prod", slog.String("env", cfg.Env))
		cfg.Env = "prod"
	}

	// Validate log level
	validLevel := cfg.LogLevel == "info" || cfg.LogLevel == "debug" || cfg.LogLevel == "warn" || cfg.LogLevel == "error"
	if !validLevel {
		slog.Default().Warn("Invalid log level. Using default: info", slog.String("value", cfg.LogLevel))
		cfg.LogLevel = "info"
	}

	if cfg.Port == 0 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Session cookies carry no secret but must not leak over plain HTTP in production
	if cfg.Env == "prod" && !cfg.Session.CookieSecure {
		slog.Default().Warn("COOKIE_SECURE is false in production")
	}

	if cfg.Worker.Concurrency < 1 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if cfg.Worker.QueueSize < 1 {
		return nil, fmt.Errorf("WORKER_QUEUE_SIZE must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue uint16) uint16 {
	if value := os.Getenv(key); value != "" {
		var intValue uint16
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var floatValue float64
		if _, err := fmt.Sscanf(value, "%f", &floatValue); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
