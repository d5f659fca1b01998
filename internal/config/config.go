// Package config provides configuration management for the hostelmon application.
//
// This package handles loading configuration from environment variables,
// validating required settings, and providing sensible defaults for optional
// parameters. Configuration is loaded once at startup and remains immutable
// during runtime.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. External .env file in the working directory
//  3. Embedded .env file (fallback, included in binary)
//  4. Hard-coded defaults (lowest priority)
package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "hostelmon/internal/errors"
)

// embeddedEnv contains the .env file embedded at build time.
//
// It only carries template values; real credentials come from the
// environment or an external .env file.
//
//go:embed .env
var embeddedEnv string

// Store backends accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all application configuration.
type Config struct {
	// HTTP surface
	Port    string // Port for the webhook/resolve HTTP server
	BaseURL string // Public URL used to build resolve links

	// Logging
	LogLevel  string
	LogFormat string

	// Record store
	StoreBackend  string
	CSVPath       string
	DatabaseURL   string
	DBMaxConns    int
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Routing table overrides (category -> address), loaded from RoutesFile
	RoutesFile string
	Routes     map[string]string

	// WhatsApp Cloud API (optional, replies disabled if not set)
	MetaPhoneNumberID string
	MetaAccessToken   string
	MetaVerifyToken   string
	MetaAPIVersion    string

	// Resend email API (optional)
	ResendAPIKey string
	EmailFrom    string

	// Telegram department chat (optional)
	TelegramBotToken string
	TelegramChatID   string

	// Kafka event stream (optional)
	KafkaBrokers []string
	KafkaTopic   string

	// Remote LLM classifier (optional, rule pipeline used if not set)
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	// Google Cloud Translation (optional)
	TranslateAPIKey string

	// Notification dispatch
	WorkerPoolSize int
	NotifyTimeout  time.Duration
	HTTPTimeout    time.Duration

	// Debug mode - outbound API calls are logged instead of sent
	DebugMode bool
}

// LoadConfig loads configuration from environment variables with defaults.
//
// Loading process:
//  1. Parse embedded .env file and set as fallback environment variables
//  2. Try to load external .env file (does not override existing env)
//  3. Read environment variables, applying defaults for missing values
//  4. Load routing overrides if ROUTES_FILE is set
//  5. Validate
func LoadConfig() (*Config, error) {
	envMap, err := godotenv.Unmarshal(embeddedEnv)
	if err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" && v != "" {
				os.Setenv(k, v)
			}
		}
	}

	_ = godotenv.Load()

	cfg := &Config{
		Port:    getEnvOrDefault("PORT", "5000"),
		BaseURL: strings.TrimRight(getEnvOrDefault("BASE_URL", "http://localhost:5000"), "/"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		StoreBackend:  strings.ToLower(getEnvOrDefault("STORE_BACKEND", BackendCSV)),
		CSVPath:       getEnvOrDefault("COMPLAINTS_CSV", "complaints.csv"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBMaxConns:    getEnvInt("DB_MAX_CONNS", 10),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RoutesFile: os.Getenv("ROUTES_FILE"),

		MetaPhoneNumberID: os.Getenv("META_PHONE_NUMBER_ID"),
		MetaAccessToken:   os.Getenv("META_ACCESS_TOKEN"),
		MetaVerifyToken:   os.Getenv("META_VERIFY_TOKEN"),
		MetaAPIVersion:    getEnvOrDefault("META_API_VERSION", "v18.0"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    getEnvOrDefault("EMAIL_FROM", "Hostel Complaint System <onboarding@resend.dev>"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnvOrDefault("KAFKA_TOPIC", "hostel-complaints"),

		LLMAPIKey:  getEnvOrDefault("LLM_API_KEY", os.Getenv("GROQ_API_KEY")),
		LLMBaseURL: getEnvOrDefault("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMModel:   getEnvOrDefault("LLM_MODEL", "llama-3.3-70b-versatile"),

		TranslateAPIKey: os.Getenv("GOOGLE_TRANSLATE_API_KEY"),

		WorkerPoolSize: getEnvInt("WORKER_POOL_SIZE", 4),
		NotifyTimeout:  getEnvDuration("NOTIFY_TIMEOUT", 15*time.Second),
		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		DebugMode: getEnvBool("DEBUG_MODE", false),
	}

	if cfg.RoutesFile != "" {
		routes, err := LoadRoutes(cfg.RoutesFile)
		if err != nil {
			return nil, err
		}
		cfg.Routes = routes
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and values are sensible.
//
// Validation rules:
//   - STORE_BACKEND must be a known backend
//   - postgres needs DATABASE_URL, redis needs REDIS_ADDR
//   - csv needs a file path
//   - Pool size and timeouts must be positive
func (c *Config) Validate() error {
	if c.Port == "" {
		return apperrors.NewConfigError("PORT", "cannot be empty")
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendCSV:
		if c.CSVPath == "" {
			return apperrors.NewConfigError("COMPLAINTS_CSV", "is required for the csv backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return apperrors.NewConfigError("DATABASE_URL", "is required for the postgres backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return apperrors.NewConfigError("REDIS_ADDR", "is required for the redis backend")
		}
	default:
		return apperrors.NewConfigError("STORE_BACKEND", "unknown backend %q", c.StoreBackend)
	}

	if c.WorkerPoolSize < 1 {
		return apperrors.NewConfigError("WORKER_POOL_SIZE", "must be at least 1, got %d", c.WorkerPoolSize)
	}
	if c.NotifyTimeout <= 0 {
		return apperrors.NewConfigError("NOTIFY_TIMEOUT", "must be positive, got %v", c.NotifyTimeout)
	}
	if c.HTTPTimeout <= 0 {
		return apperrors.NewConfigError("HTTP_TIMEOUT", "must be positive, got %v", c.HTTPTimeout)
	}

	return nil
}

// WhatsAppEnabled reports whether WhatsApp replies can be sent.
func (c *Config) WhatsAppEnabled() bool {
	return c.MetaPhoneNumberID != "" && c.MetaAccessToken != ""
}

// TelegramEnabled reports whether the department chat is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// Helper functions for environment variable parsing

// getEnvOrDefault returns the environment variable value or a default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an integer or a default if not set/invalid
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default if not set/invalid.
//
// Accepts standard Go duration strings like "5s", "10m", "1h30m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// splitList splits a comma separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
