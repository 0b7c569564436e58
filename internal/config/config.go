// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Data mode: auto, local or remote
	DataMode         string
	TransactionLimit int

	// Local store: memory or sqlite
	LocalStore      string
	SQLiteDBPath    string
	LocalQuotaBytes int64

	// Remote backend: rest, postgres or none
	RemoteBackend     string
	RemoteURL         string
	RemoteAPIKey      string
	RemoteAccessToken string
	RemoteUserID      string
	RemoteTimeout     time.Duration
	PostgresDSN       string
	PostgresMigrate   bool

	// AMQP change events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// HTTP protections
	RateLimitPerMinute int
	CacheCleanupEvery  time.Duration
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataMode:         strings.ToLower(getEnv("DATA_MODE", "auto")),
		TransactionLimit: getEnvInt("TRANSACTION_LIMIT", 100),

		LocalStore:      strings.ToLower(getEnv("LOCAL_STORE", "sqlite")),
		SQLiteDBPath:    getEnv("SQLITE_DB_PATH", "./data/zetafin.db"),
		LocalQuotaBytes: int64(getEnvInt("LOCAL_QUOTA_BYTES", 5<<20)),

		RemoteBackend:     strings.ToLower(getEnv("REMOTE_BACKEND", "none")),
		RemoteURL:         getEnv("REMOTE_URL", ""),
		RemoteAPIKey:      getEnv("REMOTE_API_KEY", ""),
		RemoteAccessToken: getEnv("REMOTE_ACCESS_TOKEN", ""),
		RemoteUserID:      getEnv("REMOTE_USER_ID", ""),
		RemoteTimeout:     getEnvDuration("REMOTE_TIMEOUT", 15*time.Second),
		PostgresDSN:       getEnv("POSTGRES_DSN", ""),
		PostgresMigrate:   getEnvBool("POSTGRES_MIGRATE", false),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "zetafin"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "zetafin_changes"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		CacheCleanupEvery:  getEnvDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
	}
}

// Validate checks the server configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	errs = append(errs, c.validateData()...)

	if c.AMQPURL != "" {
		errs = append(errs, c.validateAMQP()...)
	}

	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}
	if c.CacheCleanupEvery < time.Second {
		errs = append(errs, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanupEvery))
	}

	return combine(errs)
}

// ValidateWorker checks what the sheets mirror worker needs.
func (c *Config) ValidateWorker() error {
	var errs []string
	if c.AMQPURL == "" {
		errs = append(errs, "AMQP_URL is required for the worker")
	} else {
		errs = append(errs, c.validateAMQP()...)
	}
	if c.GoogleSpreadsheetID == "" {
		errs = append(errs, "GOOGLE_SPREADSHEET_ID is required for the worker")
	}
	if c.GoogleSheetName == "" {
		errs = append(errs, "GOOGLE_SHEET_NAME cannot be empty")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided")
	}
	if c.GoogleServiceAccountFile != "" && c.GoogleServiceAccountJSON == "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return combine(errs)
}

// ValidateLocal checks only the local store settings.
func (c *Config) ValidateLocal() error {
	return combine(c.validateLocal())
}

func (c *Config) validateData() []string {
	var errs []string

	validModes := []string{"auto", "local", "remote"}
	if !slices.Contains(validModes, c.DataMode) {
		errs = append(errs, fmt.Sprintf("invalid data mode '%s': must be one of %v", c.DataMode, validModes))
	}
	if c.TransactionLimit < 1 || c.TransactionLimit > 10000 {
		errs = append(errs, fmt.Sprintf("invalid transaction limit %d: must be between 1 and 10000", c.TransactionLimit))
	}

	errs = append(errs, c.validateLocal()...)

	validRemotes := []string{"rest", "postgres", "none"}
	if !slices.Contains(validRemotes, c.RemoteBackend) {
		errs = append(errs, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, validRemotes))
	}
	switch c.RemoteBackend {
	case "rest":
		if c.RemoteURL == "" {
			errs = append(errs, "REMOTE_URL is required when using the rest backend")
		} else if u, err := url.Parse(c.RemoteURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid remote URL '%s': must be an http(s) URL", c.RemoteURL))
		}
		if c.RemoteAccessToken == "" {
			errs = append(errs, "REMOTE_ACCESS_TOKEN is required when using the rest backend")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, "POSTGRES_DSN is required when using the postgres backend")
		}
	}
	if c.DataMode == "remote" && c.RemoteBackend == "none" {
		errs = append(errs, "data mode 'remote' requires a remote backend")
	}
	if c.RemoteTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid remote timeout %v: must be positive", c.RemoteTimeout))
	}
	return errs
}

func (c *Config) validateLocal() []string {
	var errs []string
	validStores := []string{"memory", "sqlite"}
	if !slices.Contains(validStores, c.LocalStore) {
		errs = append(errs, fmt.Sprintf("invalid local store '%s': must be one of %v", c.LocalStore, validStores))
	}
	if c.LocalStore == "sqlite" && c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty when using sqlite local store")
	}
	if c.LocalQuotaBytes < 0 {
		errs = append(errs, fmt.Sprintf("invalid local quota %d: must not be negative", c.LocalQuotaBytes))
	}
	return errs
}

func (c *Config) validateAMQP() []string {
	var errs []string
	if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
	}
	if c.AMQPExchange == "" {
		errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errs
}

func combine(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}
