package backend

import (
	"errors"
	"fmt"
	"time"

	"zetafin/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Mode  string
	Limit int

	LocalStore      LocalStoreType
	SQLiteDBPath    string
	LocalQuotaBytes int64

	Remote            RemoteType
	RemoteURL         string
	RemoteAPIKey      string
	RemoteAccessToken string
	RemoteUserID      string
	RemoteTimeout     time.Duration
	PostgresDSN       string
	PostgresMigrate   bool

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	cfg := Config{
		Mode:  appConfig.DataMode,
		Limit: appConfig.TransactionLimit,

		LocalStore:      LocalStoreType(appConfig.LocalStore),
		SQLiteDBPath:    appConfig.SQLiteDBPath,
		LocalQuotaBytes: appConfig.LocalQuotaBytes,

		Remote:            RemoteType(appConfig.RemoteBackend),
		RemoteURL:         appConfig.RemoteURL,
		RemoteAPIKey:      appConfig.RemoteAPIKey,
		RemoteAccessToken: appConfig.RemoteAccessToken,
		RemoteUserID:      appConfig.RemoteUserID,
		RemoteTimeout:     appConfig.RemoteTimeout,
		PostgresDSN:       appConfig.PostgresDSN,
		PostgresMigrate:   appConfig.PostgresMigrate,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.LocalStore.IsValid() {
		return fmt.Errorf("invalid local store: %s", c.LocalStore)
	}
	if !c.Remote.IsValid() {
		return fmt.Errorf("invalid remote backend: %s", c.Remote)
	}
	switch c.Mode {
	case ModeAuto, "local", "remote":
	default:
		return fmt.Errorf("invalid data mode: %s", c.Mode)
	}
	if c.LocalStore == SQLiteStore && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite local store")
	}
	switch c.Remote {
	case RESTRemote:
		if c.RemoteURL == "" || c.RemoteAccessToken == "" {
			return errors.New("remote URL and access token are required for rest backend")
		}
	case PostgresRemote:
		if c.PostgresDSN == "" {
			return errors.New("postgres DSN is required for postgres backend")
		}
	case NoRemote:
		if c.Mode == "remote" {
			return errors.New("data mode remote requires a remote backend")
		}
	}
	return nil
}
