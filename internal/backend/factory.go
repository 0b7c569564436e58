package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zetafin/internal/accessor"
	"zetafin/internal/amqp"
	"zetafin/internal/kvstore"
	"zetafin/internal/log"
	"zetafin/internal/remote"
	"zetafin/internal/remote/postgres"
	"zetafin/internal/storage"
)

const probeTimeout = 5 * time.Second

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create implements Factory.Create. Any resources opened before a failure
// are released before returning.
func (f *DefaultFactory) Create(ctx context.Context, cfg Config) (res *Result, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var closers []func() error
	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	defer func() {
		if err != nil {
			_ = cleanup()
		}
	}()

	local, closeLocal, err := f.createLocal(cfg)
	if err != nil {
		return nil, err
	}
	if closeLocal != nil {
		closers = append(closers, closeLocal)
	}

	rem, sess, closeRemote, err := f.createRemote(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeRemote != nil {
		closers = append(closers, closeRemote)
	}

	mode := resolveMode(ctx, cfg.Mode, rem, sess, f.logger)

	publisher := f.createPublisher(cfg)
	deps := accessor.Deps{
		Local:   local,
		Remote:  rem,
		Session: sess,
		Logger:  f.logger,
	}
	if publisher != nil {
		closers = append(closers, publisher.Close)
		deps.Publisher = publisher
	}

	acc, err := accessor.New(accessor.Config{Limit: cfg.Limit, Mode: mode}, deps)
	if err != nil {
		return nil, fmt.Errorf("create accessor: %w", err)
	}
	closers = append(closers, acc.Close)

	f.logger.Info("Initialized data backend",
		log.FieldMode, string(mode),
		"local_store", string(cfg.LocalStore),
		"remote", string(cfg.Remote),
		"amqp_enabled", publisher != nil)

	return &Result{
		Accessor:  acc,
		Mode:      mode,
		Local:     local,
		Remote:    rem,
		Session:   sess,
		Publisher: publisher,
		Cleanup:   cleanup,
	}, nil
}

// CreateLocal opens only the configured local store.
func CreateLocal(cfg Config, logger *log.Logger) (kvstore.Store, CleanupFunc, error) {
	f := &DefaultFactory{logger: logger}
	if f.logger == nil {
		f.logger = log.Discard()
	}
	store, closer, err := f.createLocal(cfg)
	if err != nil {
		return nil, nil, err
	}
	if closer == nil {
		closer = func() error { return nil }
	}
	return store, closer, nil
}

func (f *DefaultFactory) createLocal(cfg Config) (kvstore.Store, func() error, error) {
	switch cfg.LocalStore {
	case SQLiteStore:
		store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath, storage.Options{MaxBytes: cfg.LocalQuotaBytes, Logger: f.logger})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite local store", "db_path", cfg.SQLiteDBPath)
		return store, store.Close, nil
	case MemoryStore:
		f.logger.Info("Initialized memory local store")
		return kvstore.NewMemory(int(cfg.LocalQuotaBytes)), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported local store: %s", cfg.LocalStore)
	}
}

func (f *DefaultFactory) createRemote(ctx context.Context, cfg Config) (remote.Store, *remote.Session, func() error, error) {
	switch cfg.Remote {
	case RESTRemote:
		sess := remote.NewSession(cfg.RemoteAccessToken, remote.User{ID: cfg.RemoteUserID}, time.Time{})
		restCfg := remote.RESTConfig{
			BaseURL: cfg.RemoteURL,
			APIKey:  cfg.RemoteAPIKey,
			Tokens:  sess,
			UserID:  cfg.RemoteUserID,
			Timeout: cfg.RemoteTimeout,
			Logger:  f.logger,
		}
		client, err := remote.NewRESTClient(restCfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize REST client: %w", err)
		}
		if cfg.RemoteUserID == "" {
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			u, err := client.CurrentUser(probeCtx)
			cancel()
			if err != nil {
				f.logger.Warn("Could not resolve remote user", log.FieldError, err)
			} else {
				sess.SetUser(u)
				restCfg.UserID = u.ID
				if client, err = remote.NewRESTClient(restCfg); err != nil {
					return nil, nil, nil, fmt.Errorf("failed to initialize REST client: %w", err)
				}
			}
		}
		f.logger.Info("Initialized REST remote", "url", cfg.RemoteURL)
		return client, sess, sess.Close, nil

	case PostgresRemote:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.RemoteUserID)
		if err != nil {
			if cfg.Mode == ModeAuto {
				f.logger.Warn("Postgres remote unavailable, continuing without it", log.FieldError, err)
				return nil, nil, nil, nil
			}
			return nil, nil, nil, fmt.Errorf("failed to initialize postgres remote: %w", err)
		}
		if cfg.PostgresMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				store.Close()
				return nil, nil, nil, err
			}
		}
		f.logger.Info("Initialized postgres remote", "migrate", cfg.PostgresMigrate)
		return store, nil, store.Close, nil

	default:
		return nil, nil, nil, nil
	}
}

// createPublisher returns nil when AMQP is disabled or the broker cannot be
// reached; change events are best effort.
func (f *DefaultFactory) createPublisher(cfg Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// pinger is the part of remote.Store the mode probe needs.
type pinger interface {
	Ping(ctx context.Context) error
}

// resolveMode turns the configured mode into a concrete one. Auto selects
// remote only when a remote exists, the session (if any) is valid and a ping
// succeeds.
func resolveMode(ctx context.Context, requested string, rem pinger, sess *remote.Session, logger *log.Logger) accessor.Mode {
	switch requested {
	case "local":
		return accessor.ModeLocal
	case "remote":
		return accessor.ModeRemote
	}
	if rem == nil {
		return accessor.ModeLocal
	}
	if sess != nil && !sess.Valid() {
		logger.Warn("Remote session is not valid, using local data")
		return accessor.ModeLocal
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := rem.Ping(probeCtx); err != nil {
		logger.Warn("Remote unreachable, using local data", log.FieldError, err)
		return accessor.ModeLocal
	}
	return accessor.ModeRemote
}
