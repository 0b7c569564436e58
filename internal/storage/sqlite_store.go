// Package storage implements the durable local key-value store on SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"zetafin/internal/core"
	"zetafin/internal/kvstore"
	"zetafin/internal/log"

	_ "modernc.org/sqlite"
)

const opTimeout = 5 * time.Second

// SQLiteStore is a kvstore.Store persisted in a single kv table.
type SQLiteStore struct {
	db       *sql.DB
	maxBytes int64
	logger   *log.Logger
}

var _ kvstore.Store = (*SQLiteStore)(nil)

// Options tunes a SQLiteStore.
type Options struct {
	// MaxBytes caps the summed size of keys and values; <= 0 disables it.
	MaxBytes int64
	Logger   *log.Logger
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies migrations.
func NewSQLiteStore(dbPath string, opts Options) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps quota checks and writes serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &SQLiteStore{db: db, maxBytes: opts.MaxBytes, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w: %v", key, core.ErrStorage, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set %q: %w: %v", key, core.ErrStorage, err)
	}
	defer tx.Rollback()

	if s.maxBytes > 0 {
		var others int64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(length(CAST(key AS BLOB)) + length(CAST(value AS BLOB))), 0) FROM kv WHERE key <> ?`,
			key).Scan(&others)
		if err != nil {
			return fmt.Errorf("measure store: %w: %v", core.ErrStorage, err)
		}
		total := others + int64(len(key)+len(value))
		if total > s.maxBytes {
			s.logger.Warn("Local store quota exceeded", log.FieldKey, key, "bytes", total, "limit", s.maxBytes)
			return fmt.Errorf("set %q (%d bytes, limit %d): %w", key, total, s.maxBytes, kvstore.ErrQuotaExceeded)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set %q: %w: %v", key, core.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %q: %w: %v", key, core.ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %q: %w: %v", key, core.ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) Keys() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w: %v", core.ErrStorage, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list keys: %w: %v", core.ErrStorage, err)
	}
	return keys, nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
