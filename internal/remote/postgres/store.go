// Package postgres implements remote.Store directly against the backend's
// Postgres database, for self-hosted installs without the REST gateway.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"zetafin/internal/core"
	"zetafin/internal/remote"
)

//go:embed schema.sql
var schema string

// Store is a remote.Store over database/sql and lib/pq.
type Store struct {
	db     *sql.DB
	userID string
}

var _ remote.Store = (*Store)(nil)

// Open connects to dsn and verifies the connection. userID scopes inserts
// and CurrentUser.
func Open(ctx context.Context, dsn, userID string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w: %v", core.ErrNetwork, err)
	}
	return &Store{db: db, userID: userID}, nil
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const transactionColumns = `id, category_id, description, amount, type, transaction_date, notes, recorded_by, created_at, updated_at`

func (s *Store) ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY transaction_date DESC, created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, wrap("scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list transactions", err)
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id core.ID) (core.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id.Normalize().String())
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, wrap("get transaction", err)
	}
	return t, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, icon, color, default_type, active, created_at, updated_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, wrap("list categories", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var r remote.CategoryRow
		var active bool
		var created, updated time.Time
		var id string
		if err := rows.Scan(&id, &r.Name, &r.Icon, &r.Color, &r.DefaultType, &active, &created, &updated); err != nil {
			return nil, wrap("scan category", err)
		}
		r.ID = core.ID(id)
		r.Active, r.CreatedAt, r.UpdatedAt = &active, &created, &updated
		out = append(out, r.Category())
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list categories", err)
	}
	return out, nil
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	r := remote.TransactionToRow(t, s.userID)
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO transactions (id, user_id, category_id, description, amount, type, transaction_date, notes, recorded_by, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()), COALESCE($11, now()))
		 RETURNING `+transactionColumns,
		string(r.ID), r.UserID, nullID(r.CategoryID), r.Description, r.Amount.String(), r.Type,
		r.TransactionDate, r.Notes, r.RecordedBy, r.CreatedAt, r.UpdatedAt)
	out, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, wrap("insert transaction", err)
	}
	return out, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	r := remote.TransactionToRow(t, "")
	row := s.db.QueryRowContext(ctx,
		`UPDATE transactions SET category_id = $2, description = $3, amount = $4, type = $5,
		        transaction_date = $6, notes = $7, recorded_by = $8, updated_at = COALESCE($9, now())
		 WHERE id = $1
		 RETURNING `+transactionColumns,
		string(r.ID), nullID(r.CategoryID), r.Description, r.Amount.String(), r.Type,
		r.TransactionDate, r.Notes, r.RecordedBy, r.UpdatedAt)
	out, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NotFound("transaction", t.ID)
	}
	if err != nil {
		return core.Transaction{}, wrap("update transaction", err)
	}
	return out, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id core.ID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id.Normalize().String()); err != nil {
		return wrap("delete transaction", err)
	}
	return nil
}

func (s *Store) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	r := remote.CategoryToRow(c)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, icon, color, default_type, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()), COALESCE($8, now()))`,
		string(r.ID), r.Name, r.Icon, r.Color, r.DefaultType, *r.Active, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return core.Category{}, wrap("insert category", err)
	}
	return r.Category(), nil
}

func (s *Store) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	r := remote.CategoryToRow(c)
	res, err := s.db.ExecContext(ctx,
		`UPDATE categories SET name = $2, icon = $3, color = $4, default_type = $5, active = $6,
		        updated_at = COALESCE($7, now())
		 WHERE id = $1`,
		string(r.ID), r.Name, r.Icon, r.Color, r.DefaultType, *r.Active, r.UpdatedAt)
	if err != nil {
		return core.Category{}, wrap("update category", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.Category{}, core.NotFound("category", c.ID)
	}
	return r.Category(), nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrap("ping", err)
	}
	return nil
}

func (s *Store) CurrentUser(ctx context.Context) (remote.User, error) {
	var u remote.User
	err := s.db.QueryRowContext(ctx, `SELECT id, email, name FROM users WHERE id = $1`, s.userID).
		Scan(&u.ID, &u.Email, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return remote.User{}, fmt.Errorf("current user %q: %w", s.userID, core.ErrNotFound)
	}
	if err != nil {
		return remote.User{}, wrap("current user", err)
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(sc scanner) (core.Transaction, error) {
	var (
		r              remote.TransactionRow
		id             string
		categoryID     sql.NullString
		notes          sql.NullString
		recordedBy     sql.NullString
		amount         string
		date           time.Time
		created, updat time.Time
	)
	if err := sc.Scan(&id, &categoryID, &r.Description, &amount, &r.Type, &date, &notes, &recordedBy, &created, &updat); err != nil {
		return core.Transaction{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", amount, err)
	}
	r.ID = core.ID(id)
	r.Amount = d
	r.TransactionDate = date.Format(core.DateLayout)
	r.CreatedAt, r.UpdatedAt = &created, &updat
	if categoryID.Valid {
		cid := core.ID(categoryID.String)
		r.CategoryID = &cid
	}
	if notes.Valid {
		r.Notes = &notes.String
	}
	if recordedBy.Valid {
		r.RecordedBy = &recordedBy.String
	}
	return r.Transaction()
}

func nullID(id *core.ID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

// wrap classifies driver failures: connection problems are network errors,
// everything else is a storage error.
func wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := err.Error()
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "bad connection") || strings.Contains(msg, "broken pipe") {
		return fmt.Errorf("%s: %w: %v", op, core.ErrNetwork, err)
	}
	return fmt.Errorf("%s: %w: %v", op, core.ErrStorage, err)
}
