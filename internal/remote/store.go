// Package remote talks to the hosted backend that owns the shared data in
// remote mode: a REST collection API or, for self-hosted installs, its
// Postgres database directly.
package remote

import (
	"context"
	"fmt"

	"zetafin/internal/core"
)

// ErrUnauthorized is returned when the backend rejects the credentials or
// the session has been closed.
var ErrUnauthorized = fmt.Errorf("%w: unauthorized", core.ErrNetwork)

// User is the authenticated account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Store is the remote persistence port used by the accessor.
type Store interface {
	// ListTransactions returns transactions ordered by date, newest first,
	// capped at limit (<= 0 means no cap).
	ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
	// GetTransaction returns one transaction or an error wrapping ErrNotFound.
	GetTransaction(ctx context.Context, id core.ID) (core.Transaction, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	// UpdateTransaction replaces the stored row; a missing row is ErrNotFound.
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	// DeleteTransaction succeeds when the row is already gone.
	DeleteTransaction(ctx context.Context, id core.ID) error
	InsertCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	Ping(ctx context.Context) error
	CurrentUser(ctx context.Context) (User, error)
}
