// Package sheets mirrors transactions into a spreadsheet-like sink.
package sheets

import (
	"context"
	"fmt"

	"zetafin/internal/core"
)

// Mirror keeps one row per transaction, keyed by transaction id.
type Mirror interface {
	// Upsert writes tx, appending a row the first time an id is seen.
	Upsert(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	// Remove clears the row for id. A missing row is not an error.
	Remove(ctx context.Context, id core.ID) error
}

// Apply replays one change event against m. Category changes do not touch
// the mirror and are ignored.
func Apply(ctx context.Context, m Mirror, c core.Change) (string, error) {
	if c.Entity != core.EntityTransaction {
		return "", nil
	}
	switch c.Op {
	case core.OpCreated, core.OpUpdated:
		if c.Transaction == nil {
			return "", fmt.Errorf("%s %s %s: missing payload", c.Entity, c.Op, c.ID)
		}
		return m.Upsert(ctx, *c.Transaction)
	case core.OpDeleted:
		return "", m.Remove(ctx, c.ID)
	default:
		return "", fmt.Errorf("unknown op %q", c.Op)
	}
}
